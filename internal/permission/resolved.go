package permission

import (
	"fmt"
	"time"
)

// ViaStep is one intermediate hop recorded along the path from a direct
// owner to an ultimate owner.
type ViaStep struct {
	Address     Address
	AddressType AddressType
	HasDelay    bool
	DelaySecs   uint64
}

// DelayFormatted renders this step's delay as "Xd Yh Zm Ws", or "0s" if
// there is no delay on this step.
func (s ViaStep) DelayFormatted() string {
	if !s.HasDelay {
		return "0s"
	}
	return FormatDuration(s.DelaySecs)
}

// UltimateOwnerRecord is one terminal principal reached by following
// ownership edges from a direct owner, along with the path taken and
// the cumulative delay accrued along it.
type UltimateOwnerRecord struct {
	Address         Address
	AddressType     AddressType
	Via             []ViaStep
	Delays          []uint64 // one entry per Via step that carried a delay
	CumulativeDelay uint64
}

// CumulativeDelayFormatted renders CumulativeDelay as "Xd Yh Zm Ws".
func (u UltimateOwnerRecord) CumulativeDelayFormatted() string {
	return FormatDuration(u.CumulativeDelay)
}

// dedupKey is the (terminal, via-address-sequence) key two
// UltimateOwnerRecords are compared on for deduplication (spec §3, §4.5).
func (u UltimateOwnerRecord) dedupKey() string {
	k := u.Address.Normalized()
	for _, v := range u.Via {
		k += "|" + v.Address.Normalized()
	}
	return k
}

// FormatDuration renders a second count as "Xd Yh Zm Ws", omitting zero
// components, or "0s" if the total is zero.
func FormatDuration(totalSecs uint64) string {
	if totalSecs == 0 {
		return "0s"
	}
	d := totalSecs / 86400
	totalSecs %= 86400
	h := totalSecs / 3600
	totalSecs %= 3600
	m := totalSecs / 60
	s := totalSecs % 60

	out := ""
	if d > 0 {
		out += fmt.Sprintf("%dd ", d)
	}
	if h > 0 {
		out += fmt.Sprintf("%dh ", h)
	}
	if m > 0 {
		out += fmt.Sprintf("%dm ", m)
	}
	if s > 0 {
		out += fmt.Sprintf("%ds ", s)
	}
	return out[:len(out)-1]
}

// DirectOwner is one entry produced by the Owner Resolver for a single
// OwnerDefinition: either a resolved address (possibly carrying a
// preserved structured value) or an unresolved-owner failure record.
type DirectOwner struct {
	Address      Address
	IsResolved   bool
	Structured   *FieldValue
	Source       OwnerDefinition
	ResolveError error // non-nil only when !IsResolved
}

// PlaceholderUnresolvedAddress is the placeholder chain-qualified
// address recorded on an unresolved-owner DirectOwner (spec §4.2).
const PlaceholderUnresolvedAddress = "RESOLUTION_FAILED"

// ResolvedFunction is the per-function output of one resolution run:
// the function's direct owners, its deduplicated ultimate owners, and
// any warnings accumulated while resolving either.
type ResolvedFunction struct {
	FunctionName   string
	DirectOwners   []DirectOwner
	UltimateOwners []UltimateOwnerRecord
	Warnings       []string
}

// ResolvedContract is the per-contract output of one resolution run.
type ResolvedContract struct {
	Address   string
	Functions []ResolvedFunction
}

// Provenance records where a ResolvedDocument's inputs came from.
type Provenance struct {
	OverridesVersion string
	DiscoveredHash   string
}

// ResolvedDocument is the output of one resolution run: only contracts
// with at least one permissioned function resolved are included (spec §3).
type ResolvedDocument struct {
	Version      string
	LastModified time.Time
	GeneratedFrom Provenance
	Contracts    []ResolvedContract
}

// DedupeUltimateOwners keeps the first record for each (terminal,
// via-sequence) key, preserving order of first appearance (spec §4.5).
func DedupeUltimateOwners(records []UltimateOwnerRecord) []UltimateOwnerRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]UltimateOwnerRecord, 0, len(records))
	for _, r := range records {
		k := r.dedupKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
