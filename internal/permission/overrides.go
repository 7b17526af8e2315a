package permission

import "time"

// PermissionType tags an OwnerDefinition with the nature of the
// permission edge it describes. The Traversal Engine does not consult
// it: every resolved owner is followed, whatever its PermissionType. It
// is carried through for the Logic Solver's fact emission.
type PermissionType string

// The closed set of PermissionType values.
const (
	PermissionTypeMember        PermissionType = "member"
	PermissionTypeAct           PermissionType = "act"
	PermissionTypeAdmin         PermissionType = "admin"
	PermissionTypeInteract      PermissionType = "interact"
	PermissionTypeUpgrade       PermissionType = "upgrade"
	PermissionTypeChallenge     PermissionType = "challenge"
	PermissionTypeGuard         PermissionType = "guard"
	PermissionTypePropose       PermissionType = "propose"
	PermissionTypeSequence      PermissionType = "sequence"
	PermissionTypeValidate      PermissionType = "validate"
	PermissionTypeDisperse      PermissionType = "disperse"
	PermissionTypeRelayDA       PermissionType = "relayDA"
	PermissionTypeOperateLinea  PermissionType = "operateLinea"
	PermissionTypeFastConfirm   PermissionType = "fastconfirm"
	PermissionTypeConfigure     PermissionType = "configure"
	PermissionTypeWhitelist     PermissionType = "whitelist"
)

// Transits reports whether this permission type is the transitive
// "act" type. The Traversal Engine does not call it.
func (p PermissionType) Transits() bool {
	return p == PermissionTypeAct
}

// DefaultPermissionType infers the PermissionType for an OwnerDefinition
// that did not declare one explicitly, based on the resolved owner's
// AddressType (spec §3). Unknown addresses default to "act" per the
// Open Question resolution in SPEC_FULL.md §10.8(c).
func DefaultPermissionType(t AddressType) PermissionType {
	switch t {
	case AddressTypeEOA, AddressTypeEOAPermissioned, AddressTypeMultisig, AddressTypeUnknown:
		return PermissionTypeAct
	default:
		return PermissionTypeAdmin
	}
}

// OwnerDefinition is a single path expression naming an owner of a
// permissioned function, plus an optional permission-type tag.
type OwnerDefinition struct {
	Path           string
	PermissionType *PermissionType // nil means "infer from resolved owner"
}

// DelayRef points at a numeric field, on a named contract, to be read
// at traversal time by the Delay Resolver.
type DelayRef struct {
	ContractAddress Address
	FieldName       string
}

// RiskScore is a closed set of curator-assigned risk classifications.
type RiskScore string

// The closed set of RiskScore values.
const (
	RiskScoreUnscored RiskScore = "unscored"
	RiskScoreLow      RiskScore = "low-risk"
	RiskScoreMedium   RiskScore = "medium-risk"
	RiskScoreHigh     RiskScore = "high-risk"
	RiskScoreCritical RiskScore = "critical"
)

// FunctionClassification distinguishes permissioned functions (which
// feed the Ownership Graph and Traversal Engine) from non-permissioned
// ones (which are ignored by both).
type FunctionClassification string

// The two FunctionClassification values.
const (
	ClassificationPermissioned    FunctionClassification = "permissioned"
	ClassificationNonPermissioned FunctionClassification = "non-permissioned"
)

// FunctionOverride is one curator-authored entry describing a single
// function on a contract: whether it is permissioned, who owns it, and
// how to find the delay (if any) that gates it.
type FunctionOverride struct {
	FunctionName       string
	Classification     FunctionClassification
	Checked            *bool
	Score              *RiskScore
	Description        string
	Reason             string
	OwnerDefinitions   []OwnerDefinition
	Delay              *DelayRef
	Timestamp          time.Time
}

// OverridesDocument is the curator catalogue: contract address to its
// ordered list of function overrides. This is the only supported
// on-disk shape (spec.md §9 Open Question (b) resolves against the
// legacy flat-array shape).
type OverridesDocument struct {
	Version      string
	LastModified time.Time
	Contracts    map[string][]FunctionOverride // keyed by Address.Normalized()
}

// PermissionedFunctions returns the permissioned-function overrides
// declared for a contract, in declaration order, skipping
// non-permissioned entries.
func (d OverridesDocument) PermissionedFunctions(contract string) []FunctionOverride {
	all := d.Contracts[contract]
	out := make([]FunctionOverride, 0, len(all))
	for _, f := range all {
		if f.Classification == ClassificationPermissioned {
			out = append(out, f)
		}
	}
	return out
}
