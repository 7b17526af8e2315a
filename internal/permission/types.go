// Package permission defines the domain types and collaborator interfaces
// of the permission resolution engine: addresses, the heterogeneous
// FieldValue tree discovered on-chain, the curator-authored overrides
// catalogue, and the ultimate-owner records the engine produces.
package permission

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ServiceName identifies this component in logs and metrics.
const ServiceName = "permresolve"

// Address is a chain-qualified identifier of the form "<chain>:<hex>".
// Equality is on the normalized lowercase form; the chain tag is an
// opaque short string and is compared case-sensitively.
type Address struct {
	Chain string
	Hex   string // 0x-prefixed, zero-padded to 20 bytes, EIP-55 checksum-cased
}

// NewAddress builds an Address from a chain tag and a hex string,
// normalizing the hex portion through go-ethereum's address codec: it is
// zero-padded to 20 bytes and stored EIP-55 checksum-cased. String and
// Normalized lowercase it, so checksum-cased input compares equal to
// lowercase input.
func NewAddress(chain, hex string) Address {
	return Address{
		Chain: chain,
		Hex:   common.HexToAddress(hex).Hex(),
	}
}

// ParseQualifiedAddress parses the external "<chain>:<hex>" form.
// Returns false if the string has no chain separator.
func ParseQualifiedAddress(s string) (Address, bool) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return Address{}, false
	}
	return NewAddress(s[:idx], s[idx+1:]), true
}

// String renders the qualified external form "<chain>:<hex>".
func (a Address) String() string {
	return a.Chain + ":" + strings.ToLower(a.Hex)
}

// Normalized returns the form used for map keys and equality: the
// chain tag verbatim plus the lowercase hex portion.
func (a Address) Normalized() string {
	return a.Chain + ":" + strings.ToLower(a.Hex)
}

// Equal reports whether two addresses refer to the same chain-qualified
// identifier after normalization.
func (a Address) Equal(other Address) bool {
	return a.Normalized() == other.Normalized()
}

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool {
	return a.Chain == "" && a.Hex == ""
}

// AddressType is a closed tagged set describing what kind of principal
// an address is believed to be.
type AddressType string

// The closed set of AddressType values.
const (
	AddressTypeEOA             AddressType = "EOA"
	AddressTypeEOAPermissioned AddressType = "EOAPermissioned"
	AddressTypeUnverified      AddressType = "Unverified"
	AddressTypeToken           AddressType = "Token"
	AddressTypeMultisig        AddressType = "Multisig"
	AddressTypeDiamond         AddressType = "Diamond"
	AddressTypeTimelock        AddressType = "Timelock"
	AddressTypeContract        AddressType = "Contract"
	AddressTypeUnknown         AddressType = "Unknown"
)

// IsTerminal reports whether traversal must stop upon reaching an
// address of this type.
func (t AddressType) IsTerminal() bool {
	switch t {
	case AddressTypeEOA, AddressTypeMultisig, AddressTypeUnknown:
		return true
	default:
		return false
	}
}

// FieldValueKind tags the variant carried by a FieldValue.
type FieldValueKind string

// The closed set of FieldValueKind values.
const (
	FieldValueAddress FieldValueKind = "address"
	FieldValueHex      FieldValueKind = "hex"
	FieldValueString   FieldValueKind = "string"
	FieldValueNumber   FieldValueKind = "number"
	FieldValueBoolean  FieldValueKind = "boolean"
	FieldValueArray    FieldValueKind = "array"
	FieldValueObject   FieldValueKind = "object"
	FieldValueUnknown  FieldValueKind = "unknown"
	FieldValueError    FieldValueKind = "error"
)

// FieldValue is a recursively tagged value mirroring the heterogeneous
// JSON-like shapes found in a discovered contract's fields. Only the
// member matching Kind is meaningful.
type FieldValue struct {
	Kind FieldValueKind

	// FieldValueAddress
	Address     Address
	AddressType AddressType

	// FieldValueHex, FieldValueString
	Str string

	// FieldValueNumber: decimal string, values may exceed 64 bits.
	Number string

	// FieldValueBoolean
	Bool bool

	// FieldValueArray
	Array []FieldValue

	// FieldValueObject: insertion-ordered to keep role-table output
	// deterministic.
	Object []ObjectEntry

	// FieldValueError
	Err string
}

// ObjectEntry is a single named member of a FieldValueObject value.
type ObjectEntry struct {
	Name  string
	Value FieldValue
}

// Get returns the value of the named member of an object FieldValue.
func (v FieldValue) Get(name string) (FieldValue, bool) {
	for _, e := range v.Object {
		if e.Name == name {
			return e.Value, true
		}
	}
	return FieldValue{}, false
}

// NamedField is a single entry in a DiscoveredEntry's ordered field
// sequence.
type NamedField struct {
	Name  string
	Value FieldValue
}

// DiscoveredEntry is one on-chain address discovered by the (external,
// out of scope) discovery pipeline, along with its typed fields.
type DiscoveredEntry struct {
	Address Address
	Type    AddressType
	Name    string // optional, empty if unknown

	Fields []NamedField

	// Values is the legacy ad-hoc map some discovery handlers still
	// emit instead of Fields. Lookups fall back to it.
	Values map[string]FieldValue
}

// FieldByName looks up a field by name, checking Values first (legacy
// handler output) and then the ordered Fields sequence, matching the
// lookup order mandated by the Path Evaluator (spec §4.1 rule 2).
func (e DiscoveredEntry) FieldByName(name string) (FieldValue, bool) {
	if e.Values != nil {
		if v, ok := e.Values[name]; ok {
			return v, true
		}
	}
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return FieldValue{}, false
}

// DiscoveredSnapshot is a read-only, in-memory view of a project's
// discovered on-chain state: one DiscoveredEntry per unique address,
// plus a content hash used as provenance.
type DiscoveredSnapshot struct {
	entries map[string]DiscoveredEntry // keyed by Address.Normalized()
	Hash    string                     // 16-hex-char prefix of sha256(file)
}

// NewDiscoveredSnapshot builds a snapshot from a list of entries. Later
// entries with a duplicate address overwrite earlier ones; callers are
// expected to have validated uniqueness upstream (spec §3 invariant).
func NewDiscoveredSnapshot(entries []DiscoveredEntry, hash string) DiscoveredSnapshot {
	m := make(map[string]DiscoveredEntry, len(entries))
	for _, e := range entries {
		m[e.Address.Normalized()] = e
	}
	return DiscoveredSnapshot{entries: m, Hash: hash}
}

// Lookup returns the discovered entry for an address, if present.
func (s DiscoveredSnapshot) Lookup(addr Address) (DiscoveredEntry, bool) {
	e, ok := s.entries[addr.Normalized()]
	return e, ok
}

// Len returns the number of distinct addresses in the snapshot; it
// bounds the maximum depth of any one traversal path (spec §4.5).
func (s DiscoveredSnapshot) Len() int {
	return len(s.entries)
}
