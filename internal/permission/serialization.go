package permission

import (
	"encoding/json"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// jsonAPI is the codec the document-level Marshal*/Unmarshal* functions
// below use to (de)serialize whole documents. It is interface-compatible
// with encoding/json and still invokes the MarshalJSON/UnmarshalJSON
// methods on Address, FieldValue and the other wire types in this file
// reflectively, the same way encoding/json would.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// The on-disk shapes in this file are consumed by pkg/discoveredstore,
// pkg/overridesstore and pkg/resolvedstore through jsonAPI.

// MarshalJSON renders an Address as its qualified "<chain>:<hex>" string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON parses an Address from its qualified string form.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseQualifiedAddress(s)
	if !ok {
		return fmt.Errorf("address %q missing chain separator", s)
	}
	*a = parsed
	return nil
}

// fieldValueWire is the JSON projection of a FieldValue: a small tagged
// union keyed by "kind", mirroring the discovery pipeline's on-disk
// format for a contract's fields.
type fieldValueWire struct {
	Kind        FieldValueKind `json:"kind"`
	Address     *Address       `json:"address,omitempty"`
	AddressType AddressType    `json:"addressType,omitempty"`
	Str         string         `json:"str,omitempty"`
	Number      string         `json:"number,omitempty"`
	Bool        bool           `json:"bool,omitempty"`
	Array       []FieldValue   `json:"array,omitempty"`
	Object      []ObjectEntry  `json:"object,omitempty"`
	Err         string         `json:"err,omitempty"`
}

// MarshalJSON renders a FieldValue as its tagged-union wire form.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	w := fieldValueWire{
		Kind:        v.Kind,
		Str:         v.Str,
		Number:      v.Number,
		Bool:        v.Bool,
		Array:       v.Array,
		Object:      v.Object,
		Err:         v.Err,
		AddressType: v.AddressType,
	}
	if v.Kind == FieldValueAddress {
		w.Address = &v.Address
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses a FieldValue from its tagged-union wire form.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var w fieldValueWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = FieldValue{
		Kind:        w.Kind,
		Str:         w.Str,
		Number:      w.Number,
		Bool:        w.Bool,
		Array:       w.Array,
		Object:      w.Object,
		Err:         w.Err,
		AddressType: w.AddressType,
	}
	if w.Address != nil {
		v.Address = *w.Address
	}
	return nil
}

// MarshalJSON renders an ObjectEntry as a {"name": ..., "value": ...} pair,
// preserving member order (a JSON object's key order is not load-bearing
// in Go's map-based decoder, so the role table is carried as an array).
func (e ObjectEntry) MarshalJSON() ([]byte, error) {
	type wire struct {
		Name  string     `json:"name"`
		Value FieldValue `json:"value"`
	}
	return json.Marshal(wire{Name: e.Name, Value: e.Value})
}

// UnmarshalJSON parses an ObjectEntry from its {"name", "value"} form.
func (e *ObjectEntry) UnmarshalJSON(data []byte) error {
	var w struct {
		Name  string     `json:"name"`
		Value FieldValue `json:"value"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Name = w.Name
	e.Value = w.Value
	return nil
}

// MarshalJSON renders a NamedField as a {"name": ..., "value": ...} pair.
func (f NamedField) MarshalJSON() ([]byte, error) {
	type wire struct {
		Name  string     `json:"name"`
		Value FieldValue `json:"value"`
	}
	return json.Marshal(wire{Name: f.Name, Value: f.Value})
}

// UnmarshalJSON parses a NamedField from its {"name", "value"} form.
func (f *NamedField) UnmarshalJSON(data []byte) error {
	var w struct {
		Name  string     `json:"name"`
		Value FieldValue `json:"value"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	f.Name = w.Name
	f.Value = w.Value
	return nil
}

// discoveredEntryWire is the on-disk shape of one DiscoveredEntry.
type discoveredEntryWire struct {
	Address Address                `json:"address"`
	Type    AddressType            `json:"type"`
	Name    string                 `json:"name,omitempty"`
	Fields  []NamedField           `json:"fields,omitempty"`
	Values  map[string]FieldValue  `json:"values,omitempty"`
}

// MarshalJSON renders a DiscoveredEntry to its on-disk shape.
func (e DiscoveredEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(discoveredEntryWire{
		Address: e.Address,
		Type:    e.Type,
		Name:    e.Name,
		Fields:  e.Fields,
		Values:  e.Values,
	})
}

// UnmarshalJSON parses a DiscoveredEntry from its on-disk shape.
func (e *DiscoveredEntry) UnmarshalJSON(data []byte) error {
	var w discoveredEntryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Address = w.Address
	e.Type = w.Type
	e.Name = w.Name
	e.Fields = w.Fields
	e.Values = w.Values
	return nil
}

// discoveredFileWire is the root shape of a discovered document on disk.
type discoveredFileWire struct {
	Entries []DiscoveredEntry `json:"entries"`
}

// MarshalDiscoveredSnapshot renders a snapshot's entries to the
// discovery pipeline's on-disk array shape. The snapshot's Hash is not
// part of the wire form: it is recomputed from file content by
// pkg/discoveredstore on load (spec §3 "content hash" provenance).
func MarshalDiscoveredSnapshot(s DiscoveredSnapshot) ([]byte, error) {
	entries := make([]DiscoveredEntry, 0, s.Len())
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	return jsonAPI.Marshal(discoveredFileWire{Entries: entries})
}

// UnmarshalDiscoveredEntries parses the discovery pipeline's on-disk
// array shape into a plain entry slice; the caller pairs it with a
// content hash via NewDiscoveredSnapshot.
func UnmarshalDiscoveredEntries(data []byte) ([]DiscoveredEntry, error) {
	var w discoveredFileWire
	if err := jsonAPI.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return w.Entries, nil
}

// ownerDefinitionWire is the on-disk shape of an OwnerDefinition.
type ownerDefinitionWire struct {
	Path           string          `json:"path"`
	PermissionType *PermissionType `json:"permissionType,omitempty"`
}

// MarshalJSON renders an OwnerDefinition to its on-disk shape.
func (d OwnerDefinition) MarshalJSON() ([]byte, error) {
	return json.Marshal(ownerDefinitionWire(d))
}

// UnmarshalJSON parses an OwnerDefinition from its on-disk shape.
func (d *OwnerDefinition) UnmarshalJSON(data []byte) error {
	var w ownerDefinitionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = OwnerDefinition(w)
	return nil
}

// delayRefWire is the on-disk shape of a DelayRef.
type delayRefWire struct {
	ContractAddress Address `json:"contractAddress"`
	FieldName       string  `json:"fieldName"`
}

// MarshalJSON renders a DelayRef to its on-disk shape.
func (d DelayRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(delayRefWire(d))
}

// UnmarshalJSON parses a DelayRef from its on-disk shape.
func (d *DelayRef) UnmarshalJSON(data []byte) error {
	var w delayRefWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = DelayRef(w)
	return nil
}

// functionOverrideWire is the on-disk shape of a FunctionOverride
// (spec §6 "Overrides document").
type functionOverrideWire struct {
	FunctionName       string                  `json:"functionName"`
	UserClassification FunctionClassification  `json:"userClassification"`
	Checked            *bool                   `json:"checked,omitempty"`
	Score              *RiskScore              `json:"score,omitempty"`
	Description        string                  `json:"description,omitempty"`
	Reason             string                  `json:"reason,omitempty"`
	OwnerDefinitions   []OwnerDefinition       `json:"ownerDefinitions,omitempty"`
	Delay              *DelayRef               `json:"delay,omitempty"`
	Timestamp          string                  `json:"timestamp,omitempty"`
}

// MarshalJSON renders a FunctionOverride to its on-disk shape.
func (f FunctionOverride) MarshalJSON() ([]byte, error) {
	w := functionOverrideWire{
		FunctionName:       f.FunctionName,
		UserClassification: f.Classification,
		Checked:            f.Checked,
		Score:              f.Score,
		Description:        f.Description,
		Reason:             f.Reason,
		OwnerDefinitions:   f.OwnerDefinitions,
		Delay:              f.Delay,
	}
	if !f.Timestamp.IsZero() {
		w.Timestamp = f.Timestamp.Format(timeLayout)
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses a FunctionOverride from its on-disk shape.
func (f *FunctionOverride) UnmarshalJSON(data []byte) error {
	var w functionOverrideWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	f.FunctionName = w.FunctionName
	f.Classification = w.UserClassification
	f.Checked = w.Checked
	f.Score = w.Score
	f.Description = w.Description
	f.Reason = w.Reason
	f.OwnerDefinitions = w.OwnerDefinitions
	f.Delay = w.Delay
	if w.Timestamp != "" {
		t, err := time.Parse(timeLayout, w.Timestamp)
		if err != nil {
			return fmt.Errorf("parsing timestamp: %w", err)
		}
		f.Timestamp = t
	}
	return nil
}

// contractOverridesWire wraps one contract's function list (spec §6:
// "contracts": {"<address>": {"functions": [...]}}).
type contractOverridesWire struct {
	Functions []FunctionOverride `json:"functions"`
}

// overridesDocumentWire is the on-disk shape of an OverridesDocument:
// the spec.md §9 Open Question (b) resolution means this is the only
// accepted shape, never the legacy flat-array one.
type overridesDocumentWire struct {
	Version      string                           `json:"version"`
	LastModified string                           `json:"lastModified,omitempty"`
	Contracts    map[string]contractOverridesWire `json:"contracts"`
}

// MarshalOverridesDocument renders an OverridesDocument to its on-disk
// shape.
func MarshalOverridesDocument(d OverridesDocument) ([]byte, error) {
	contracts := make(map[string]contractOverridesWire, len(d.Contracts))
	for addr, fns := range d.Contracts {
		contracts[addr] = contractOverridesWire{Functions: fns}
	}
	return jsonAPI.MarshalIndent(overridesDocumentWire{
		Version:      d.Version,
		LastModified: d.LastModified.Format(timeLayout),
		Contracts:    contracts,
	}, "", "  ")
}

// UnmarshalOverridesDocument parses an OverridesDocument from its
// on-disk shape.
func UnmarshalOverridesDocument(data []byte) (OverridesDocument, error) {
	var w overridesDocumentWire
	if err := jsonAPI.Unmarshal(data, &w); err != nil {
		return OverridesDocument{}, err
	}
	doc := OverridesDocument{
		Version:   w.Version,
		Contracts: make(map[string][]FunctionOverride, len(w.Contracts)),
	}
	for addr, c := range w.Contracts {
		doc.Contracts[addr] = c.Functions
	}
	if w.LastModified != "" {
		t, err := time.Parse(timeLayout, w.LastModified)
		if err != nil {
			return OverridesDocument{}, fmt.Errorf("parsing lastModified: %w", err)
		}
		doc.LastModified = t
	}
	return doc, nil
}

// provenanceWire is the on-disk shape of a Provenance (spec §6's
// "generatedFrom" block).
type provenanceWire struct {
	OverridesVersion string `json:"permissionOverridesVersion"`
	DiscoveredHash   string `json:"discoveredJsonHash"`
}

// directOwnerWire is the on-disk shape of a DirectOwner. Spec §6 shows
// this as a bare address array; it is widened here to carry resolution
// status, since that information already exists on DirectOwner and
// dropping it on write would make ResolvedStore.Save lossy.
type directOwnerWire struct {
	Address    Address     `json:"address"`
	IsResolved bool        `json:"isResolved"`
	Structured *FieldValue `json:"structured,omitempty"`
	Path       string      `json:"path"`
	Error      string      `json:"error,omitempty"`
}

func (o DirectOwner) toWire() directOwnerWire {
	w := directOwnerWire{
		Address:    o.Address,
		IsResolved: o.IsResolved,
		Structured: o.Structured,
		Path:       o.Source.Path,
	}
	if o.ResolveError != nil {
		w.Error = o.ResolveError.Error()
	}
	return w
}

// viaStepWire is the on-disk shape of a ViaStep (spec §6).
type viaStepWire struct {
	Address         Address     `json:"address"`
	AddressType     AddressType `json:"addressType"`
	Delay           *uint64     `json:"delay,omitempty"`
	DelayFormatted  string      `json:"delayFormatted,omitempty"`
}

func (s ViaStep) toWire() viaStepWire {
	w := viaStepWire{Address: s.Address, AddressType: s.AddressType}
	if s.HasDelay {
		w.Delay = &s.DelaySecs
		w.DelayFormatted = s.DelayFormatted()
	}
	return w
}

// ultimateOwnerRecordWire is the on-disk shape of an UltimateOwnerRecord
// (spec §6).
type ultimateOwnerRecordWire struct {
	Address                  Address       `json:"address"`
	AddressType              AddressType   `json:"addressType"`
	Via                      []viaStepWire `json:"via"`
	Delays                   []uint64      `json:"delays"`
	CumulativeDelay          uint64        `json:"cumulativeDelay"`
	CumulativeDelayFormatted string        `json:"cumulativeDelayFormatted"`
}

func (u UltimateOwnerRecord) toWire() ultimateOwnerRecordWire {
	via := make([]viaStepWire, 0, len(u.Via))
	for _, v := range u.Via {
		via = append(via, v.toWire())
	}
	return ultimateOwnerRecordWire{
		Address:                  u.Address,
		AddressType:              u.AddressType,
		Via:                      via,
		Delays:                   u.Delays,
		CumulativeDelay:          u.CumulativeDelay,
		CumulativeDelayFormatted: u.CumulativeDelayFormatted(),
	}
}

// resolvedFunctionWire is the on-disk shape of a ResolvedFunction
// (spec §6).
type resolvedFunctionWire struct {
	FunctionName   string                    `json:"functionName"`
	DirectOwners   []directOwnerWire         `json:"directOwners"`
	UltimateOwners []ultimateOwnerRecordWire `json:"ultimateOwners"`
	Warnings       []string                  `json:"warnings"`
}

func (f ResolvedFunction) toWire() resolvedFunctionWire {
	direct := make([]directOwnerWire, 0, len(f.DirectOwners))
	for _, o := range f.DirectOwners {
		direct = append(direct, o.toWire())
	}
	ultimate := make([]ultimateOwnerRecordWire, 0, len(f.UltimateOwners))
	for _, u := range f.UltimateOwners {
		ultimate = append(ultimate, u.toWire())
	}
	return resolvedFunctionWire{
		FunctionName:   f.FunctionName,
		DirectOwners:   direct,
		UltimateOwners: ultimate,
		Warnings:       f.Warnings,
	}
}

// resolvedContractWire wraps one contract's function list (spec §6:
// "contracts": {"<address>": {"functions": [...]}}).
type resolvedContractWire struct {
	Functions []resolvedFunctionWire `json:"functions"`
}

// resolvedDocumentWire is the on-disk shape of a ResolvedDocument.
type resolvedDocumentWire struct {
	Version       string                          `json:"version"`
	LastModified  string                          `json:"lastModified"`
	GeneratedFrom provenanceWire                  `json:"generatedFrom"`
	Contracts     map[string]resolvedContractWire `json:"contracts"`
}

// MarshalResolvedDocument renders a ResolvedDocument to its on-disk
// shape (spec §6 "Resolved document").
func MarshalResolvedDocument(d ResolvedDocument) ([]byte, error) {
	contracts := make(map[string]resolvedContractWire, len(d.Contracts))
	for _, c := range d.Contracts {
		fns := make([]resolvedFunctionWire, 0, len(c.Functions))
		for _, f := range c.Functions {
			fns = append(fns, f.toWire())
		}
		contracts[c.Address] = resolvedContractWire{Functions: fns}
	}
	return jsonAPI.MarshalIndent(resolvedDocumentWire{
		Version:      d.Version,
		LastModified: d.LastModified.Format(timeLayout),
		GeneratedFrom: provenanceWire{
			OverridesVersion: d.GeneratedFrom.OverridesVersion,
			DiscoveredHash:   d.GeneratedFrom.DiscoveredHash,
		},
		Contracts: contracts,
	}, "", "  ")
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"
