package impl

import (
	"context"

	"github.com/onchainwatch/permresolve/internal/permission"
)

// MockDiscoveredStore is a fixed in-memory DiscoveredStore, for tests and
// demos that don't need a real Discovered Store backend.
type MockDiscoveredStore struct {
	Snapshot permission.DiscoveredSnapshot
}

// NewMockDiscoveredStore wraps a fixed snapshot as a DiscoveredStore.
func NewMockDiscoveredStore(snapshot permission.DiscoveredSnapshot) *MockDiscoveredStore {
	return &MockDiscoveredStore{Snapshot: snapshot}
}

// Load returns the fixed snapshot.
func (m *MockDiscoveredStore) Load(context.Context) (permission.DiscoveredSnapshot, error) {
	return m.Snapshot, nil
}

// MockOverridesStore is a fixed in-memory OverridesStore. Save overwrites
// the in-memory document rather than persisting it anywhere.
type MockOverridesStore struct {
	Doc permission.OverridesDocument
}

// NewMockOverridesStore wraps a fixed document as an OverridesStore.
func NewMockOverridesStore(doc permission.OverridesDocument) *MockOverridesStore {
	return &MockOverridesStore{Doc: doc}
}

// Load returns the current in-memory document.
func (m *MockOverridesStore) Load(context.Context) (permission.OverridesDocument, error) {
	return m.Doc, nil
}

// Save replaces the in-memory document.
func (m *MockOverridesStore) Save(_ context.Context, doc permission.OverridesDocument) error {
	m.Doc = doc
	return nil
}

// MockResolvedStore is an in-memory ResolvedStore that records every
// document it was asked to save, most recent last.
type MockResolvedStore struct {
	Saved []permission.ResolvedDocument
}

// NewMockResolvedStore builds an empty MockResolvedStore.
func NewMockResolvedStore() *MockResolvedStore {
	return &MockResolvedStore{}
}

// Save appends doc to Saved.
func (m *MockResolvedStore) Save(_ context.Context, doc permission.ResolvedDocument) error {
	m.Saved = append(m.Saved, doc)
	return nil
}

// Last returns the most recently saved document, or the zero value if
// none has been saved yet.
func (m *MockResolvedStore) Last() permission.ResolvedDocument {
	if len(m.Saved) == 0 {
		return permission.ResolvedDocument{}
	}
	return m.Saved[len(m.Saved)-1]
}
