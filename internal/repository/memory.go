package repository

import (
	"context"
	"sync"
	"time"

	"github.com/dharsanguruparan/ModelDrop/internal/model"
)

// MemoryStore keeps asset records in memory with the same contract as
// AssetRepository. It backs tests and `modeldrop serve --memory`.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byPath map[string]*model.Asset
	order  []*model.Asset
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byPath: make(map[string]*model.Asset)}
}

// Create inserts a copy of asset, enforcing resource_path uniqueness.
func (m *MemoryStore) Create(_ context.Context, asset *model.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byPath[asset.ResourcePath]; ok {
		return ErrConflict
	}
	m.nextID++
	asset.ID = m.nextID
	asset.CreatedAt = time.Now().UTC()
	stored := *asset
	m.byPath[asset.ResourcePath] = &stored
	m.order = append(m.order, &stored)
	return nil
}

// GetByResourcePath returns a copy of the matching record.
func (m *MemoryStore) GetByResourcePath(_ context.Context, id string) (*model.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byPath[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// ExistsByResourcePath reports whether a record owns id.
func (m *MemoryStore) ExistsByResourcePath(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byPath[id]
	return ok, nil
}

// List returns copies of all records, most recent first.
func (m *MemoryStore) List(_ context.Context) ([]*model.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Asset, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		cp := *m.order[i]
		out = append(out, &cp)
	}
	return out, nil
}

// CheckReady always succeeds; there is no backend to lose.
func (m *MemoryStore) CheckReady(context.Context) error {
	return nil
}
