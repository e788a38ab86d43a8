package cart

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/example/ec-storefront/internal/domain/catalog"
)

// memStore is an in-memory Store with version checking that records calls.
type memStore struct {
	mu    sync.Mutex
	carts map[string][]byte

	LoadCalls   int
	SaveCalls   int
	DeleteCalls []Owner
	LoadErr     error
	SaveErr     error
	DeleteErr   error
}

func newMemStore() *memStore {
	return &memStore{carts: make(map[string][]byte)}
}

func (m *memStore) Load(_ context.Context, owner Owner) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadCalls++
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	raw, ok := m.carts[owner.Key()]
	if !ok {
		return nil, ErrCartNotFound
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (m *memStore) Save(_ context.Context, c *Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if raw, ok := m.carts[c.Owner.Key()]; ok {
		var stored Cart
		if err := json.Unmarshal(raw, &stored); err != nil {
			return err
		}
		if stored.Version != c.Version {
			return ErrCartConflict
		}
	}
	c.Version++
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	m.carts[c.Owner.Key()] = raw
	return nil
}

func (m *memStore) Delete(_ context.Context, owner Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, owner)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.carts, owner.Key())
	return nil
}

func (m *memStore) has(owner Owner) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.carts[owner.Key()]
	return ok
}

// seed stores a cart as-is, bypassing version checks.
func (m *memStore) seed(c *Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, _ := json.Marshal(c)
	m.carts[c.Owner.Key()] = raw
}

type fakeCatalog struct {
	variants map[string]*catalog.Variant
}

func newFakeCatalog(variants ...*catalog.Variant) *fakeCatalog {
	f := &fakeCatalog{variants: make(map[string]*catalog.Variant)}
	for _, v := range variants {
		f.variants[v.ID] = v
	}
	return f
}

func (f *fakeCatalog) GetVariant(_ context.Context, id string) (*catalog.Variant, error) {
	v, ok := f.variants[id]
	if !ok {
		return nil, catalog.ErrVariantNotFound
	}
	return v, nil
}
