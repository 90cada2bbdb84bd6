package store

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Memory is an in-memory Store.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]map[string]*Object
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]map[string]*Object), now: time.Now}
}

func (m *Memory) Get(ctx context.Context, kind, id string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.objects[kind][id]
	if !ok {
		return nil, notFound(kind, id)
	}
	return o.Clone(), nil
}

func (m *Memory) Put(ctx context.Context, obj *Object) error {
	if err := obj.Validate(); err != nil {
		return err
	}
	c := obj.Clone()
	c.Updated = m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects[c.Kind] == nil {
		m.objects[c.Kind] = make(map[string]*Object)
	}
	m.objects[c.Kind][c.ID] = c
	return nil
}

func (m *Memory) List(ctx context.Context, kind string) ([]*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Object, 0, len(m.objects[kind]))
	for _, o := range m.objects[kind] {
		out = append(out, o.Clone())
	}
	slices.SortFunc(out, byID)
	return out, nil
}

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
