package testsupport

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"coachflow/internal/storage"
)

// MemStore is an in-memory storage.Store with per-operation failure injection.
type MemStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	PageSize int

	// Fail* map an object name to the error the operation returns.
	FailGet    map[string]error
	FailPut    map[string]error
	FailCopy   map[string]error
	FailDelete map[string]error
}

// NewMemStore returns an empty store with a small page size so pagination is exercised.
func NewMemStore() *MemStore {
	return &MemStore{
		objects:    make(map[string][]byte),
		types:      make(map[string]string),
		PageSize:   2,
		FailGet:    make(map[string]error),
		FailPut:    make(map[string]error),
		FailCopy:   make(map[string]error),
		FailDelete: make(map[string]error),
	}
}

// Seed stores data without going through failure injection.
func (m *MemStore) Seed(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = append([]byte(nil), data...)
}

// Has reports whether name exists.
func (m *MemStore) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[name]
	return ok
}

// Names returns every object name, sorted.
func (m *MemStore) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.objects))
}

func (m *MemStore) ListPage(_ context.Context, prefix, token string) (storage.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	start := 0
	if token != "" {
		start = sort.SearchStrings(names, token)
	}
	size := m.PageSize
	if size <= 0 {
		size = len(names)
	}
	end := min(start+size, len(names))
	var page storage.Page
	for _, name := range names[start:end] {
		page.Objects = append(page.Objects, storage.Object{Name: name, Size: int64(len(m.objects[name])), ContentType: m.types[name]})
	}
	if end < len(names) {
		page.NextToken = names[end]
	}
	return page, nil
}

func (m *MemStore) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailGet[name]; err != nil {
		return nil, err
	}
	data, ok := m.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemStore) Put(_ context.Context, name string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailPut[name]; err != nil {
		return err
	}
	m.objects[name] = append([]byte(nil), data...)
	m.types[name] = contentType
	return nil
}

func (m *MemStore) Copy(_ context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailCopy[src]; err != nil {
		return err
	}
	data, ok := m.objects[src]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, src)
	}
	m.objects[dst] = append([]byte(nil), data...)
	m.types[dst] = m.types[src]
	return nil
}

func (m *MemStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailDelete[name]; err != nil {
		return err
	}
	if _, ok := m.objects[name]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	delete(m.objects, name)
	delete(m.types, name)
	return nil
}
