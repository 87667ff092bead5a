package testsupport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"coachflow/internal/folders"
)

type memFile struct {
	folders.File
	parent  string
	content []byte
	trashed bool
}

// MemFolders is an in-memory folders.Store with failure injection.
type MemFolders struct {
	mu      sync.Mutex
	folders map[string]string
	files   map[string]*memFile
	nextID  int

	// FailRename maps a file ID to the error RenameFile returns.
	FailRename map[string]error
	// FailCreate maps a parent folder ID to the error CreateFile returns.
	FailCreate map[string]error
	// FailList maps a parent folder ID to the error ListFiles returns.
	FailList  map[string]error
	FailTrash error
}

// NewMemFolders returns an empty store.
func NewMemFolders() *MemFolders {
	return &MemFolders{
		folders:    make(map[string]string),
		files:      make(map[string]*memFile),
		FailRename: make(map[string]error),
		FailCreate: make(map[string]error),
		FailList:   make(map[string]error),
	}
}

// AddFolder registers a folder.
func (m *MemFolders) AddFolder(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders[id] = name
}

// AddFile registers a file with a caller-chosen ID.
func (m *MemFolders) AddFile(parent, id, name, mimeType string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id] = &memFile{
		File:    folders.File{ID: id, Name: name, MimeType: mimeType, Size: int64(len(content))},
		parent:  parent,
		content: append([]byte(nil), content...),
	}
}

// Files returns the non-trashed files in parent sorted by name.
func (m *MemFolders) Files(parent string) []folders.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked(parent, folders.Filter{})
}

// Content returns the content of the named non-trashed file in parent.
func (m *MemFolders) Content(parent, name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files {
		if f.parent == parent && f.Name == name && !f.trashed {
			return append([]byte(nil), f.content...), true
		}
	}
	return nil, false
}

// Trashed reports whether the file with id was trashed.
func (m *MemFolders) Trashed(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	return ok && f.trashed
}

func (m *MemFolders) Folder(_ context.Context, id string) (folders.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.folders[id]
	if !ok {
		return folders.Folder{}, fmt.Errorf("%w: %s", folders.ErrNotFound, id)
	}
	return folders.Folder{ID: id, Name: name}, nil
}

func (m *MemFolders) ListFiles(_ context.Context, parent string, filter folders.Filter) ([]folders.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailList[parent]; err != nil {
		return nil, err
	}
	if _, ok := m.folders[parent]; !ok {
		return nil, fmt.Errorf("%w: %s", folders.ErrNotFound, parent)
	}
	return m.listLocked(parent, filter), nil
}

func (m *MemFolders) listLocked(parent string, filter folders.Filter) []folders.File {
	var out []folders.File
	for _, f := range m.files {
		if f.parent == parent && !f.trashed && filter.Matches(f.File) {
			out = append(out, f.File)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *MemFolders) CreateFile(_ context.Context, parent, name string, content []byte, mimeType string) (folders.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailCreate[parent]; err != nil {
		return folders.File{}, err
	}
	if _, ok := m.folders[parent]; !ok {
		return folders.File{}, fmt.Errorf("%w: %s", folders.ErrNotFound, parent)
	}
	m.nextID++
	id := fmt.Sprintf("created-%04d", m.nextID)
	f := &memFile{
		File:    folders.File{ID: id, Name: name, MimeType: mimeType, Size: int64(len(content))},
		parent:  parent,
		content: append([]byte(nil), content...),
	}
	m.files[id] = f
	return f.File, nil
}

func (m *MemFolders) RenameFile(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailRename[id]; err != nil {
		return err
	}
	f, ok := m.files[id]
	if !ok || f.trashed {
		return fmt.Errorf("%w: %s", folders.ErrNotFound, id)
	}
	f.Name = name
	return nil
}

func (m *MemFolders) TrashFile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTrash != nil {
		return m.FailTrash
	}
	f, ok := m.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", folders.ErrNotFound, id)
	}
	f.trashed = true
	return nil
}
