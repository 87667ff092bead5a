// Package folders abstracts the hierarchical file store that holds the
// recording source folder and the per-student delivery folders.
package folders

import (
	"context"
	"fmt"

	"coachflow/internal/services"
)

// FolderMimeType marks folders in the drive backend.
const FolderMimeType = "application/vnd.google-apps.folder"

// ErrNotFound is returned (wrapped) when a folder or file does not exist.
var ErrNotFound = fmt.Errorf("folder item %w", services.ErrNotFound)

// Folder describes a container.
type Folder struct {
	ID   string
	Name string
}

// File describes a file inside a folder.
type File struct {
	ID       string
	Name     string
	MimeType string
	Size     int64
}

// Filter narrows ListFiles. Empty fields match everything.
type Filter struct {
	Name     string
	MimeType string
}

// Matches reports whether f satisfies the filter.
func (flt Filter) Matches(f File) bool {
	if flt.Name != "" && f.Name != flt.Name {
		return false
	}
	if flt.MimeType != "" && f.MimeType != flt.MimeType {
		return false
	}
	return true
}

// Store is the folder store contract.
type Store interface {
	Folder(ctx context.Context, id string) (Folder, error)
	ListFiles(ctx context.Context, parent string, filter Filter) ([]File, error)
	CreateFile(ctx context.Context, parent, name string, content []byte, mimeType string) (File, error)
	RenameFile(ctx context.Context, id, name string) error
	TrashFile(ctx context.Context, id string) error
}

// Exists reports whether parent already holds a file called name.
func Exists(ctx context.Context, s Store, parent, name string) (bool, error) {
	files, err := s.ListFiles(ctx, parent, Filter{Name: name})
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
