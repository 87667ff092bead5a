// Package storage abstracts the object store that holds incoming recordings,
// processed recordings and transcripts. Backends exist for the GCS JSON API,
// S3-compatible stores and MinIO.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"coachflow/internal/services"
)

// ErrNotFound is returned (wrapped) when an object does not exist.
var ErrNotFound = fmt.Errorf("object %w", services.ErrNotFound)

// Object describes a stored object.
type Object struct {
	Name        string
	Size        int64
	ContentType string
	Updated     time.Time
}

// BaseName returns the final path segment of the object name.
func (o Object) BaseName() string {
	return path.Base(o.Name)
}

// Page is one page of a listing. An empty NextToken ends the listing.
type Page struct {
	Objects   []Object
	NextToken string
}

// Store is the object store contract used by the pipeline stages.
type Store interface {
	ListPage(ctx context.Context, prefix, token string) (Page, error)
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Copy(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, name string) error
}

// maxPages guards against a backend that keeps returning the same token.
const maxPages = 10000

// List follows pagination tokens and returns every object under prefix.
func List(ctx context.Context, s Store, prefix string) ([]Object, error) {
	var (
		objects []Object
		token   string
	)
	for range maxPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.ListPage(ctx, prefix, token)
		if err != nil {
			return nil, err
		}
		objects = append(objects, page.Objects...)
		if page.NextToken == "" || page.NextToken == token {
			return objects, nil
		}
		token = page.NextToken
	}
	return nil, services.Wrap(services.ErrMalformed, "storage", "list", "pagination did not terminate", nil)
}

// Join concatenates a prefix and an object name, inserting a slash when the
// prefix does not already end in one.
func Join(prefix, name string) string {
	name = strings.TrimLeft(name, "/")
	if prefix == "" {
		return name
	}
	if strings.HasSuffix(prefix, "/") {
		return prefix + name
	}
	return prefix + "/" + name
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, name)
}
