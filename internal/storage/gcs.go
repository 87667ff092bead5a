package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coachflow/internal/credentials"
	"coachflow/internal/services"
)

const defaultGCSEndpoint = "https://storage.googleapis.com"

// GCS talks to the Cloud Storage JSON API.
type GCS struct {
	endpoint string
	bucket   string
	tokens   credentials.TokenSource
	scope    string
	client   credentials.HTTPDoer
}

// GCSOption customises a GCS backend.
type GCSOption func(*GCS)

// WithGCSEndpoint overrides the API endpoint, e.g. for an emulator.
func WithGCSEndpoint(endpoint string) GCSOption {
	return func(g *GCS) {
		if endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/"); endpoint != "" {
			g.endpoint = endpoint
		}
	}
}

// WithGCSHTTPClient overrides the HTTP client.
func WithGCSHTTPClient(client credentials.HTTPDoer) GCSOption {
	return func(g *GCS) {
		g.client = client
	}
}

// NewGCS returns a GCS backend for bucket. tokens may be nil for
// unauthenticated emulators.
func NewGCS(bucket string, tokens credentials.TokenSource, scope string, opts ...GCSOption) (*GCS, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "init gcs", "bucket is required", nil)
	}
	g := &GCS{
		endpoint: defaultGCSEndpoint,
		bucket:   bucket,
		tokens:   tokens,
		scope:    scope,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type gcsObject struct {
	Name        string    `json:"name"`
	Size        string    `json:"size"`
	ContentType string    `json:"contentType"`
	Updated     time.Time `json:"updated"`
}

type gcsList struct {
	Items         []gcsObject `json:"items"`
	NextPageToken string      `json:"nextPageToken"`
}

func (g *GCS) objectURL(name string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s", g.endpoint, url.PathEscape(g.bucket), url.PathEscape(name))
}

// ListPage lists one page of objects under prefix.
func (g *GCS) ListPage(ctx context.Context, prefix, token string) (Page, error) {
	query := url.Values{}
	query.Set("prefix", prefix)
	if token != "" {
		query.Set("pageToken", token)
	}
	endpoint := fmt.Sprintf("%s/storage/v1/b/%s/o?%s", g.endpoint, url.PathEscape(g.bucket), query.Encode())
	body, err := g.do(ctx, http.MethodGet, endpoint, nil, "", "list", prefix)
	if err != nil {
		return Page{}, err
	}
	var payload gcsList
	if err := json.Unmarshal(body, &payload); err != nil {
		return Page{}, services.Wrap(services.ErrMalformed, "storage", "list", "decode listing", err)
	}
	page := Page{NextToken: payload.NextPageToken}
	for _, item := range payload.Items {
		size, _ := strconv.ParseInt(item.Size, 10, 64)
		page.Objects = append(page.Objects, Object{
			Name:        item.Name,
			Size:        size,
			ContentType: item.ContentType,
			Updated:     item.Updated,
		})
	}
	return page, nil
}

// Get downloads an object.
func (g *GCS) Get(ctx context.Context, name string) ([]byte, error) {
	return g.do(ctx, http.MethodGet, g.objectURL(name)+"?alt=media", nil, "", "get", name)
}

// Put uploads data as a single-request media upload.
func (g *GCS) Put(ctx context.Context, name string, data []byte, contentType string) error {
	query := url.Values{}
	query.Set("uploadType", "media")
	query.Set("name", name)
	endpoint := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?%s", g.endpoint, url.PathEscape(g.bucket), query.Encode())
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := g.do(ctx, http.MethodPost, endpoint, data, contentType, "put", name)
	return err
}

// Copy copies src to dst within the bucket.
func (g *GCS) Copy(ctx context.Context, src, dst string) error {
	endpoint := fmt.Sprintf("%s/copyTo/b/%s/o/%s", g.objectURL(src), url.PathEscape(g.bucket), url.PathEscape(dst))
	_, err := g.do(ctx, http.MethodPost, endpoint, nil, "", "copy", src)
	return err
}

// Delete removes an object.
func (g *GCS) Delete(ctx context.Context, name string) error {
	_, err := g.do(ctx, http.MethodDelete, g.objectURL(name), nil, "", "delete", name)
	return err
}

func (g *GCS) do(ctx context.Context, method, endpoint string, payload []byte, contentType, operation, name string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if g.tokens != nil {
		token, err := g.tokens.Token(ctx, g.scope)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "storage", operation, name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "storage", operation, "read response", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, notFound(name)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, services.Wrap(services.HTTPStatusMarker(resp.StatusCode), "storage", operation,
			fmt.Sprintf("%s: status %d: %s", name, resp.StatusCode, truncate(string(body), 200)), nil)
	}
	return body, nil
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
