package folders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coachflow/internal/credentials"
	"coachflow/internal/services"
)

const defaultDriveBaseURL = "https://www.googleapis.com"

// Drive talks to the Drive v3 REST API.
type Drive struct {
	baseURL string
	tokens  credentials.TokenSource
	scope   string
	client  credentials.HTTPDoer
}

// NewDrive returns a Drive backend. tokens may be nil for test servers.
func NewDrive(baseURL string, tokens credentials.TokenSource, scope string, client credentials.HTTPDoer) *Drive {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultDriveBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Drive{baseURL: baseURL, tokens: tokens, scope: scope, client: client}
}

type driveFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     string `json:"size"`
}

func (f driveFile) toFile() File {
	size, _ := strconv.ParseInt(f.Size, 10, 64)
	return File{ID: f.ID, Name: f.Name, MimeType: f.MimeType, Size: size}
}

type driveList struct {
	Files         []driveFile `json:"files"`
	NextPageToken string      `json:"nextPageToken"`
}

type driveError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// Folder fetches folder metadata and verifies it is a folder.
func (d *Drive) Folder(ctx context.Context, id string) (Folder, error) {
	query := url.Values{}
	query.Set("fields", "id,name,mimeType")
	query.Set("supportsAllDrives", "true")
	endpoint := fmt.Sprintf("%s/drive/v3/files/%s?%s", d.baseURL, url.PathEscape(id), query.Encode())

	var meta driveFile
	if err := d.doJSON(ctx, http.MethodGet, endpoint, nil, &meta, "folder", id); err != nil {
		return Folder{}, err
	}
	if meta.MimeType != FolderMimeType {
		return Folder{}, services.Wrap(services.ErrValidation, "folders", "folder", id+" is not a folder", nil)
	}
	return Folder{ID: meta.ID, Name: meta.Name}, nil
}

// ListFiles lists non-trashed children of parent matching filter.
func (d *Drive) ListFiles(ctx context.Context, parent string, filter Filter) ([]File, error) {
	clauses := []string{fmt.Sprintf("'%s' in parents", escapeQuery(parent)), "trashed = false"}
	if filter.Name != "" {
		clauses = append(clauses, fmt.Sprintf("name = '%s'", escapeQuery(filter.Name)))
	}
	if filter.MimeType != "" {
		clauses = append(clauses, fmt.Sprintf("mimeType = '%s'", escapeQuery(filter.MimeType)))
	}

	var (
		files []File
		token string
	)
	for {
		query := url.Values{}
		query.Set("q", strings.Join(clauses, " and "))
		query.Set("fields", "nextPageToken,files(id,name,mimeType,size)")
		query.Set("pageSize", "1000")
		query.Set("supportsAllDrives", "true")
		query.Set("includeItemsFromAllDrives", "true")
		if token != "" {
			query.Set("pageToken", token)
		}
		var page driveList
		endpoint := fmt.Sprintf("%s/drive/v3/files?%s", d.baseURL, query.Encode())
		if err := d.doJSON(ctx, http.MethodGet, endpoint, nil, &page, "list", parent); err != nil {
			return nil, err
		}
		for _, f := range page.Files {
			files = append(files, f.toFile())
		}
		if page.NextPageToken == "" || page.NextPageToken == token {
			return files, nil
		}
		token = page.NextPageToken
	}
}

// CreateFile uploads content into parent with a multipart request.
func (d *Drive) CreateFile(ctx context.Context, parent, name string, content []byte, mimeType string) (File, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaPart, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return File{}, fmt.Errorf("build upload: %w", err)
	}
	meta := map[string]any{"name": name, "parents": []string{parent}}
	if mimeType != "" {
		meta["mimeType"] = mimeType
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return File{}, fmt.Errorf("encode upload metadata: %w", err)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	mediaPart, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {mimeType}})
	if err != nil {
		return File{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := mediaPart.Write(content); err != nil {
		return File{}, fmt.Errorf("build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return File{}, fmt.Errorf("build upload: %w", err)
	}

	query := url.Values{}
	query.Set("uploadType", "multipart")
	query.Set("supportsAllDrives", "true")
	query.Set("fields", "id,name,mimeType,size")
	endpoint := fmt.Sprintf("%s/upload/drive/v3/files?%s", d.baseURL, query.Encode())

	var created driveFile
	err = d.do(ctx, http.MethodPost, endpoint, body.Bytes(), "multipart/related; boundary="+writer.Boundary(), &created, "create", parent)
	if err != nil {
		return File{}, err
	}
	return created.toFile(), nil
}

// RenameFile changes a file's name in place.
func (d *Drive) RenameFile(ctx context.Context, id, name string) error {
	return d.patch(ctx, id, map[string]any{"name": name}, "rename")
}

// TrashFile moves a file to the trash.
func (d *Drive) TrashFile(ctx context.Context, id string) error {
	return d.patch(ctx, id, map[string]any{"trashed": true}, "trash")
}

func (d *Drive) patch(ctx context.Context, id string, fields map[string]any, operation string) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", operation, err)
	}
	endpoint := fmt.Sprintf("%s/drive/v3/files/%s?supportsAllDrives=true", d.baseURL, url.PathEscape(id))
	return d.do(ctx, http.MethodPatch, endpoint, payload, "application/json", nil, operation, id)
}

func (d *Drive) doJSON(ctx context.Context, method, endpoint string, payload []byte, out any, operation, subject string) error {
	contentType := ""
	if payload != nil {
		contentType = "application/json"
	}
	return d.do(ctx, method, endpoint, payload, contentType, out, operation, subject)
}

func (d *Drive) do(ctx context.Context, method, endpoint string, payload []byte, contentType string, out any, operation, subject string) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if d.tokens != nil {
		token, err := d.tokens.Token(ctx, d.scope)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "folders", operation, subject, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "folders", operation, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyDrive(resp.StatusCode, body, operation, subject)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return services.Wrap(services.ErrMalformed, "folders", operation, "decode response", err)
	}
	return nil
}

func classifyDrive(status int, body []byte, operation, subject string) error {
	if status == http.StatusNotFound {
		return notFound(subject)
	}
	var payload driveError
	_ = json.Unmarshal(body, &payload)
	for _, e := range payload.Error.Errors {
		switch e.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return services.Wrap(services.ErrRateLimited, "folders", operation, subject, nil)
		}
	}
	message := payload.Error.Message
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	return services.Wrap(services.HTTPStatusMarker(status), "folders", operation,
		fmt.Sprintf("%s: status %d: %s", subject, status, message), nil)
}

func escapeQuery(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `'`, `\'`)
}
