// Package transcription is the HTTP client for the external transcription
// pipeline: job submission, status polling and transcript retrieval.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coachflow/internal/credentials"
	"coachflow/internal/services"
)

// ErrProtocol marks a 2xx response whose body has an unrecognized shape in
// the job-description API.
var ErrProtocol = errors.New("transcription protocol violation")

// maxBodyBytes caps a single response body; larger bodies are rejected.
var maxBodyBytes int64 = 32 << 20

// Client is the transcription provider contract.
type Client interface {
	Submit(ctx context.Context, fileRef, name string) (SubmitResponse, error)
	CreateJob(ctx context.Context, fileRef, name string) (JobDescription, error)
	Status(ctx context.Context, jobID string) (JobStatus, error)
	Transcript(ctx context.Context, jobID, format string) ([]byte, error)
}

// SubmitResponse is the body returned by the simple submit endpoint.
type SubmitResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// JobDescription is the job resource returned by the job-description API.
type JobDescription struct {
	Name          string    `json:"name"`
	State         string    `json:"state"`
	TrackingTitle string    `json:"trackingTitle"`
	CreateTime    time.Time `json:"createTime"`
}

// ID extracts the job identifier from the resource name ("jobs/<id>").
func (j JobDescription) ID() string {
	id, ok := strings.CutPrefix(j.Name, "jobs/")
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return strings.TrimSpace(id)
}

// JobStatus is the provider's view of a job.
type JobStatus struct {
	Status        string `json:"status"`
	TrackingTitle string `json:"trackingTitle"`
}

type submitRequest struct {
	FileID string `json:"fileId"`
	Name   string `json:"name"`
}

// Option customises HTTPClient construction.
type Option func(*HTTPClient)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client credentials.HTTPDoer) Option {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithTokenSource authenticates requests with a bearer token for scope.
func WithTokenSource(tokens credentials.TokenSource, scope string) Option {
	return func(c *HTTPClient) {
		c.tokens = tokens
		c.scope = scope
	}
}

// WithAPIKey sends a static API key header.
func WithAPIKey(key string) Option {
	return func(c *HTTPClient) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// HTTPClient implements Client over the pipeline's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	tokens  credentials.TokenSource
	scope   string
	client  credentials.HTTPDoer
}

// NewHTTPClient returns a client for baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration, opts ...Option) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcription", "init", "base url is required", nil)
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	c := &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit posts a recording to the simple submit endpoint. A response without
// a jobId is returned as-is; callers decide how to record it.
func (c *HTTPClient) Submit(ctx context.Context, fileRef, name string) (SubmitResponse, error) {
	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/submit", submitRequest{FileID: fileRef, Name: name}, "submit")
	if err != nil {
		return SubmitResponse{}, err
	}
	var resp SubmitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SubmitResponse{}, services.Wrap(services.ErrMalformed, "transcription", "submit", "decode response", err)
	}
	resp.JobID = strings.TrimSpace(resp.JobID)
	return resp, nil
}

// CreateJob creates a job resource. A 2xx body that is not a job resource is
// reported as ErrProtocol.
func (c *HTTPClient) CreateJob(ctx context.Context, fileRef, name string) (JobDescription, error) {
	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/jobs", submitRequest{FileID: fileRef, Name: name}, "create job")
	if err != nil {
		return JobDescription{}, err
	}
	var job JobDescription
	if err := json.Unmarshal(body, &job); err != nil {
		return JobDescription{}, fmt.Errorf("%w: create job: decode body: %w", ErrProtocol, err)
	}
	if job.ID() == "" {
		return JobDescription{}, fmt.Errorf("%w: create job: body is not a job resource: %s", ErrProtocol, truncate(string(body), 200))
	}
	return job, nil
}

// Status fetches the current job state.
func (c *HTTPClient) Status(ctx context.Context, jobID string) (JobStatus, error) {
	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/jobs/"+url.PathEscape(jobID), nil, "status")
	if err != nil {
		return JobStatus{}, err
	}
	var status JobStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return JobStatus{}, services.Wrap(services.ErrMalformed, "transcription", "status", "decode response", err)
	}
	status.Status = strings.TrimSpace(status.Status)
	if status.Status == "" {
		return JobStatus{}, services.Wrap(services.ErrMalformed, "transcription", "status", "response has no status", nil)
	}
	return status, nil
}

// Transcript downloads the transcript body in the requested format.
func (c *HTTPClient) Transcript(ctx context.Context, jobID, format string) ([]byte, error) {
	if format == "" {
		format = "txt"
	}
	endpoint := fmt.Sprintf("%s/jobs/%s/transcript?format=%s", c.baseURL, url.PathEscape(jobID), url.QueryEscape(format))
	return c.do(ctx, http.MethodGet, endpoint, nil, "transcript")
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, payload any, operation string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", operation, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.tokens != nil && c.scope != "" {
		token, err := c.tokens.Token(ctx, c.scope)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "transcription", operation, "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "transcription", operation, "read response", err)
	}
	if int64(len(body)) > maxBodyBytes {
		return nil, services.Wrap(services.ErrMalformed, "transcription", operation,
			fmt.Sprintf("response body exceeds %d bytes", maxBodyBytes), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, services.Wrap(services.HTTPStatusMarker(resp.StatusCode), "transcription", operation,
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(body), 200)), nil)
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
