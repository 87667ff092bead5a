package testsupport

import (
	"context"
	"fmt"
	"sync"

	"coachflow/internal/services"
	"coachflow/internal/transcription"
)

// FakeTranscriber is a scripted transcription.Client.
type FakeTranscriber struct {
	mu sync.Mutex

	// SubmitResponses and SubmitErrors are keyed by canonical name. Names with
	// no entry get a generated job ID.
	SubmitResponses map[string]transcription.SubmitResponse
	SubmitErrors    map[string]error
	// CreateJobErrors is keyed by canonical name.
	CreateJobErrors map[string]error

	Statuses       map[string]transcription.JobStatus
	StatusErrors   map[string]error
	Transcripts    map[string][]byte
	TranscriptErrs map[string]error

	Submitted     []string
	SubmittedIDs  []string
	StatusCalls   map[string]int
	TranscriptReq map[string]int
	nextJob       int
}

// NewFakeTranscriber returns an empty fake.
func NewFakeTranscriber() *FakeTranscriber {
	return &FakeTranscriber{
		SubmitResponses: make(map[string]transcription.SubmitResponse),
		SubmitErrors:    make(map[string]error),
		CreateJobErrors: make(map[string]error),
		Statuses:        make(map[string]transcription.JobStatus),
		StatusErrors:    make(map[string]error),
		Transcripts:     make(map[string][]byte),
		TranscriptErrs:  make(map[string]error),
		StatusCalls:     make(map[string]int),
		TranscriptReq:   make(map[string]int),
	}
}

// SetStatus scripts the status returned for jobID.
func (f *FakeTranscriber) SetStatus(jobID, status, trackingTitle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Statuses[jobID] = transcription.JobStatus{Status: status, TrackingTitle: trackingTitle}
}

func (f *FakeTranscriber) Submit(_ context.Context, fileID, name string) (transcription.SubmitResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Submitted = append(f.Submitted, name)
	f.SubmittedIDs = append(f.SubmittedIDs, fileID)
	if err := f.SubmitErrors[name]; err != nil {
		return transcription.SubmitResponse{}, err
	}
	if resp, ok := f.SubmitResponses[name]; ok {
		return resp, nil
	}
	f.nextJob++
	return transcription.SubmitResponse{JobID: fmt.Sprintf("job-%d", f.nextJob), Status: "submitted"}, nil
}

func (f *FakeTranscriber) CreateJob(_ context.Context, fileID, name string) (transcription.JobDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Submitted = append(f.Submitted, name)
	f.SubmittedIDs = append(f.SubmittedIDs, fileID)
	if err := f.CreateJobErrors[name]; err != nil {
		return transcription.JobDescription{}, err
	}
	f.nextJob++
	return transcription.JobDescription{Name: fmt.Sprintf("jobs/job-%d", f.nextJob), State: "QUEUED"}, nil
}

func (f *FakeTranscriber) Status(_ context.Context, jobID string) (transcription.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StatusCalls[jobID]++
	if err := f.StatusErrors[jobID]; err != nil {
		return transcription.JobStatus{}, err
	}
	status, ok := f.Statuses[jobID]
	if !ok {
		return transcription.JobStatus{}, services.Wrap(services.ErrNotFound, "fake", "status", jobID, nil)
	}
	return status, nil
}

func (f *FakeTranscriber) Transcript(_ context.Context, jobID, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TranscriptReq[jobID]++
	if err := f.TranscriptErrs[jobID]; err != nil {
		return nil, err
	}
	body, ok := f.Transcripts[jobID]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "fake", "transcript", jobID, nil)
	}
	return body, nil
}
