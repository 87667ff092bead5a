// Package completion finishes a transcription job: it stores the transcript
// next to the other transcripts and moves the recording out of the incoming
// namespace. Every step is safe to repeat.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"coachflow/internal/logging"
	"coachflow/internal/naming"
	"coachflow/internal/services"
	"coachflow/internal/storage"
)

// Step identifies the completion step that failed.
type Step string

const (
	StepFetch    Step = "fetch"
	StepUpload   Step = "upload"
	StepRelocate Step = "relocate"
)

// StepError wraps a failure with the step that produced it.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("completion %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step recorded in err, if any.
func FailedStep(err error) (Step, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step, true
	}
	return "", false
}

// TranscriptFetcher is the slice of the transcription client completion needs.
type TranscriptFetcher interface {
	Transcript(ctx context.Context, jobID, format string) ([]byte, error)
}

// Job identifies a finished transcription job.
type Job struct {
	JobID         string
	FileName      string
	TrackingTitle string
}

// Prefixes locates the storage namespaces.
type Prefixes struct {
	Incoming    string
	Processed   string
	Transcripts string
}

// Handler completes jobs.
type Handler struct {
	fetcher  TranscriptFetcher
	store    storage.Store
	prefixes Prefixes
	format   string
	logger   *slog.Logger
}

// NewHandler wires a completion handler.
func NewHandler(fetcher TranscriptFetcher, store storage.Store, prefixes Prefixes, format string, logger *slog.Logger) *Handler {
	if format == "" {
		format = "txt"
	}
	return &Handler{
		fetcher:  fetcher,
		store:    store,
		prefixes: prefixes,
		format:   format,
		logger:   logging.NewComponentLogger(logger, "completion"),
	}
}

// Complete fetches, uploads and relocates. Errors are *StepError.
func (h *Handler) Complete(ctx context.Context, job Job) error {
	name := DestinationName(job)
	ctx = services.WithFileName(ctx, name)
	logger := logging.WithContext(ctx, h.logger).With(logging.String(logging.FieldJobID, job.JobID))

	body, err := h.fetcher.Transcript(ctx, job.JobID, h.format)
	if err != nil {
		return &StepError{Step: StepFetch, Err: err}
	}
	if strings.TrimSpace(string(body)) == "" {
		logging.WarnWithContext(logger, "transcript is empty",
			"empty_transcript",
			logging.String(logging.FieldErrorHint, "check whether the session recording has audio"),
			logging.String(logging.FieldImpact, "an empty transcript is delivered"),
		)
	}

	transcript := storage.Join(h.prefixes.Transcripts, naming.TranscriptName(name))
	if err := h.store.Put(ctx, transcript, body, "text/plain; charset=utf-8"); err != nil {
		return &StepError{Step: StepUpload, Err: err}
	}

	if err := h.relocate(ctx, logger, name); err != nil {
		return &StepError{Step: StepRelocate, Err: err}
	}

	logger.Info("job completed",
		logging.String(logging.FieldEventType, "completion_succeeded"),
		logging.String("transcript", transcript),
		logging.Int("transcript_bytes", len(body)),
	)
	return nil
}

// relocate moves the recording by copy then delete. A missing source on copy
// means an earlier pass already moved it.
func (h *Handler) relocate(ctx context.Context, logger *slog.Logger, name string) error {
	src := storage.Join(h.prefixes.Incoming, name)
	dst := storage.Join(h.prefixes.Processed, name)

	if err := h.store.Copy(ctx, src, dst); err != nil {
		if missingObject(err) {
			logger.Debug("recording already relocated", logging.String("source", src))
			return nil
		}
		return err
	}
	if err := h.store.Delete(ctx, src); err != nil && !missingObject(err) {
		return err
	}
	return nil
}

// missingObject reports a not-found from either the storage layer or a
// backend that classifies its errors with the service markers.
func missingObject(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, services.ErrNotFound)
}

// DestinationName prefers the provider's tracking title when it is a
// canonical recording name and falls back to the ledger file name.
func DestinationName(job Job) string {
	if name, ok := naming.CanonicalTitle(job.TrackingTitle); ok {
		return name
	}
	return job.FileName
}
