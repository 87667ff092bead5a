// Package discovery scans the recording source folder, renames new
// recordings to their canonical names and records each one in the tracking
// ledger exactly once before handing it to submission.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"coachflow/internal/folders"
	"coachflow/internal/logging"
	"coachflow/internal/naming"
	"coachflow/internal/services"
	"coachflow/internal/stage"
	"coachflow/internal/submission"
	"coachflow/internal/tracking"
)

// Summary counters.
const (
	OutcomeSeen          = "seen"
	OutcomeTracked       = "skipped_tracked"
	OutcomeUnparseable   = "unparseable"
	OutcomeRenamed       = "renamed"
	OutcomeRenameFailed  = "rename_failed"
	OutcomeSubmitted     = "submitted"
	OutcomeSubmitFailed  = "submit_failed"
	OutcomeProtocolError = "protocol_error"
)

// Submitter is the submission contract the engine depends on.
type Submitter interface {
	Submit(ctx context.Context, fileRef, name string) (submission.Outcome, error)
}

// Options configures the scan.
type Options struct {
	SourceFolderID string
	MimeType       string
}

// Engine runs one discovery pass.
type Engine struct {
	folders   folders.Store
	ledger    *tracking.Ledger
	submitter Submitter
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

// NewEngine wires an engine.
func NewEngine(store folders.Store, ledger *tracking.Ledger, submitter Submitter, opts Options, logger *slog.Logger) *Engine {
	return &Engine{
		folders:   store,
		ledger:    ledger,
		submitter: submitter,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "discovery"),
		now:       time.Now,
	}
}

// SetClock overrides the time source (tests).
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Run scans the source folder once. Per-file failures are counted and the
// scan continues; ledger failures and submission protocol violations abort.
func (e *Engine) Run(ctx context.Context) (*stage.Summary, error) {
	summary := stage.NewSummary()
	logger := logging.WithContext(ctx, e.logger)

	known, err := e.ledger.FileNames(ctx)
	if err != nil {
		return summary, fmt.Errorf("load tracked file names: %w", err)
	}
	files, err := e.folders.ListFiles(ctx, e.opts.SourceFolderID, folders.Filter{MimeType: e.opts.MimeType})
	if err != nil {
		return summary, fmt.Errorf("list source folder %s: %w", e.opts.SourceFolderID, err)
	}
	logger.Debug("source folder listed", logging.Int("files", len(files)), logging.Int("tracked", len(known)))

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Inc(OutcomeSeen)
		if _, ok := known[file.Name]; ok {
			summary.Inc(OutcomeTracked)
			continue
		}

		canonical, ok := canonicalName(file)
		if !ok {
			summary.Fail(OutcomeUnparseable)
			logging.WarnWithContext(logger, "recording name not recognised",
				"unparseable_name",
				logging.String(logging.FieldFile, file.Name),
				logging.String(logging.FieldErrorHint, "rename the recording to '<Student Name> <YYYY-MM-DD>'"),
				logging.String(logging.FieldImpact, "recording is not transcribed until renamed"),
			)
			continue
		}
		if _, ok := known[canonical]; ok {
			summary.Inc(OutcomeTracked)
			continue
		}

		fileCtx := services.WithFileName(ctx, canonical)
		fileLogger := logging.WithContext(fileCtx, e.logger)
		if canonical != file.Name {
			if err := e.folders.RenameFile(fileCtx, file.ID, canonical); err != nil {
				summary.Fail(OutcomeRenameFailed)
				logging.WarnWithContext(fileLogger, "rename failed",
					"rename_failed",
					logging.String("original_name", file.Name),
					logging.String(logging.FieldErrorHint, services.Hint(err)),
					logging.Error(err),
				)
				continue
			}
			summary.Inc(OutcomeRenamed)
			file = e.afterRename(fileCtx, file, canonical)
		}
		known[canonical] = struct{}{}

		if err := e.track(fileCtx, fileLogger, file, canonical, summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (e *Engine) track(ctx context.Context, logger *slog.Logger, file folders.File, canonical string, summary *stage.Summary) error {
	rec, err := e.ledger.Append(ctx, tracking.JobRecord{
		FileName:  canonical,
		Status:    tracking.StatusProcessing,
		Timestamp: e.now(),
	})
	if err != nil {
		return fmt.Errorf("record %s: %w", canonical, err)
	}

	outcome, submitErr := e.submitter.Submit(ctx, file.ID, canonical)
	rec.JobID = outcome.JobID
	rec.Status = outcome.Status
	if submitErr != nil {
		rec.Status = tracking.StatusSubmitError
	}
	rec.Timestamp = e.now()
	if err := e.ledger.Update(ctx, rec); err != nil {
		return fmt.Errorf("record submission of %s: %w", canonical, err)
	}

	switch {
	case submitErr != nil:
		summary.Fail(OutcomeProtocolError)
		logger.Error("submission protocol violation; aborting run",
			logging.String(logging.FieldEventType, "submission_protocol_error"),
			logging.String(logging.FieldErrorHint, "inspect the transcription API response shape"),
			logging.Error(submitErr),
		)
		return fmt.Errorf("submit %s: %w", canonical, submitErr)
	case outcome.Submitted():
		summary.Inc(OutcomeSubmitted)
		logger.Info("recording tracked",
			logging.String(logging.FieldEventType, "recording_tracked"),
			logging.String(logging.FieldJobID, rec.JobID),
			logging.Int("row", rec.Row),
		)
	default:
		summary.Fail(OutcomeSubmitFailed)
	}
	return nil
}

// afterRename returns the file as it is addressed under its new name. Some
// backends derive IDs from the name, so the pre-rename ID may be stale.
func (e *Engine) afterRename(ctx context.Context, file folders.File, canonical string) folders.File {
	file.Name = canonical
	matches, err := e.folders.ListFiles(ctx, e.opts.SourceFolderID, folders.Filter{Name: canonical})
	if err != nil || len(matches) != 1 {
		return file
	}
	return matches[0]
}

// canonicalName returns the name a recording should carry. A name that
// already follows the canonical scheme is kept as-is.
func canonicalName(file folders.File) (string, bool) {
	if naming.IsCanonicalRecording(file.Name) {
		return file.Name, true
	}
	parsed, ok := naming.Parse(file.Name)
	if !ok {
		return "", false
	}
	return naming.CanonicalRecording(parsed.StudentName, parsed.ClassDate, file.ID), true
}
