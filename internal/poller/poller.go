// Package poller advances every non-terminal tracking row by asking the
// transcription provider for its job status, and runs completion for jobs
// the provider reports as done.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"coachflow/internal/completion"
	"coachflow/internal/logging"
	"coachflow/internal/services"
	"coachflow/internal/stage"
	"coachflow/internal/tracking"
	"coachflow/internal/transcription"
)

// Summary outcomes.
const (
	OutcomeChecked   = "checked"
	OutcomeTerminal  = "skipped_terminal"
	OutcomeInFlight  = "in_flight"
	OutcomeMissingID = "missing_job_id"
	OutcomeUnchanged = "unchanged"
	OutcomeUpdated   = "updated"
	OutcomeLimited   = "rate_limited"
	OutcomePollError = "poll_error"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "completion_failed"
	OutcomeUnknown   = "unknown_status"
)

// StatusClient is the slice of the transcription client the poller needs.
type StatusClient interface {
	Status(ctx context.Context, jobID string) (transcription.JobStatus, error)
}

// Completer finishes a job the provider reports as done.
type Completer interface {
	Complete(ctx context.Context, job completion.Job) error
}

// Poller walks the tracking ledger once per run.
type Poller struct {
	ledger    *tracking.Ledger
	client    StatusClient
	completer Completer
	lease     time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// New constructs a poller. lease bounds how long a processing_transcript row
// is treated as owned by another pass.
func New(ledger *tracking.Ledger, client StatusClient, completer Completer, lease time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		ledger:    ledger,
		client:    client,
		completer: completer,
		lease:     lease,
		now:       time.Now,
		logger:    logging.NewComponentLogger(logger, "poller"),
	}
}

// SetClock overrides the time source.
func (p *Poller) SetClock(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Run evaluates every row in sheet order. A ledger write failure aborts the
// run because the next row cannot be evaluated against a stale ledger.
func (p *Poller) Run(ctx context.Context) (*stage.Summary, error) {
	summary := stage.NewSummary()
	records, err := p.ledger.Records(ctx)
	if err != nil {
		return summary, err
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := p.pollRecord(ctx, rec, summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (p *Poller) pollRecord(ctx context.Context, rec tracking.JobRecord, summary *stage.Summary) error {
	if rec.Status.IsTerminal() {
		summary.Inc(OutcomeTerminal)
		return nil
	}
	ctx = services.WithFileName(ctx, rec.FileName)
	logger := logging.WithContext(ctx, p.logger).With(logging.String(logging.FieldJobID, rec.JobID))

	if !rec.HasJobID() {
		summary.Fail(OutcomeMissingID)
		logging.WarnWithContext(logger, "tracking row has no job id",
			"missing_job_id",
			logging.Int("row", rec.Row),
			logging.String(logging.FieldErrorHint, "resubmit the recording by clearing its tracking row"),
			logging.String(logging.FieldImpact, "the recording will not be transcribed"),
		)
		return p.write(ctx, rec, tracking.StatusMissingJobID)
	}

	if rec.Status == tracking.StatusProcessingTranscript && p.leaseHeld(rec) {
		summary.Inc(OutcomeInFlight)
		logger.Debug("completion in flight", logging.String("since", rec.Timestamp.Format(time.RFC3339)))
		return nil
	}

	summary.Inc(OutcomeChecked)
	status, err := p.client.Status(ctx, rec.JobID)
	if err != nil {
		next, persist := tracking.StatusForPollError(err)
		if !persist {
			summary.Inc(OutcomeLimited)
			logger.Info("status poll rate limited", logging.String(logging.FieldEventType, "poll_rate_limited"))
			return nil
		}
		summary.Fail(OutcomePollError)
		logging.WarnWithContext(logger, "status poll failed",
			"poll_failed",
			logging.Error(err),
			logging.String(logging.FieldStatus, string(next)),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
		return p.write(ctx, rec, next)
	}

	external, known := tracking.ParseStatus(status.Status)
	switch {
	case !known:
		summary.Fail(OutcomeUnknown)
		logging.WarnWithContext(logger, "provider returned an unknown status",
			"unknown_status",
			logging.String("provider_status", status.Status),
			logging.String(logging.FieldErrorHint, "check the transcription service version"),
		)
		return p.write(ctx, rec, tracking.StatusBadResponse)
	case external == tracking.StatusRateLimited:
		summary.Inc(OutcomeLimited)
		return nil
	case external == tracking.StatusDone:
		return p.complete(ctx, logger, rec, status, summary)
	case external == rec.Status:
		summary.Inc(OutcomeUnchanged)
		return nil
	default:
		summary.Inc(OutcomeUpdated)
		logger.Info("job status changed",
			logging.String(logging.FieldEventType, "status_changed"),
			logging.String("from", string(rec.Status)),
			logging.String(logging.FieldStatus, string(external)),
		)
		return p.write(ctx, rec, external)
	}
}

func (p *Poller) complete(ctx context.Context, logger *slog.Logger, rec tracking.JobRecord, status transcription.JobStatus, summary *stage.Summary) error {
	if err := p.write(ctx, rec, tracking.StatusProcessingTranscript); err != nil {
		return err
	}
	err := p.completer.Complete(ctx, completion.Job{
		JobID:         rec.JobID,
		FileName:      rec.FileName,
		TrackingTitle: status.TrackingTitle,
	})
	if err == nil {
		summary.Inc(OutcomeCompleted)
		return p.write(ctx, rec, tracking.StatusDone)
	}

	next := StatusForCompletionError(err)
	summary.Fail(OutcomeFailed)
	logging.ErrorWithContext(logger, "completion failed",
		"completion_failed",
		logging.Error(err),
		logging.String(logging.FieldStatus, string(next)),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
		logging.String(logging.FieldImpact, "transcript is not delivered until the row is reset"),
	)
	return p.write(ctx, rec, next)
}

// StatusForCompletionError maps a failed completion step to its terminal status.
func StatusForCompletionError(err error) tracking.Status {
	step, ok := completion.FailedStep(err)
	if !ok {
		return tracking.StatusCompletionError
	}
	switch step {
	case completion.StepFetch:
		return tracking.StatusTranscriptError
	case completion.StepUpload:
		return tracking.StatusUploadError
	case completion.StepRelocate:
		return tracking.StatusRelocateError
	default:
		return tracking.StatusCompletionError
	}
}

func (p *Poller) leaseHeld(rec tracking.JobRecord) bool {
	if rec.Timestamp.IsZero() || p.lease <= 0 {
		return false
	}
	return p.now().Sub(rec.Timestamp) < p.lease
}

func (p *Poller) write(ctx context.Context, rec tracking.JobRecord, status tracking.Status) error {
	rec.Status = status
	rec.Timestamp = p.now()
	if err := p.ledger.Update(ctx, rec); err != nil {
		return fmt.Errorf("record status %s: %w", status, err)
	}
	return nil
}
