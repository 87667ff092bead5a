// Package submission hands a newly discovered recording to the transcription
// pipeline and reduces every ordinary failure to a ledger status.
package submission

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"coachflow/internal/logging"
	"coachflow/internal/services"
	"coachflow/internal/tracking"
	"coachflow/internal/transcription"
)

// Submit modes.
const (
	ModeSimple = "simple"
	ModeJob    = "job"
)

// Outcome is the ledger-facing result of one submission.
type Outcome struct {
	JobID  string
	Status tracking.Status
	// Reason explains a failed submission; empty on success.
	Reason string
}

// Submitted reports whether a job was created.
func (o Outcome) Submitted() bool {
	return o.JobID != ""
}

// Adapter submits recordings through a transcription.Client.
type Adapter struct {
	client transcription.Client
	mode   string
	logger *slog.Logger
}

// NewAdapter returns an adapter for mode (simple or job).
func NewAdapter(client transcription.Client, mode string, logger *slog.Logger) *Adapter {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = ModeSimple
	}
	return &Adapter{
		client: client,
		mode:   mode,
		logger: logging.NewComponentLogger(logger, "submission"),
	}
}

// Submit calls the provider for fileRef under the canonical name. The
// returned error is non-nil only when the job API answers 2xx with a body it
// does not recognise; the Outcome is populated either way.
func (a *Adapter) Submit(ctx context.Context, fileRef, name string) (Outcome, error) {
	logger := logging.WithContext(services.WithFileName(ctx, name), a.logger)
	if a.mode == ModeJob {
		return a.submitJob(ctx, logger, fileRef, name)
	}
	return a.submitSimple(ctx, logger, fileRef, name), nil
}

func (a *Adapter) submitSimple(ctx context.Context, logger *slog.Logger, fileRef, name string) Outcome {
	resp, err := a.client.Submit(ctx, fileRef, name)
	if err != nil {
		return a.failed(logger, tracking.StatusSubmitError, err)
	}
	if resp.JobID == "" {
		return a.failed(logger, tracking.StatusSubmitNoJobID, errors.New("response has no job identifier"))
	}
	status := tracking.StatusSubmitted
	if parsed, ok := tracking.ParseStatus(resp.Status); ok && (parsed == tracking.StatusRunning || parsed == tracking.StatusSubmitted) {
		status = parsed
	}
	logger.Info("recording submitted",
		logging.String(logging.FieldEventType, "submission_accepted"),
		logging.String(logging.FieldJobID, resp.JobID),
		logging.String(logging.FieldStatus, string(status)),
	)
	return Outcome{JobID: resp.JobID, Status: status}
}

func (a *Adapter) submitJob(ctx context.Context, logger *slog.Logger, fileRef, name string) (Outcome, error) {
	job, err := a.client.CreateJob(ctx, fileRef, name)
	if err != nil {
		outcome := a.failed(logger, tracking.StatusSubmitError, err)
		if errors.Is(err, transcription.ErrProtocol) {
			return outcome, err
		}
		return outcome, nil
	}
	logger.Info("transcription job created",
		logging.String(logging.FieldEventType, "submission_accepted"),
		logging.String(logging.FieldJobID, job.ID()),
		logging.String("job_state", job.State),
	)
	return Outcome{JobID: job.ID(), Status: tracking.StatusSubmitted}, nil
}

func (a *Adapter) failed(logger *slog.Logger, status tracking.Status, err error) Outcome {
	logging.WarnWithContext(logger, "submission failed",
		"submission_failed",
		logging.String(logging.FieldStatus, string(status)),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
		logging.String(logging.FieldImpact, "recording stays in the ledger for manual remediation"),
		logging.Error(err),
	)
	return Outcome{Status: status, Reason: strings.TrimSpace(err.Error())}
}
