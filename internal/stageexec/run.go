// Package stageexec runs one stage handler under its run lock and reports
// the outcome through logs, metrics and operator alerts.
package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"coachflow/internal/logging"
	"coachflow/internal/metrics"
	"coachflow/internal/notifications"
	"coachflow/internal/runlock"
	"coachflow/internal/services"
	"coachflow/internal/stage"
)

// ErrStageBusy is returned when another run of the same stage holds the lock.
var ErrStageBusy = errors.New("stage already running")

// Options configures a Runner. Locker, Metrics and Alerter are optional.
type Options struct {
	Logger  *slog.Logger
	Locker  runlock.Locker
	Metrics *metrics.Recorder
	Alerter notifications.Alerter
}

// Runner executes stages.
type Runner struct {
	opts Options
	now  func() time.Time
}

// NewRunner builds a runner.
func NewRunner(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Runner{opts: opts, now: time.Now}
}

// Run executes handler once. The handler's summary is returned even when it
// fails part way.
func (r *Runner) Run(ctx context.Context, handler stage.Handler) (*stage.Summary, error) {
	if handler == nil {
		return nil, fmt.Errorf("stage handler unavailable")
	}
	name := handler.Name()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithStage(ctx, name)
	logger := logging.WithContext(ctx, r.opts.Logger)

	if r.opts.Locker != nil {
		lease, err := r.opts.Locker.Acquire(ctx, name)
		if err != nil {
			if errors.Is(err, runlock.ErrHeld) {
				r.opts.Metrics.ObserveRun(name, metrics.ResultBusy, nil, r.now())
				logger.Info("stage skipped; previous run still active",
					logging.String(logging.FieldEventType, "stage_busy"),
				)
				return stage.NewSummary(), fmt.Errorf("%w: %s", ErrStageBusy, name)
			}
			return nil, err
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				logging.WarnWithContext(logger, "failed to release run lock", "run_lock_release_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "remove the stale lock if the next run reports busy"),
					logging.String(logging.FieldImpact, "next run of this stage may be refused"),
				)
			}
		}()
	}

	if health := handler.HealthCheck(ctx); !health.Ready() {
		err := services.Wrap(services.ErrConfiguration, name, "health check", health.Detail(), nil)
		r.finish(ctx, logger, name, stage.NewSummary(), err, 0)
		return nil, err
	}

	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	started := r.now()
	summary, err := handler.Run(ctx)
	if summary == nil {
		summary = stage.NewSummary()
	}
	r.finish(ctx, logger, name, summary, err, r.now().Sub(started))
	return summary, err
}

func (r *Runner) finish(ctx context.Context, logger *slog.Logger, name string, summary *stage.Summary, runErr error, elapsed time.Duration) {
	result := metrics.ResultSuccess
	switch {
	case runErr != nil:
		result = metrics.ResultFailure
	case summary.Failures() > 0:
		result = metrics.ResultPartial
	}

	attrs := append([]logging.Attr{
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("result", result),
		logging.Duration("duration", elapsed),
	}, summary.Attrs()...)
	if runErr != nil {
		attrs = append(attrs,
			logging.Error(runErr),
			logging.String(logging.FieldErrorHint, services.Hint(runErr)),
		)
		logger.Error("stage completed", logging.Args(attrs...)...)
	} else {
		logger.Info("stage completed", logging.Args(attrs...)...)
	}

	r.opts.Metrics.ObserveRun(name, result, summary.Counts(), r.now())
	r.alert(ctx, logger, name, summary, runErr, elapsed)
}

func (r *Runner) alert(ctx context.Context, logger *slog.Logger, name string, summary *stage.Summary, runErr error, elapsed time.Duration) {
	if r.opts.Alerter == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var err error
	switch {
	case runErr != nil:
		err = r.opts.Alerter.NotifyError(ctx, runErr, name)
	case summary.Failures() > 0:
		err = r.opts.Alerter.NotifyStageFailures(ctx, name, summary.Failures(), elapsed, summary.String())
	default:
		return
	}
	if err != nil {
		logger.Debug("stage alert failed", logging.Error(err))
	}
}
