// Package schedule drives the stages from cron specs in serve mode. An asynq
// scheduler enqueues one task per stage tick and a single-worker asynq server
// runs them, so ticks that arrive while a stage is running queue up instead
// of overlapping.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"coachflow/internal/logging"
	"coachflow/internal/stageexec"
)

const (
	queueName  = "coachflow"
	taskPrefix = "stage:"
)

// RunFunc runs one stage to completion.
type RunFunc func(ctx context.Context, stage string) error

// Options configures the scheduler.
type Options struct {
	RedisURL string
	// Specs maps a stage name to its cron spec. Empty specs are not scheduled.
	Specs    map[string]string
	Location *time.Location
	// UniqueFor keeps a tick from being enqueued while an earlier one is pending.
	UniqueFor time.Duration
}

// Service owns the asynq scheduler and worker.
type Service struct {
	scheduler *asynq.Scheduler
	server    *asynq.Server
	mux       *asynq.ServeMux
	run       RunFunc
	logger    *slog.Logger
	stages    []string
}

// TaskType returns the asynq task type for stage.
func TaskType(stage string) string {
	return taskPrefix + stage
}

// StageFromTask returns the stage a task type refers to.
func StageFromTask(taskType string) (string, bool) {
	stage, ok := strings.CutPrefix(taskType, taskPrefix)
	return stage, ok && stage != ""
}

// New registers every configured stage.
func New(opts Options, run RunFunc, logger *slog.Logger) (*Service, error) {
	if run == nil {
		return nil, errors.New("schedule requires a stage runner")
	}
	conn, err := asynq.ParseRedisURI(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.UniqueFor <= 0 {
		opts.UniqueFor = time.Hour
	}
	logger = logging.NewComponentLogger(logger, "schedule")
	adapter := asynqLogger{logger: logger}

	s := &Service{
		scheduler: asynq.NewScheduler(conn, &asynq.SchedulerOpts{
			Location: opts.Location,
			Logger:   adapter,
		}),
		server: asynq.NewServer(conn, asynq.Config{
			Concurrency: 1,
			Queues:      map[string]int{queueName: 1},
			Logger:      adapter,
		}),
		mux:    asynq.NewServeMux(),
		run:    run,
		logger: logger,
	}

	stages := make([]string, 0, len(opts.Specs))
	for stage := range opts.Specs {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	for _, stage := range stages {
		spec := strings.TrimSpace(opts.Specs[stage])
		if spec == "" {
			continue
		}
		task := asynq.NewTask(TaskType(stage), nil)
		if _, err := s.scheduler.Register(spec, task,
			asynq.Queue(queueName),
			asynq.MaxRetry(0),
			asynq.Unique(opts.UniqueFor),
		); err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", stage, spec, err)
		}
		s.mux.HandleFunc(TaskType(stage), s.ProcessTask)
		s.stages = append(s.stages, stage)
	}
	if len(s.stages) == 0 {
		return nil, errors.New("no stage has a schedule")
	}
	return s, nil
}

// Stages lists the scheduled stages.
func (s *Service) Stages() []string {
	return append([]string(nil), s.stages...)
}

// ProcessTask runs the stage named by the task. A busy stage is not an error:
// the next tick runs it.
func (s *Service) ProcessTask(ctx context.Context, task *asynq.Task) error {
	stage, ok := StageFromTask(task.Type())
	if !ok {
		return fmt.Errorf("unknown task %q: %w", task.Type(), asynq.SkipRetry)
	}
	err := s.run(ctx, stage)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stageexec.ErrStageBusy):
		s.logger.Info("scheduled run skipped; stage busy", logging.String(logging.FieldStage, stage))
		return nil
	default:
		return fmt.Errorf("%s: %w: %w", stage, err, asynq.SkipRetry)
	}
}

// Run starts the scheduler and worker and blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	if err := s.scheduler.Start(); err != nil {
		s.server.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}
	s.logger.Info("scheduler started", logging.String("stages", strings.Join(s.stages, ",")))

	<-ctx.Done()
	s.scheduler.Shutdown()
	s.server.Shutdown()
	s.logger.Info("scheduler stopped")
	return nil
}

// asynqLogger routes asynq's logging through slog.
type asynqLogger struct {
	logger *slog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
