package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"coachflow/internal/config"
	"coachflow/internal/logging"
	"coachflow/internal/metrics"
	"coachflow/internal/notifications"
	"coachflow/internal/pipeline"
	"coachflow/internal/runlock"
	"coachflow/internal/sheets"
	"coachflow/internal/stageexec"
)

type globalFlags struct {
	config   string
	logLevel string
	verbose  bool
	json     bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.flags != nil && c.flags.json
}

// ensureLogger builds the process logger with the level flags applied on top
// of the configured level.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		effective := *cfg
		switch {
		case strings.TrimSpace(c.flags.logLevel) != "":
			effective.Logging.Level = strings.TrimSpace(c.flags.logLevel)
		case c.flags.verbose:
			effective.Logging.Level = "debug"
		}
		logger, err := logging.NewFromConfig(&effective)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) openBook(ctx context.Context) (sheets.Book, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	book, err := sheets.Open(ctx, cfg.Ledger.Backend, cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return book, nil
}

// stageEnv bundles what a stage invocation needs; close releases every
// resource it opened.
type stageEnv struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	runner   *stageexec.Runner
	close    func()
}

func (c *commandContext) openStageEnv(ctx context.Context, recorder *metrics.Recorder) (*stageEnv, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	locker, closeLocker, err := newLocker(cfg)
	if err != nil {
		return nil, err
	}
	backends, err := pipeline.OpenBackends(ctx, cfg, logger)
	if err != nil {
		closeLocker()
		return nil, err
	}

	return &stageEnv{
		cfg:      cfg,
		logger:   logger,
		pipeline: pipeline.New(cfg, backends, logger),
		runner: stageexec.NewRunner(stageexec.Options{
			Logger:  logger,
			Locker:  locker,
			Metrics: recorder,
			Alerter: notifications.NewAlerter(cfg),
		}),
		close: func() {
			if err := backends.Close(); err != nil {
				logging.WarnWithContext(logger, "close backends failed", "backend_close_failed",
					logging.String(logging.FieldErrorHint, "check the ledger file is writable"),
					logging.String(logging.FieldImpact, "the last ledger write may be missing"),
					logging.Error(err),
				)
			}
			closeLocker()
		},
	}, nil
}

func newLocker(cfg *config.Config) (runlock.Locker, func(), error) {
	switch cfg.Workflow.LockBackend {
	case "redis":
		locker, err := runlock.NewRedisLocker(cfg.Workflow.RedisURL, cfg.LockTTL())
		if err != nil {
			return nil, nil, fmt.Errorf("redis lock: %w", err)
		}
		return locker, func() { _ = locker.Close() }, nil
	default:
		locker, err := runlock.NewFileLocker(cfg.Paths.StateDir)
		if err != nil {
			return nil, nil, fmt.Errorf("file lock: %w", err)
		}
		return locker, func() {}, nil
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
