package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"coachflow/internal/config"
	"coachflow/internal/logging"
	"coachflow/internal/metrics"
	"coachflow/internal/schedule"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run every stage on its schedule and expose metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func runServe(cmdCtx context.Context, ctx *commandContext) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(cfg.Workflow.RedisURL) == "" {
		return errors.New("serve requires workflow.redis_url for the scheduler queue")
	}

	recorder := metrics.NewRecorder()
	env, err := ctx.openStageEnv(signalCtx, recorder)
	if err != nil {
		return err
	}
	defer env.close()

	svc, err := schedule.New(schedule.Options{
		RedisURL: cfg.Workflow.RedisURL,
		Specs: map[string]string{
			config.StageDiscover: cfg.Schedule.Discover,
			config.StagePoll:     cfg.Schedule.Poll,
			config.StageDeliver:  cfg.Schedule.Deliver,
		},
		Location:  cfg.Location(),
		UniqueFor: cfg.LockTTL(),
	}, func(runCtx context.Context, name string) error {
		handler, err := env.pipeline.Stage(name)
		if err != nil {
			return err
		}
		_, err = env.runner.Run(runCtx, handler)
		return err
	}, env.logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	if bind := strings.TrimSpace(cfg.Schedule.MetricsBind); bind != "" {
		server, err := metrics.NewServer(bind, recorder, env.logger)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		go func() {
			if err := server.Run(signalCtx); err != nil {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	env.logger.Info("coachflow serving",
		logging.String("stages", strings.Join(svc.Stages(), ",")),
		logging.String("metrics_bind", cfg.Schedule.MetricsBind),
	)

	runCtx, stop := context.WithCancel(signalCtx)
	defer stop()
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx) }()

	select {
	case err := <-errCh:
		stop()
		<-done
		return err
	case err := <-done:
		if err != nil {
			return err
		}
	}
	return cmdCtx.Err()
}
