package schedule

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"

	"coachflow/internal/logging"
	"coachflow/internal/stageexec"
)

func newService(t *testing.T, run RunFunc) *Service {
	t.Helper()
	s, err := New(Options{
		RedisURL: "redis://127.0.0.1:6379/0",
		Specs: map[string]string{
			"poll":     "*/10 * * * *",
			"discover": "*/15 * * * *",
			"deliver":  "",
		},
	}, run, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewRegistersScheduledStages(t *testing.T) {
	s := newService(t, func(context.Context, string) error { return nil })
	got := s.Stages()
	if len(got) != 2 || got[0] != "discover" || got[1] != "poll" {
		t.Fatalf("stages = %v", got)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	run := func(context.Context, string) error { return nil }
	tests := []Options{
		{RedisURL: "not a url", Specs: map[string]string{"poll": "* * * * *"}},
		{RedisURL: "redis://127.0.0.1:6379", Specs: map[string]string{"poll": "every tuesday"}},
		{RedisURL: "redis://127.0.0.1:6379", Specs: map[string]string{"poll": ""}},
	}
	for i, opts := range tests {
		if _, err := New(opts, run, logging.NewNop()); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestProcessTask(t *testing.T) {
	var ran []string
	results := map[string]error{
		"poll":     nil,
		"discover": fmt.Errorf("%w: discover", stageexec.ErrStageBusy),
	}
	s := newService(t, func(_ context.Context, stage string) error {
		ran = append(ran, stage)
		if err, ok := results[stage]; ok {
			return err
		}
		return errors.New("ledger unavailable")
	})
	ctx := context.Background()

	if err := s.ProcessTask(ctx, asynq.NewTask(TaskType("poll"), nil)); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if err := s.ProcessTask(ctx, asynq.NewTask(TaskType("discover"), nil)); err != nil {
		t.Fatalf("busy stage should not fail the task: %v", err)
	}
	err := s.ProcessTask(ctx, asynq.NewTask(TaskType("deliver"), nil))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("failure should skip retry, got %v", err)
	}
	if err := s.ProcessTask(ctx, asynq.NewTask("other", nil)); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("unknown task err = %v", err)
	}
	if len(ran) != 3 {
		t.Fatalf("ran = %v", ran)
	}
}

func TestStageFromTask(t *testing.T) {
	if stage, ok := StageFromTask("stage:poll"); !ok || stage != "poll" {
		t.Fatalf("StageFromTask = %q, %v", stage, ok)
	}
	if _, ok := StageFromTask("stage:"); ok {
		t.Fatal("empty stage should not parse")
	}
}
