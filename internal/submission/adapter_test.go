package submission

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"coachflow/internal/logging"
	"coachflow/internal/services"
	"coachflow/internal/testsupport"
	"coachflow/internal/tracking"
	"coachflow/internal/transcription"
)

func TestSimpleSubmit(t *testing.T) {
	fake := testsupport.NewFakeTranscriber()
	fake.SubmitResponses["running.mp4"] = transcription.SubmitResponse{JobID: "j-run", Status: "running"}
	fake.SubmitResponses["nojob.mp4"] = transcription.SubmitResponse{Status: "submitted"}
	fake.SubmitErrors["down.mp4"] = services.Wrap(services.ErrTransient, "transcription", "submit", "status 503", nil)

	adapter := NewAdapter(fake, ModeSimple, logging.NewNop())
	ctx := context.Background()

	tests := []struct {
		name       string
		wantStatus tracking.Status
		wantJob    bool
	}{
		{"ok.mp4", tracking.StatusSubmitted, true},
		{"running.mp4", tracking.StatusRunning, true},
		{"nojob.mp4", tracking.StatusSubmitNoJobID, false},
		{"down.mp4", tracking.StatusSubmitError, false},
	}
	for _, tc := range tests {
		outcome, err := adapter.Submit(ctx, "file-"+tc.name, tc.name)
		if err != nil {
			t.Fatalf("%s: simple mode must not return errors, got %v", tc.name, err)
		}
		if outcome.Status != tc.wantStatus || outcome.Submitted() != tc.wantJob {
			t.Errorf("%s: outcome = %+v", tc.name, outcome)
		}
		if !tc.wantJob && outcome.Reason == "" {
			t.Errorf("%s: expected a failure reason", tc.name)
		}
	}
}

func TestJobModeEscalatesProtocolViolations(t *testing.T) {
	fake := testsupport.NewFakeTranscriber()
	fake.CreateJobErrors["weird.mp4"] = fmt.Errorf("%w: body is not a job resource", transcription.ErrProtocol)
	fake.CreateJobErrors["denied.mp4"] = services.Wrap(services.ErrUnauthorized, "transcription", "create job", "status 403", nil)
	adapter := NewAdapter(fake, ModeJob, logging.NewNop())
	ctx := context.Background()

	outcome, err := adapter.Submit(ctx, "f", "ok.mp4")
	if err != nil || outcome.JobID != "job-1" || outcome.Status != tracking.StatusSubmitted {
		t.Fatalf("ok: outcome = %+v, err = %v", outcome, err)
	}

	outcome, err = adapter.Submit(ctx, "f", "weird.mp4")
	if !errors.Is(err, transcription.ErrProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if outcome.Status != tracking.StatusSubmitError {
		t.Fatalf("protocol violation should mark cloudrun_error, got %s", outcome.Status)
	}

	outcome, err = adapter.Submit(ctx, "f", "denied.mp4")
	if err != nil {
		t.Fatalf("ordinary failures must not escalate, got %v", err)
	}
	if outcome.Status != tracking.StatusSubmitError {
		t.Fatalf("expected cloudrun_error, got %s", outcome.Status)
	}
}
