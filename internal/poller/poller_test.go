package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"coachflow/internal/completion"
	"coachflow/internal/logging"
	"coachflow/internal/services"
	"coachflow/internal/testsupport"
	"coachflow/internal/tracking"
)

const recording = "Jane_Doe_2024-03-01_AbCdEfGhIj.mp4"

var now = time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ledger *tracking.Ledger
	fake   *testsupport.FakeTranscriber
	store  *testsupport.MemStore
	poller *Poller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	book := testsupport.NewBook(t)
	ledger, err := tracking.OpenLedger(context.Background(), testsupport.MustSheet(t, book, "Tracking"))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	fake := testsupport.NewFakeTranscriber()
	store := testsupport.NewMemStore()
	handler := completion.NewHandler(fake, store, completion.Prefixes{
		Incoming:    "incoming/",
		Processed:   "processed/",
		Transcripts: "transcripts/",
	}, "txt", logging.NewNop())
	p := New(ledger, fake, handler, 15*time.Minute, logging.NewNop())
	p.SetClock(func() time.Time { return now })
	return &fixture{ledger: ledger, fake: fake, store: store, poller: p}
}

func (f *fixture) add(t *testing.T, name, jobID string, status tracking.Status, ts time.Time) {
	t.Helper()
	if _, err := f.ledger.Append(context.Background(), tracking.JobRecord{
		FileName: name, JobID: jobID, Status: status, Timestamp: ts,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func (f *fixture) status(t *testing.T, name string) tracking.Status {
	t.Helper()
	records, err := f.ledger.Records(context.Background())
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	for _, rec := range records {
		if rec.FileName == name {
			return rec.Status
		}
	}
	t.Fatalf("no record for %s", name)
	return ""
}

func TestRunCompletesDoneJob(t *testing.T) {
	f := newFixture(t)
	f.add(t, recording, "job-1", tracking.StatusSubmitted, now.Add(-time.Hour))
	f.store.Seed("incoming/"+recording, []byte("video"))
	f.fake.SetStatus("job-1", "done", "")
	f.fake.Transcripts["job-1"] = []byte("transcript")

	summary, err := f.poller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := f.status(t, recording); got != tracking.StatusDone {
		t.Fatalf("status = %s, want done", got)
	}
	if summary.Count(OutcomeCompleted) != 1 {
		t.Fatalf("summary = %s", summary)
	}
	if !f.store.Has("transcripts/Jane_Doe_2024-03-01_AbCdEfGhIj.txt") || !f.store.Has("processed/"+recording) {
		t.Fatalf("unexpected objects %v", f.store.Names())
	}

	// A second run sees a terminal row and never completes again.
	if _, err := f.poller.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if f.fake.TranscriptReq["job-1"] != 1 || f.fake.StatusCalls["job-1"] != 1 {
		t.Fatalf("completion repeated: transcript=%d status=%d", f.fake.TranscriptReq["job-1"], f.fake.StatusCalls["job-1"])
	}
}

func TestRunMapsCompletionStepFailures(t *testing.T) {
	f := newFixture(t)
	f.add(t, recording, "job-1", tracking.StatusRunning, now)
	f.fake.SetStatus("job-1", "done", "")
	f.fake.TranscriptErrs["job-1"] = errors.New("boom")

	summary, err := f.poller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := f.status(t, recording); got != tracking.StatusTranscriptError {
		t.Fatalf("status = %s, want error_transcript", got)
	}
	if summary.Failures() != 1 {
		t.Fatalf("failures = %d", summary.Failures())
	}
}

func TestStatusForCompletionError(t *testing.T) {
	tests := []struct {
		err  error
		want tracking.Status
	}{
		{&completion.StepError{Step: completion.StepFetch, Err: errors.New("x")}, tracking.StatusTranscriptError},
		{&completion.StepError{Step: completion.StepUpload, Err: errors.New("x")}, tracking.StatusUploadError},
		{&completion.StepError{Step: completion.StepRelocate, Err: errors.New("x")}, tracking.StatusRelocateError},
		{errors.New("other"), tracking.StatusCompletionError},
	}
	for _, tc := range tests {
		if got := StatusForCompletionError(tc.err); got != tc.want {
			t.Fatalf("StatusForCompletionError(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestRunRespectsCompletionLease(t *testing.T) {
	f := newFixture(t)
	fresh := "Fresh_Row_2024-03-01_AAAAAAAAAA.mp4"
	stale := "Stale_Row_2024-03-01_BBBBBBBBBB.mp4"
	f.add(t, fresh, "job-fresh", tracking.StatusProcessingTranscript, now.Add(-5*time.Minute))
	f.add(t, stale, "job-stale", tracking.StatusProcessingTranscript, now.Add(-time.Hour))
	f.fake.SetStatus("job-fresh", "done", "")
	f.fake.SetStatus("job-stale", "done", "")
	f.fake.Transcripts["job-stale"] = []byte("resumed")
	f.fake.Transcripts["job-fresh"] = []byte("never")

	summary, err := f.poller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.fake.StatusCalls["job-fresh"] != 0 {
		t.Fatal("row inside the lease should not be polled")
	}
	if got := f.status(t, fresh); got != tracking.StatusProcessingTranscript {
		t.Fatalf("fresh status = %s", got)
	}
	if got := f.status(t, stale); got != tracking.StatusDone {
		t.Fatalf("stale status = %s, want done", got)
	}
	if summary.Count(OutcomeInFlight) != 1 {
		t.Fatalf("summary = %s", summary)
	}
}

func TestRunMarksMissingJobID(t *testing.T) {
	f := newFixture(t)
	f.add(t, recording, "", tracking.StatusProcessing, now)

	if _, err := f.poller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := f.status(t, recording); got != tracking.StatusMissingJobID {
		t.Fatalf("status = %s", got)
	}
	if len(f.fake.StatusCalls) != 0 {
		t.Fatal("provider must not be polled without a job id")
	}
}

func TestRunClassifiesPollErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want tracking.Status
	}{
		{"rate limited", services.Wrap(services.ErrRateLimited, "t", "status", "429", nil), tracking.StatusSubmitted},
		{"transient", services.Wrap(services.ErrTransient, "t", "status", "503", nil), tracking.StatusFetchingStatusError},
		{"unauthorized", services.Wrap(services.ErrUnauthorized, "t", "status", "401", nil), tracking.StatusAuthError},
		{"not found", services.Wrap(services.ErrNotFound, "t", "status", "404", nil), tracking.StatusNotFoundError},
		{"malformed", services.Wrap(services.ErrMalformed, "t", "status", "bad json", nil), tracking.StatusBadResponse},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.add(t, recording, "job-1", tracking.StatusSubmitted, now)
			f.fake.StatusErrors["job-1"] = tc.err
			if _, err := f.poller.Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got := f.status(t, recording); got != tc.want {
				t.Fatalf("status = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRunAppliesExternalStatus(t *testing.T) {
	f := newFixture(t)
	running := "Run_Ning_2024-03-01_AAAAAAAAAA.mp4"
	same := "Same_Same_2024-03-01_BBBBBBBBBB.mp4"
	weird := "We_Ird_2024-03-01_CCCCCCCCCC.mp4"
	limited := "Lim_Ited_2024-03-01_DDDDDDDDDD.mp4"
	f.add(t, running, "job-a", tracking.StatusSubmitted, now)
	f.add(t, same, "job-b", tracking.StatusRunning, now)
	f.add(t, weird, "job-c", tracking.StatusSubmitted, now)
	f.add(t, limited, "job-d", tracking.StatusRunning, now)
	f.fake.SetStatus("job-a", "running", "")
	f.fake.SetStatus("job-b", "running", "")
	f.fake.SetStatus("job-c", "exploded", "")
	f.fake.SetStatus("job-d", "rate_limited", "")

	summary, err := f.poller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for name, want := range map[string]tracking.Status{
		running: tracking.StatusRunning,
		same:    tracking.StatusRunning,
		weird:   tracking.StatusBadResponse,
		limited: tracking.StatusRunning,
	} {
		if got := f.status(t, name); got != want {
			t.Fatalf("%s status = %s, want %s", name, got, want)
		}
	}
	if summary.Count(OutcomeUpdated) != 1 || summary.Count(OutcomeUnchanged) != 1 || summary.Count(OutcomeUnknown) != 1 {
		t.Fatalf("summary = %s", summary)
	}
}

func TestRunSkipsTerminalRows(t *testing.T) {
	f := newFixture(t)
	f.add(t, recording, "job-1", tracking.StatusDone, now)
	f.add(t, "Other_One_2024-03-01_AAAAAAAAAA.mp4", "job-2", tracking.StatusSubmitError, now)

	summary, err := f.poller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Count(OutcomeTerminal) != 2 || len(f.fake.StatusCalls) != 0 {
		t.Fatalf("summary = %s, calls = %v", summary, f.fake.StatusCalls)
	}
}
