package completion

import (
	"context"
	"errors"
	"testing"

	"coachflow/internal/logging"
	"coachflow/internal/services"
	"coachflow/internal/testsupport"
)

var prefixes = Prefixes{Incoming: "incoming/", Processed: "processed/", Transcripts: "transcripts/"}

const recording = "Jane_Doe_2024-03-01_AbCdEfGhIj.mp4"

func newHandler() (*Handler, *testsupport.FakeTranscriber, *testsupport.MemStore) {
	fake := testsupport.NewFakeTranscriber()
	store := testsupport.NewMemStore()
	return NewHandler(fake, store, prefixes, "txt", logging.NewNop()), fake, store
}

func TestCompleteUploadsAndRelocates(t *testing.T) {
	h, fake, store := newHandler()
	fake.Transcripts["job-1"] = []byte("hello")
	store.Seed("incoming/"+recording, []byte("video"))

	if err := h.Complete(context.Background(), Job{JobID: "job-1", FileName: recording}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	data, err := store.Get(context.Background(), "transcripts/Jane_Doe_2024-03-01_AbCdEfGhIj.txt")
	if err != nil || string(data) != "hello" {
		t.Fatalf("transcript = %q, %v", data, err)
	}
	if store.Has("incoming/"+recording) || !store.Has("processed/"+recording) {
		t.Fatalf("recording not relocated: %v", store.Names())
	}
}

func TestCompleteIsRepeatable(t *testing.T) {
	h, fake, store := newHandler()
	fake.Transcripts["job-1"] = []byte("hello")
	store.Seed("incoming/"+recording, []byte("video"))
	ctx := context.Background()

	for range 2 {
		if err := h.Complete(ctx, Job{JobID: "job-1", FileName: recording}); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}
	if !store.Has("processed/" + recording) {
		t.Fatal("expected processed recording")
	}
}

func TestCompleteToleratesMissingDeleteTarget(t *testing.T) {
	h, fake, store := newHandler()
	fake.Transcripts["job-1"] = []byte("hello")
	store.Seed("incoming/"+recording, []byte("video"))
	store.FailDelete["incoming/"+recording] = services.Wrap(services.ErrNotFound, "storage", "delete", "gone", nil)

	if err := h.Complete(context.Background(), Job{JobID: "job-1", FileName: recording}); err != nil {
		t.Fatalf("missing delete target should be success, got %v", err)
	}
}

func TestCompleteToleratesServiceNotFoundOnCopy(t *testing.T) {
	h, fake, store := newHandler()
	fake.Transcripts["job-1"] = []byte("hello")
	store.FailCopy["incoming/"+recording] = services.Wrap(services.ErrNotFound, "storage", "copy", "gone", nil)

	if err := h.Complete(context.Background(), Job{JobID: "job-1", FileName: recording}); err != nil {
		t.Fatalf("already relocated recording should be success, got %v", err)
	}
	if !store.Has("transcripts/Jane_Doe_2024-03-01_AbCdEfGhIj.txt") {
		t.Fatalf("expected transcript written, got %v", store.Names())
	}
}

func TestCompleteUsesCanonicalTrackingTitle(t *testing.T) {
	h, fake, store := newHandler()
	fake.Transcripts["job-1"] = []byte("x")

	job := Job{JobID: "job-1", FileName: "ledger-name.mp4", TrackingTitle: "Jane_Doe_2024-03-01_AbCdEfGhIj"}
	if got := DestinationName(job); got != recording {
		t.Fatalf("DestinationName = %q", got)
	}
	if err := h.Complete(context.Background(), job); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !store.Has("transcripts/Jane_Doe_2024-03-01_AbCdEfGhIj.txt") {
		t.Fatalf("expected transcript under the tracking title, got %v", store.Names())
	}

	job.TrackingTitle = "Session with Jane"
	if got := DestinationName(job); got != "ledger-name.mp4" {
		t.Fatalf("non-canonical title should fall back, got %q", got)
	}
}

func TestCompleteUploadsEmptyTranscript(t *testing.T) {
	h, fake, store := newHandler()
	fake.Transcripts["job-1"] = []byte("  \n")
	if err := h.Complete(context.Background(), Job{JobID: "job-1", FileName: recording}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !store.Has("transcripts/Jane_Doe_2024-03-01_AbCdEfGhIj.txt") {
		t.Fatal("empty transcript should still be uploaded")
	}
}

func TestCompleteReportsFailedStep(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(*testsupport.FakeTranscriber, *testsupport.MemStore)
		want  Step
	}{
		{
			name: "fetch",
			setup: func(f *testsupport.FakeTranscriber, _ *testsupport.MemStore) {
				f.TranscriptErrs["job-1"] = boom
			},
			want: StepFetch,
		},
		{
			name: "upload",
			setup: func(f *testsupport.FakeTranscriber, s *testsupport.MemStore) {
				f.Transcripts["job-1"] = []byte("x")
				s.FailPut["transcripts/Jane_Doe_2024-03-01_AbCdEfGhIj.txt"] = boom
			},
			want: StepUpload,
		},
		{
			name: "relocate",
			setup: func(f *testsupport.FakeTranscriber, s *testsupport.MemStore) {
				f.Transcripts["job-1"] = []byte("x")
				s.Seed("incoming/"+recording, []byte("v"))
				s.FailCopy["incoming/"+recording] = boom
			},
			want: StepRelocate,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, fake, store := newHandler()
			tc.setup(fake, store)
			err := h.Complete(context.Background(), Job{JobID: "job-1", FileName: recording})
			step, ok := FailedStep(err)
			if !ok || step != tc.want {
				t.Fatalf("FailedStep = %q, %v (err %v)", step, ok, err)
			}
			if !errors.Is(err, boom) {
				t.Fatalf("expected cause to unwrap, got %v", err)
			}
		})
	}
}
