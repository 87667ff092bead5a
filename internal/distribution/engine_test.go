package distribution

import (
	"context"
	"errors"
	"testing"

	"coachflow/internal/logging"
	"coachflow/internal/roster"
	"coachflow/internal/testsupport"
)

func newRoster() *roster.Roster {
	return roster.New([]roster.Entry{
		{Row: 2, Name: "jane doe", Email: "Jane@X.com", FolderID: "folder-jane"},
		{Row: 3, Name: "John Smith", Email: "john@x.com", FolderID: "folder-john"},
		{Row: 4, Name: "No Folder", Email: "nf@x.com"},
	})
}

func newEngine(store *testsupport.MemStore, dest *testsupport.MemFolders) *Engine {
	return NewEngine(store, dest, newRoster(), "transcripts/", logging.NewNop())
}

func newFolders() *testsupport.MemFolders {
	dest := testsupport.NewMemFolders()
	dest.AddFolder("folder-jane", "Jane")
	dest.AddFolder("folder-john", "John")
	return dest
}

func TestRunBatchesByStudentEmail(t *testing.T) {
	store := testsupport.NewMemStore()
	store.Seed("transcripts/Jane_Doe_2024-03-01_AbCdEfGhIj.txt", []byte("jane transcript"))
	dest := newFolders()

	result, err := newEngine(store, dest).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	batch, ok := result.Batches.Get("jane@x.com")
	if !ok {
		t.Fatalf("expected batch keyed by email, got %v", result.Batches.Keys())
	}
	if len(batch.Transcripts) != 1 || batch.Transcripts[0] != "Jane_Doe_2024-03-01_AbCdEfGhIj.txt" {
		t.Fatalf("transcripts = %v", batch.Transcripts)
	}
	content, ok := dest.Content("folder-jane", "Jane_Doe_2024-03-01_AbCdEfGhIj.txt")
	if !ok || string(content) != "jane transcript" {
		t.Fatalf("delivered content = %q, %v", content, ok)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := testsupport.NewMemStore()
	store.Seed("transcripts/Jane_Doe_2024-03-01_AbCdEfGhIj.txt", []byte("a"))
	store.Seed("transcripts/Jane_Doe_2024-03-02_KlMnOpQrSt.txt", []byte("b"))
	store.Seed("transcripts/John_Smith_2024-03-01_0000000042.txt", []byte("c"))
	dest := newFolders()
	engine := newEngine(store, dest)

	first, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Batches.Len() != 2 || first.Summary.Count(OutcomeDelivered) != 3 {
		t.Fatalf("first run batches=%d summary=%s", first.Batches.Len(), first.Summary)
	}

	second, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Batches.Len() != 0 || second.Summary.Count(OutcomeSkippedExists) != 3 {
		t.Fatalf("second run batches=%d summary=%s", second.Batches.Len(), second.Summary)
	}
	if got := len(dest.Files("folder-jane")); got != 2 {
		t.Fatalf("jane folder has %d files", got)
	}
}

func TestRunCountsDataErrors(t *testing.T) {
	store := testsupport.NewMemStore()
	store.Seed("transcripts/notes.txt", []byte("x"))
	store.Seed("transcripts/*Jane_Doe_2024-03-01_AbCdEfGhIj.txt", []byte("x"))
	store.Seed("transcripts/Ghost_Person_2024-03-01_AbCdEfGhIj.txt", []byte("x"))
	store.Seed("transcripts/No_Folder_2024-03-01_AbCdEfGhIj.txt", []byte("x"))
	store.Seed("transcripts/readme.md", []byte("x"))
	dest := newFolders()

	result, err := newEngine(store, dest).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := result.Summary
	if s.Count(OutcomeSeen) != 4 {
		t.Fatalf("seen = %d, want 4 (summary %s)", s.Count(OutcomeSeen), s)
	}
	if s.Count(OutcomeUnparseable) != 1 || s.Count(OutcomeExcluded) != 1 || s.Count(OutcomeNoMatch) != 1 || s.Count(OutcomeNoFolder) != 1 {
		t.Fatalf("summary = %s", s)
	}
	if s.Failures() != 3 {
		t.Fatalf("failures = %d, exclusions must not count", s.Failures())
	}
	if result.Batches.Len() != 0 {
		t.Fatal("no batches expected")
	}
}

func TestRunContinuesAfterDeliveryFailure(t *testing.T) {
	store := testsupport.NewMemStore()
	store.Seed("transcripts/Jane_Doe_2024-03-01_AbCdEfGhIj.txt", []byte("a"))
	store.Seed("transcripts/John_Smith_2024-03-01_0000000042.txt", []byte("b"))
	dest := newFolders()
	dest.FailCreate["folder-jane"] = errors.New("permission denied")

	result, err := newEngine(store, dest).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Summary.Count(OutcomeFailed) != 1 || result.Summary.Count(OutcomeDelivered) != 1 {
		t.Fatalf("summary = %s", result.Summary)
	}
	if _, ok := result.Batches.Get("jane@x.com"); ok {
		t.Fatal("failed delivery must not join the batch")
	}
	if _, ok := result.Batches.Get("john@x.com"); !ok {
		t.Fatal("expected john's batch")
	}
}

func TestBatchesAreImmutable(t *testing.T) {
	b := newBuilder()
	b.add(roster.Entry{Row: 7, Name: "Jane"}, "a.txt")
	frozen := b.freeze()
	b.add(roster.Entry{Row: 7, Name: "Jane"}, "b.txt")

	batch, ok := frozen.Get("row:7")
	if !ok || len(batch.Transcripts) != 1 {
		t.Fatalf("frozen batch changed: %+v", batch)
	}
	batch.Transcripts[0] = "mutated"
	again, _ := frozen.Get("row:7")
	if again.Transcripts[0] != "a.txt" {
		t.Fatal("Get must return a copy")
	}
	if keys := frozen.Keys(); len(keys) != 1 || keys[0] != "row:7" {
		t.Fatalf("keys = %v", keys)
	}
}
