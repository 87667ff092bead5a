package tracking_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"coachflow/internal/services"
	"coachflow/internal/sheets"
	"coachflow/internal/tracking"
)

func openLedger(t *testing.T) (*tracking.Ledger, sheets.Sheet) {
	t.Helper()
	ctx := context.Background()
	book, err := sheets.OpenDatabase(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open book: %v", err)
	}
	t.Cleanup(func() { _ = book.Close() })
	sheet, err := book.Sheet(ctx, "Tracking")
	if err != nil {
		t.Fatalf("open sheet: %v", err)
	}
	ledger, err := tracking.OpenLedger(ctx, sheet)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	return ledger, sheet
}

func TestStatusClassification(t *testing.T) {
	for _, status := range []tracking.Status{
		tracking.StatusProcessing,
		tracking.StatusSubmitted,
		tracking.StatusRunning,
		tracking.StatusProcessingTranscript,
		tracking.StatusFetchingStatusError,
		tracking.StatusRateLimited,
	} {
		if status.IsTerminal() {
			t.Fatalf("%s should not be terminal", status)
		}
	}
	for _, status := range []tracking.Status{
		tracking.StatusDone,
		tracking.StatusRejected,
		tracking.StatusMissingJobID,
		tracking.StatusSubmitError,
		tracking.StatusSubmitNoJobID,
		tracking.StatusTranscriptError,
	} {
		if !status.IsTerminal() {
			t.Fatalf("%s should be terminal", status)
		}
	}
	if tracking.StatusDone.IsError() || !tracking.StatusRelocateError.IsError() {
		t.Fatal("unexpected IsError classification")
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]tracking.Status{
		"DONE":           tracking.StatusDone,
		" running ":      tracking.StatusRunning,
		"completed":      tracking.StatusDone,
		"failed":         tracking.StatusProviderError,
		"rate_limited":   tracking.StatusRateLimited,
		"cloudrun_error": tracking.StatusSubmitError,
		"processing":     tracking.StatusProcessing,
	}
	for input, want := range cases {
		got, ok := tracking.ParseStatus(input)
		if !ok || got != want {
			t.Fatalf("ParseStatus(%q) = %q/%v, want %q", input, got, ok, want)
		}
	}
	if _, ok := tracking.ParseStatus("exploded"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestStatusForPollError(t *testing.T) {
	cases := []struct {
		marker  error
		want    tracking.Status
		persist bool
	}{
		{services.ErrRateLimited, tracking.StatusRateLimited, false},
		{services.ErrUnauthorized, tracking.StatusAuthError, true},
		{services.ErrNotFound, tracking.StatusNotFoundError, true},
		{services.ErrMalformed, tracking.StatusBadResponse, true},
		{services.ErrTransient, tracking.StatusFetchingStatusError, true},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "transcription", "status", "", errors.New("x"))
		got, persist := tracking.StatusForPollError(err)
		if got != tc.want || persist != tc.persist {
			t.Fatalf("StatusForPollError(%v) = %s/%v, want %s/%v", tc.marker, got, persist, tc.want, tc.persist)
		}
	}
	if got, _ := tracking.StatusForPollError(errors.New("dial tcp: timeout")); got != tracking.StatusFetchingStatusError {
		t.Fatalf("unmarked error should be transient, got %s", got)
	}
}

func TestLedgerAppendUpdateRecords(t *testing.T) {
	ctx := context.Background()
	ledger, _ := openLedger(t)

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rec, err := ledger.Append(ctx, tracking.JobRecord{
		FileName:  "Jane_Doe_2024-03-01_AbCdEfGhIj.mp4",
		Status:    tracking.StatusProcessing,
		Timestamp: now,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rec.Row != 2 {
		t.Fatalf("expected row 2, got %d", rec.Row)
	}

	rec.JobID = "job-1"
	rec.Status = tracking.StatusSubmitted
	rec.Timestamp = now.Add(time.Minute)
	if err := ledger.Update(ctx, rec); err != nil {
		t.Fatalf("Update: %v", err)
	}

	records, err := ledger.Records(ctx)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.JobID != "job-1" || got.Status != tracking.StatusSubmitted || !got.Timestamp.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected record %+v", got)
	}

	names, err := ledger.FileNames(ctx)
	if err != nil {
		t.Fatalf("FileNames: %v", err)
	}
	if _, ok := names["Jane_Doe_2024-03-01_AbCdEfGhIj.mp4"]; !ok {
		t.Fatalf("expected file name in set: %v", names)
	}
}

func TestLedgerHonoursReorderedColumns(t *testing.T) {
	ctx := context.Background()
	book, err := sheets.OpenDatabase(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open book: %v", err)
	}
	defer book.Close()
	sheet, _ := book.Sheet(ctx, "Tracking")
	if _, err := sheet.EnsureHeader(ctx, []string{"Status", "Notes", "FileName", "Timestamp", "JobID"}); err != nil {
		t.Fatalf("EnsureHeader: %v", err)
	}
	ledger, err := tracking.OpenLedger(ctx, sheet)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	if _, err := ledger.Append(ctx, tracking.JobRecord{FileName: "a.mp4", JobID: "j", Status: tracking.StatusSubmitted}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	rows, _ := sheets.Rows(ctx, sheet)
	if rows[0][0] != "submitted" || rows[0][2] != "a.mp4" || rows[0][4] != "j" {
		t.Fatalf("values written to wrong columns: %v", rows[0])
	}
}

func TestUpdateRequiresRow(t *testing.T) {
	ledger, _ := openLedger(t)
	err := ledger.Update(context.Background(), tracking.JobRecord{FileName: "x.mp4"})
	if !errors.Is(err, tracking.ErrUnknownRow) {
		t.Fatalf("expected ErrUnknownRow, got %v", err)
	}
}
