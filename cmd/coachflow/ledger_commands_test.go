package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"coachflow/internal/config"
	"coachflow/internal/homework"
	"coachflow/internal/sheets"
	"coachflow/internal/testsupport"
	"coachflow/internal/tracking"
)

func seedLedger(t *testing.T, cfg *config.Config) {
	t.Helper()
	ctx := context.Background()
	book, err := sheets.Open(ctx, cfg.Ledger.Backend, cfg.Ledger.Path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer book.Close()

	jobs, err := tracking.OpenLedger(ctx, testsupport.MustSheet(t, book, cfg.Ledger.TrackingSheet))
	if err != nil {
		t.Fatalf("open tracking ledger: %v", err)
	}
	at := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	for _, rec := range []tracking.JobRecord{
		{FileName: "Jane_Doe_2024-03-01_AbCdEfGhIj.mp4", JobID: "job-1", Status: tracking.StatusDone, Timestamp: at},
		{FileName: "John_Roe_2024-03-02_KlMnOpQrSt.mp4", JobID: "job-2", Status: tracking.StatusRunning, Timestamp: at},
		{FileName: "Ann_Poe_2024-03-03_UvWxYz0123.mp4", Status: tracking.StatusMissingJobID, Timestamp: at},
	} {
		if _, err := jobs.Append(ctx, rec); err != nil {
			t.Fatalf("append job: %v", err)
		}
	}

	hw, err := homework.OpenLedger(ctx, testsupport.MustSheet(t, book, cfg.Ledger.HomeworkSheet))
	if err != nil {
		t.Fatalf("open homework ledger: %v", err)
	}
	if _, err := hw.Append(ctx, homework.Assignment{
		StudentID:    "S-1",
		StudentName:  "Jane Doe",
		StudentEmail: "jane@example.com",
		HWID:         "L2-20240305",
		Token:        "tok",
		AssignedAt:   at,
		TokenStatus:  homework.TokenActive,
	}); err != nil {
		t.Fatalf("append assignment: %v", err)
	}
}

func TestJobsListRendersTable(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnsuredDirs())
	seedLedger(t, cfg)
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, path, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	for _, want := range []string{"Jane_Doe_2024-03-01_AbCdEfGhIj.mp4", "job-2", "error_missing_jobid", "UPDATED"} {
		requireContains(t, out, want)
	}
}

func TestJobsListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnsuredDirs())
	seedLedger(t, cfg)
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, path, "--json", "jobs", "list", "--status", "done,error_missing_jobid")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	var views []jobView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 jobs, got %+v", views)
	}
	for _, v := range views {
		if v.Status == string(tracking.StatusRunning) {
			t.Fatalf("running job should be filtered out: %+v", v)
		}
	}

	if _, _, err := runCLI(t, path, "jobs", "list", "--status", "bogus"); err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestAssignmentsList(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnsuredDirs())
	seedLedger(t, cfg)
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, path, "assignments", "list")
	if err != nil {
		t.Fatalf("assignments list: %v", err)
	}
	requireContains(t, out, "L2-20240305")
	requireContains(t, out, "jane@example.com")

	out, _, err = runCLI(t, path, "assignments", "list", "--student", "nobody")
	if err != nil {
		t.Fatalf("assignments list --student: %v", err)
	}
	requireContains(t, out, "No assignments found")
}
