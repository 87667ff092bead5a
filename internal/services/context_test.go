package services_test

import (
	"context"
	"testing"

	"coachflow/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithStage(ctx, "poll")
	ctx = services.WithFileName(ctx, "Jane_Doe_2024-03-01_AbCdEfGhIj.mp4")
	ctx = services.WithStudent(ctx, "jane@x.com")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "poll" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if name, ok := services.FileNameFromContext(ctx); !ok || name != "Jane_Doe_2024-03-01_AbCdEfGhIj.mp4" {
		t.Fatalf("unexpected file name: %v %v", name, ok)
	}
	if student, ok := services.StudentFromContext(ctx); !ok || student != "jane@x.com" {
		t.Fatalf("unexpected student: %v %v", student, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
