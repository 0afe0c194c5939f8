package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/convotest/convotest/internal/models"
)

func TestMemoryStore_SaveAndListResults(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := s.SaveResult(ctx, "run-1", models.TestResult{QuestionID: fmt.Sprintf("q%d", i)})
		if err != nil {
			t.Fatalf("SaveResult failed: %v", err)
		}
	}

	results, err := s.ListResults(ctx, "run-1", 0)
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}
	if results[0].QuestionID != "q0" || results[4].QuestionID != "q4" {
		t.Error("Expected results in insertion order")
	}
}

func TestMemoryStore_ListResults_SkipTailsNewResults(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.SaveResult(ctx, "run-1", models.TestResult{QuestionID: fmt.Sprintf("q%d", i)})
	}

	// First poll takes everything.
	first, err := s.ListResults(ctx, "run-1", 0)
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(first))
	}

	// Nothing new yet.
	second, err := s.ListResults(ctx, "run-1", 3)
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("Expected no new results, got %d", len(second))
	}

	// Two more arrive; the same offset now returns just those.
	s.SaveResult(ctx, "run-1", models.TestResult{QuestionID: "q3"})
	s.SaveResult(ctx, "run-1", models.TestResult{QuestionID: "q4"})

	third, err := s.ListResults(ctx, "run-1", 3)
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(third) != 2 {
		t.Fatalf("Expected 2 new results, got %d", len(third))
	}
	if third[0].QuestionID != "q3" || third[1].QuestionID != "q4" {
		t.Errorf("Unexpected tail: %+v", third)
	}
}

func TestMemoryStore_ListResults_NegativeSkip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.SaveResult(ctx, "run-1", models.TestResult{QuestionID: "q0"})

	results, err := s.ListResults(ctx, "run-1", -5)
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected negative skip to behave like zero, got %d results", len(results))
	}
}

func TestMemoryStore_Progress(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetProgress(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}

	progress := models.RunProgress{
		RunID:          "run-1",
		TotalQuestions: 10,
		Status:         models.StatusRunning,
	}
	if err := s.UpdateProgress(ctx, progress); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	got, err := s.GetProgress(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if got.Status != models.StatusRunning || got.TotalQuestions != 10 {
		t.Errorf("Unexpected progress: %+v", got)
	}

	progress.CompletedQuestions = 4
	s.UpdateProgress(ctx, progress)

	got, _ = s.GetProgress(ctx, "run-1")
	if got.CompletedQuestions != 4 {
		t.Errorf("Expected updated snapshot, got %+v", got)
	}
}
