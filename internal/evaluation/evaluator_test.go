package evaluation

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/convotest/convotest/internal/llm"
	"github.com/convotest/convotest/internal/models"
)

type stubLLMClient struct {
	mu       sync.Mutex
	calls    int
	response *llm.Response
	err      error
}

func (s *stubLLMClient) InvokeModel(ctx context.Context, request llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.response, s.err
}

func (s *stubLLMClient) InvokeModelWithRetry(ctx context.Context, request llm.Request) (*llm.Response, error) {
	return s.InvokeModel(ctx, request)
}

func (s *stubLLMClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testParams() []models.EvaluationParameter {
	return []models.EvaluationParameter{
		{ID: "accuracy", Name: "Accuracy", Weight: 60, Enabled: true},
		{ID: "completeness", Name: "Completeness", Weight: 30, Enabled: true},
		{ID: "tone", Name: "Tone", Weight: 10, Enabled: true},
	}
}

func TestEvaluator_Evaluate_AllParameters(t *testing.T) {
	logger := zerolog.Nop()
	client := &stubLLMClient{
		response: &llm.Response{Content: "SCORE: 75\nREASONING: decent"},
	}

	e := NewEvaluator(client, &logger)

	judgments, err := e.Evaluate(context.Background(), "q", "expected", "actual", testParams())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if len(judgments) != 3 {
		t.Fatalf("Expected 3 judgments, got %d", len(judgments))
	}
	if client.callCount() != 3 {
		t.Errorf("Expected 3 LLM calls, got %d", client.callCount())
	}

	// Judgments keep parameter order regardless of goroutine completion.
	expectedOrder := []string{"Accuracy", "Completeness", "Tone"}
	for i, j := range judgments {
		if j.ParameterName != expectedOrder[i] {
			t.Errorf("Expected judgment %d for %s, got %s", i, expectedOrder[i], j.ParameterName)
		}
		if j.Score != 75 {
			t.Errorf("Expected score 75 for %s, got %d", j.ParameterName, j.Score)
		}
	}
}

func TestEvaluator_Evaluate_SkipsDisabledAndZeroWeight(t *testing.T) {
	logger := zerolog.Nop()
	client := &stubLLMClient{
		response: &llm.Response{Content: "SCORE: 75\nREASONING: decent"},
	}

	params := []models.EvaluationParameter{
		{ID: "accuracy", Name: "Accuracy", Weight: 60, Enabled: true},
		{ID: "disabled", Name: "Disabled", Weight: 30, Enabled: false},
		{ID: "weightless", Name: "Weightless", Weight: 0, Enabled: true},
	}

	e := NewEvaluator(client, &logger)
	judgments, err := e.Evaluate(context.Background(), "q", "e", "a", params)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if len(judgments) != 1 {
		t.Fatalf("Expected 1 judgment, got %d", len(judgments))
	}
	if judgments[0].ParameterName != "Accuracy" {
		t.Errorf("Expected only Accuracy to be judged, got %s", judgments[0].ParameterName)
	}
	if client.callCount() != 1 {
		t.Errorf("Expected 1 LLM call, got %d", client.callCount())
	}
}

func TestEvaluator_Evaluate_NoScoredParameters(t *testing.T) {
	logger := zerolog.Nop()
	client := &stubLLMClient{}

	e := NewEvaluator(client, &logger)
	judgments, err := e.Evaluate(context.Background(), "q", "e", "a", []models.EvaluationParameter{
		{ID: "disabled", Name: "Disabled", Weight: 50, Enabled: false},
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if judgments != nil {
		t.Errorf("Expected nil judgments, got %v", judgments)
	}
	if client.callCount() != 0 {
		t.Errorf("Expected no LLM calls, got %d", client.callCount())
	}
}

func TestEvaluator_Evaluate_FailureIsolation(t *testing.T) {
	logger := zerolog.Nop()

	params := []models.EvaluationParameter{
		{ID: "accuracy", Name: "Accuracy", Weight: 60, Enabled: true},
		{ID: "broken", Name: "Broken", Weight: 40, Enabled: true, PromptTemplate: "{{.Invalid"},
	}

	client := &stubLLMClient{
		response: &llm.Response{Content: "SCORE: 90\nREASONING: good"},
	}

	e := NewEvaluator(client, &logger)
	judgments, err := e.Evaluate(context.Background(), "q", "e", "a", params)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if len(judgments) != 2 {
		t.Fatalf("Expected 2 judgments, got %d", len(judgments))
	}
	if judgments[0].Error != "" {
		t.Errorf("Expected Accuracy to succeed, got error '%s'", judgments[0].Error)
	}
	if judgments[1].Error == "" {
		t.Error("Expected the broken template to produce a failed judgment")
	}

	overall := WeightedOverall(judgments)
	if overall == nil || *overall != 90 {
		t.Errorf("Expected overall 90 from the surviving judgment, got %v", overall)
	}
}
