package mcpadapter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/convotest/convotest/internal/agentapi"
	"github.com/convotest/convotest/internal/auth"
	"github.com/convotest/convotest/internal/discovery"
	"github.com/convotest/convotest/internal/engine"
	"github.com/convotest/convotest/internal/engine/mocks"
	"github.com/convotest/convotest/internal/locator"
	"github.com/convotest/convotest/internal/mcpadapter"
	"github.com/convotest/convotest/internal/models"
	"github.com/convotest/convotest/internal/regions"
	"github.com/convotest/convotest/internal/store"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func testRegistry(t *testing.T) *regions.Registry {
	t.Helper()
	registry, err := regions.New("https://agents.example.com", "https://%s-agents.example.com", []string{regions.Global})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return registry
}

// echoAgent answers every message with a fixed prefix.
type echoAgent struct{}

func (echoAgent) Query(ctx context.Context, req agentapi.QueryRequest) (agentapi.QueryResponse, error) {
	return agentapi.QueryResponse{ReplyText: "reply to " + req.Message}, nil
}

// oneAgentDirectory lists a single agent regardless of endpoint.
type oneAgentDirectory struct{}

func (oneAgentDirectory) ListAgents(ctx context.Context, endpoint, scope string, cred auth.Credential) ([]models.AgentSummary, error) {
	return []models.AgentSummary{
		{ID: "agent-1", FullName: "scopes/acme/agents/agent-1", DisplayName: "Agent One"},
	}, nil
}

func testEngine(t *testing.T, runs store.RunStore) *engine.Engine {
	t.Helper()
	ctrl := gomock.NewController(t)

	resolver := mocks.NewMockResolver(ctrl)
	resolver.EXPECT().
		Resolve(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.AgentLocation{
			AgentID:  "agent-1",
			Region:   regions.Global,
			FullName: "scopes/acme/agents/agent-1",
		}, nil).
		AnyTimes()

	evaluator := mocks.NewMockEvaluator(ctrl)
	evaluator.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]models.ParameterJudgment{
			{ParameterID: "accuracy", ParameterName: "Accuracy", Score: 90, WeightUsed: 100, Reasoning: "fine"},
		}, nil).
		AnyTimes()

	return engine.New(resolver, testRegistry(t), auth.Static("token"), echoAgent{}, evaluator, runs, testLogger())
}

func defaultParams() []models.EvaluationParameter {
	return []models.EvaluationParameter{
		{ID: "accuracy", Name: "Accuracy", Weight: 100, Enabled: true},
	}
}

func TestStartRunTool_Lifecycle(t *testing.T) {
	runs := store.NewMemoryStore()
	eng := testEngine(t, runs)

	start := mcpadapter.NewStartRunHandler(eng, defaultParams())
	_, started, err := start(context.Background(), nil, mcpadapter.StartRunInput{
		AgentID:   "agent-1",
		Principal: "user-1",
		Scope:     "acme",
		Questions: []models.Question{
			{ID: "q0", Text: "question 0", ExpectedAnswer: "expected"},
		},
	})
	if err != nil {
		t.Fatalf("start_run failed: %v", err)
	}
	if started.RunID == "" {
		t.Fatal("Expected a run id")
	}

	progressTool := mcpadapter.NewProgressHandler(runs)
	deadline := time.After(5 * time.Second)
	var progress models.RunProgress
	for {
		_, progress, err = progressTool(context.Background(), nil, mcpadapter.RunInput{RunID: started.RunID})
		if err != nil {
			t.Fatalf("run_progress failed: %v", err)
		}
		if progress.Status == models.StatusCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("run never completed, last status %s", progress.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}

	if progress.CompletedQuestions != 1 {
		t.Errorf("Expected 1 completed question, got %d", progress.CompletedQuestions)
	}
	if progress.AverageScore == nil || *progress.AverageScore != 90 {
		t.Errorf("Expected average score 90, got %v", progress.AverageScore)
	}

	resultsTool := mcpadapter.NewResultsHandler(runs)
	_, results, err := resultsTool(context.Background(), nil, mcpadapter.ResultsInput{RunID: started.RunID})
	if err != nil {
		t.Fatalf("run_results failed: %v", err)
	}
	if len(results.Results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results.Results))
	}
	if results.Results[0].OverallScore == nil || *results.Results[0].OverallScore != 90 {
		t.Errorf("Expected score 90, got %v", results.Results[0].OverallScore)
	}

	// Tailing past the recorded results yields nothing new.
	_, tail, err := resultsTool(context.Background(), nil, mcpadapter.ResultsInput{RunID: started.RunID, Skip: 1})
	if err != nil {
		t.Fatalf("run_results with skip failed: %v", err)
	}
	if len(tail.Results) != 0 {
		t.Errorf("Expected no results past the offset, got %d", len(tail.Results))
	}
}

func TestStartRunTool_InvalidSpec(t *testing.T) {
	eng := testEngine(t, store.NewMemoryStore())

	start := mcpadapter.NewStartRunHandler(eng, defaultParams())
	_, _, err := start(context.Background(), nil, mcpadapter.StartRunInput{
		AgentID: "agent-1",
	})
	if !errors.Is(err, engine.ErrNoQuestions) {
		t.Errorf("Expected ErrNoQuestions, got %v", err)
	}
}

func TestCancelRunTool_UnknownRun(t *testing.T) {
	eng := testEngine(t, store.NewMemoryStore())

	cancel := mcpadapter.NewCancelRunHandler(eng)
	_, _, err := cancel(context.Background(), nil, mcpadapter.RunInput{RunID: "nope"})
	if !errors.Is(err, engine.ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestListAgentsTool(t *testing.T) {
	coordinator := discovery.NewCoordinator(
		testRegistry(t),
		auth.Static("token"),
		locator.NewMemoryCache(),
		oneAgentDirectory{},
		testLogger(),
	)

	list := mcpadapter.NewListAgentsHandler(coordinator)
	_, listing, err := list(context.Background(), nil, mcpadapter.ListAgentsInput{
		Principal: "user-1",
		Scope:     "acme",
	})
	if err != nil {
		t.Fatalf("list_agents failed: %v", err)
	}
	if len(listing.Agents) != 1 || listing.Agents[0].ID != "agent-1" {
		t.Errorf("Unexpected listing: %+v", listing.Agents)
	}
}
