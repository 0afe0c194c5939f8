package mcpadapter

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/convotest/convotest/internal/discovery"
	"github.com/convotest/convotest/internal/engine"
	"github.com/convotest/convotest/internal/models"
	"github.com/convotest/convotest/internal/store"
)

// StartRunInput is the MCP tool input schema (matches HTTP API field names).
type StartRunInput struct {
	AgentID            string            `json:"agent_id" jsonschema:"agent identifier to test"`
	Principal          string            `json:"principal" jsonschema:"requesting user identifier"`
	Scope              string            `json:"scope" jsonschema:"deployment scope to search"`
	Questions          []models.Question `json:"questions" jsonschema:"questions with expected answers"`
	Concurrency        int               `json:"concurrency,omitempty" jsonschema:"concurrent question workers (default: 10)"`
	PrePromptMessages  []string          `json:"pre_prompt_messages,omitempty" jsonschema:"messages sent before each question, recorded but not scored"`
	PostPromptMessages []string          `json:"post_prompt_messages,omitempty" jsonschema:"messages sent after each question, recorded but not scored"`
	LanguageCode       string            `json:"language_code,omitempty" jsonschema:"query language code (default: en)"`
}

// StartRunOutput carries the accepted run's identifier.
type StartRunOutput struct {
	RunID string `json:"run_id"`
}

// RunInput identifies an existing run.
type RunInput struct {
	RunID string `json:"run_id" jsonschema:"run identifier"`
}

// ResultsInput identifies a run and an offset into its recorded results.
type ResultsInput struct {
	RunID string `json:"run_id" jsonschema:"run identifier"`
	Skip  int    `json:"skip,omitempty" jsonschema:"number of results to skip, for tailing"`
}

// ResultsOutput is the recorded results after the skip offset.
type ResultsOutput struct {
	RunID   string              `json:"run_id"`
	Results []models.TestResult `json:"results"`
}

// ListAgentsInput identifies the principal and scope to discover agents for.
type ListAgentsInput struct {
	Principal string `json:"principal" jsonschema:"requesting user identifier"`
	Scope     string `json:"scope" jsonschema:"deployment scope to search"`
}

// ListAgentsOutput is the combined agent listing across regions.
type ListAgentsOutput struct {
	Agents []models.AgentSummary `json:"agents"`
}

// NewStartRunHandler returns a tool handler that launches a run on the given
// engine. Runs started over MCP always use the configured default
// parameters. Pass the returned function to mcp.AddTool.
func NewStartRunHandler(eng *engine.Engine, defaultParams []models.EvaluationParameter) func(context.Context, *mcp.CallToolRequest, StartRunInput) (*mcp.CallToolResult, StartRunOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StartRunInput) (*mcp.CallToolResult, StartRunOutput, error) {
		runID, err := eng.Start(ctx, engine.RunSpec{
			AgentID:            input.AgentID,
			Principal:          input.Principal,
			Scope:              input.Scope,
			Questions:          input.Questions,
			Parameters:         defaultParams,
			Concurrency:        input.Concurrency,
			PrePromptMessages:  input.PrePromptMessages,
			PostPromptMessages: input.PostPromptMessages,
			LanguageCode:       input.LanguageCode,
		})
		if err != nil {
			return nil, StartRunOutput{}, err
		}
		return nil, StartRunOutput{RunID: runID}, nil
	}
}

// NewCancelRunHandler returns a tool handler that cancels a run and reports
// the progress snapshot taken at cancellation.
func NewCancelRunHandler(eng *engine.Engine) func(context.Context, *mcp.CallToolRequest, RunInput) (*mcp.CallToolResult, models.RunProgress, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RunInput) (*mcp.CallToolResult, models.RunProgress, error) {
		if err := eng.Cancel(ctx, input.RunID); err != nil {
			return nil, models.RunProgress{}, err
		}
		progress, err := eng.Progress(input.RunID)
		return nil, progress, err
	}
}

// NewProgressHandler returns a tool handler that reads run progress from the
// store, so it also answers for runs started by another process.
func NewProgressHandler(runs store.RunStore) func(context.Context, *mcp.CallToolRequest, RunInput) (*mcp.CallToolResult, models.RunProgress, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RunInput) (*mcp.CallToolResult, models.RunProgress, error) {
		progress, err := runs.GetProgress(ctx, input.RunID)
		return nil, progress, err
	}
}

// NewResultsHandler returns a tool handler that lists recorded results with
// a skip offset for tailing.
func NewResultsHandler(runs store.RunStore) func(context.Context, *mcp.CallToolRequest, ResultsInput) (*mcp.CallToolResult, ResultsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ResultsInput) (*mcp.CallToolResult, ResultsOutput, error) {
		results, err := runs.ListResults(ctx, input.RunID, input.Skip)
		if err != nil {
			return nil, ResultsOutput{}, err
		}
		return nil, ResultsOutput{RunID: input.RunID, Results: results}, nil
	}
}

// NewListAgentsHandler returns a tool handler that discovers the agents
// visible to a principal within a scope, cache-first.
func NewListAgentsHandler(coordinator *discovery.Coordinator) func(context.Context, *mcp.CallToolRequest, ListAgentsInput) (*mcp.CallToolResult, ListAgentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListAgentsInput) (*mcp.CallToolResult, ListAgentsOutput, error) {
		agents, err := coordinator.ListAgents(ctx, input.Principal, input.Scope)
		if err != nil {
			return nil, ListAgentsOutput{}, err
		}
		return nil, ListAgentsOutput{Agents: agents}, nil
	}
}
