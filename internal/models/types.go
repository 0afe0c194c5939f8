package models

import (
	"time"
)

type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
)

// Terminal reports whether the status is final. Terminal statuses are never
// overwritten.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// AgentSummary is one agent as reported by a regional directory listing.
type AgentSummary struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	DisplayName string `json:"display_name"`
	Region      string `json:"region"`
}

// AgentLocation records which region hosts an agent. Immutable once created;
// a refreshed cache entry produces a new AgentLocation, never mutates one.
type AgentLocation struct {
	AgentID    string    `json:"agent_id"`
	Region     string    `json:"region"`
	FullName   string    `json:"full_name"`
	ResolvedAt time.Time `json:"resolved_at"`
}

type Question struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	ExpectedAnswer string `json:"expected_answer"`
}

// EvaluationParameter is one scoring dimension. Owned by the surrounding CRUD
// layer; the core only reads it.
type EvaluationParameter struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Weight         int    `json:"weight" yaml:"weight"`
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	PromptTemplate string `json:"prompt_template" yaml:"prompt"`
}

// Scored reports whether the parameter participates in the weighted overall
// score.
func (p EvaluationParameter) Scored() bool {
	return p.Enabled && p.Weight > 0
}

// ParameterJudgment is one judge verdict for one parameter on one question.
// A non-empty Error marks a failed judgment; failed judgments carry no score
// and are excluded from the weighted overall.
type ParameterJudgment struct {
	ParameterID   string `json:"parameter_id"`
	ParameterName string `json:"parameter_name"`
	Score         int    `json:"score"`
	WeightUsed    int    `json:"weight_used"`
	Reasoning     string `json:"reasoning"`
	Error         string `json:"error,omitempty"`
}

// Exchange is one message/reply pair from the agent session. Pre and post
// prompt exchanges are recorded but never scored.
type Exchange struct {
	Message string `json:"message"`
	Reply   string `json:"reply"`
	Scored  bool   `json:"scored"`
}

// TestResult is the outcome for a single question within a run. Created once;
// a retry replaces the whole record, it is never patched in place.
type TestResult struct {
	QuestionID      string              `json:"question_id"`
	ActualAnswer    string              `json:"actual_answer"`
	Judgments       []ParameterJudgment `json:"judgments"`
	OverallScore    *int                `json:"overall_score"`
	Reasoning       string              `json:"reasoning"`
	Transcript      []Exchange          `json:"transcript,omitempty"`
	ExecutionTimeMs int64               `json:"execution_time_ms"`
	ErrorMessage    string              `json:"error_message,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// RunProgress tracks one run. CompletedQuestions only ever increases and a
// result with an error still counts toward it.
type RunProgress struct {
	RunID              string     `json:"run_id"`
	TotalQuestions     int        `json:"total_questions"`
	CompletedQuestions int        `json:"completed_questions"`
	Status             RunStatus  `json:"status"`
	AverageScore       *int       `json:"average_score,omitempty"`
	EstimatedRemaining *int       `json:"estimated_seconds_remaining,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}
