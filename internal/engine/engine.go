package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/convotest/convotest/internal/agentapi"
	"github.com/convotest/convotest/internal/auth"
	"github.com/convotest/convotest/internal/evaluation"
	"github.com/convotest/convotest/internal/models"
	"github.com/convotest/convotest/internal/regions"
)

var (
	ErrNoScoredParameters = errors.New("no enabled parameter with a positive weight")
	ErrInvalidWeights     = errors.New("enabled parameter weights must sum to 100")
	ErrNoQuestions        = errors.New("run has no questions")
	ErrRunNotFound        = errors.New("run not found")
	ErrRunExists          = errors.New("run already exists")
)

const (
	defaultConcurrency = 10
	maxConcurrency     = 100
)

// Resolver locates an agent across regions.
type Resolver interface {
	Resolve(ctx context.Context, agentID, principal, scope string) (models.AgentLocation, error)
}

// Evaluator scores one agent answer against the run's parameters.
type Evaluator interface {
	Evaluate(ctx context.Context, question, expectedAnswer, actualAnswer string, params []models.EvaluationParameter) ([]models.ParameterJudgment, error)
}

// RunStore persists results and progress snapshots.
type RunStore interface {
	SaveResult(ctx context.Context, runID string, result models.TestResult) error
	UpdateProgress(ctx context.Context, progress models.RunProgress) error
}

// RunSpec describes one batch run against a single agent.
type RunSpec struct {
	RunID              string
	AgentID            string
	Principal          string
	Scope              string
	Questions          []models.Question
	Parameters         []models.EvaluationParameter
	Concurrency        int
	PrePromptMessages  []string
	PostPromptMessages []string
	SessionParameters  map[string]string
	LanguageCode       string
	EnableWebhook      bool
}

type runState struct {
	cancel context.CancelFunc

	mu        sync.Mutex
	progress  models.RunProgress
	scoreSum  int
	scoreCnt  int
	startedAt time.Time
}

// Engine runs batches of test questions against a resolved agent with a
// bounded worker pool, judging every reply as it arrives.
type Engine struct {
	resolver  Resolver
	registry  *regions.Registry
	creds     auth.Provider
	agent     agentapi.Client
	evaluator Evaluator
	store     RunStore
	logger    *zerolog.Logger

	mu sync.Mutex
	// Terminal runs stay registered so Progress and repeated Cancel keep
	// answering for them. Each entry is a few hundred bytes; durable state
	// lives in the store, which remains the source of truth across restarts.
	runs map[string]*runState
}

func New(
	resolver Resolver,
	registry *regions.Registry,
	creds auth.Provider,
	agent agentapi.Client,
	evaluator Evaluator,
	store RunStore,
	logger *zerolog.Logger,
) *Engine {
	return &Engine{
		resolver:  resolver,
		registry:  registry,
		creds:     creds,
		agent:     agent,
		evaluator: evaluator,
		store:     store,
		logger:    logger,
		runs:      make(map[string]*runState),
	}
}

// Start validates the spec, registers the run and launches its workers.
// It returns as soon as the run is accepted; callers track it through
// Progress and the store.
func (e *Engine) Start(ctx context.Context, spec RunSpec) (string, error) {
	if err := validateSpec(spec); err != nil {
		return "", err
	}

	if spec.RunID == "" {
		spec.RunID = uuid.NewString()
	}
	concurrency := spec.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if concurrency > maxConcurrency {
		concurrency = maxConcurrency
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	now := time.Now()
	state := &runState{
		cancel:    cancel,
		startedAt: now,
		progress: models.RunProgress{
			RunID:          spec.RunID,
			TotalQuestions: len(spec.Questions),
			Status:         models.StatusPending,
			StartedAt:      &now,
		},
	}

	e.mu.Lock()
	if _, exists := e.runs[spec.RunID]; exists {
		e.mu.Unlock()
		cancel()
		return "", fmt.Errorf("%w: %s", ErrRunExists, spec.RunID)
	}
	e.runs[spec.RunID] = state
	e.mu.Unlock()

	if err := e.store.UpdateProgress(runCtx, state.snapshot()); err != nil {
		e.logger.Error().Err(err).Str("runID", spec.RunID).Msg("failed to persist initial progress")
	}

	go e.execute(runCtx, spec, state, concurrency)

	return spec.RunID, nil
}

// Cancel marks the run cancelled and stops its workers. Questions already
// in flight finish and their results are still recorded.
func (e *Engine) Cancel(ctx context.Context, runID string) error {
	e.mu.Lock()
	state, ok := e.runs[runID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	state.mu.Lock()
	if state.progress.Status.Terminal() {
		state.mu.Unlock()
		return nil
	}
	now := time.Now()
	state.progress.Status = models.StatusCancelled
	state.progress.CompletedAt = &now
	snapshot := state.progress
	state.mu.Unlock()

	state.cancel()

	if err := e.store.UpdateProgress(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to persist cancellation: %w", err)
	}

	e.logger.Info().Str("runID", runID).Msg("run cancelled")
	return nil
}

// Progress returns the current progress snapshot for a run.
func (e *Engine) Progress(runID string) (models.RunProgress, error) {
	e.mu.Lock()
	state, ok := e.runs[runID]
	e.mu.Unlock()
	if !ok {
		return models.RunProgress{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return state.snapshot(), nil
}

func validateSpec(spec RunSpec) error {
	if len(spec.Questions) == 0 {
		return ErrNoQuestions
	}

	weightSum := 0
	scored := 0
	for _, p := range spec.Parameters {
		if !p.Enabled {
			continue
		}
		weightSum += p.Weight
		if p.Scored() {
			scored++
		}
	}
	if scored == 0 {
		return ErrNoScoredParameters
	}
	if weightSum != 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidWeights, weightSum)
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, spec RunSpec, state *runState, concurrency int) {
	location, err := e.resolver.Resolve(ctx, spec.AgentID, spec.Principal, spec.Scope)
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("runID", spec.RunID).
			Str("agentID", spec.AgentID).
			Msg("agent resolution failed")
		e.finish(ctx, state, models.StatusFailed)
		return
	}

	cred, err := e.creds.Credential(ctx)
	if err != nil {
		e.logger.Error().Err(err).Str("runID", spec.RunID).Msg("credential acquisition failed")
		e.finish(ctx, state, models.StatusFailed)
		return
	}

	endpoint := e.registry.Endpoint(location.Region)

	e.transition(ctx, state, models.StatusRunning)
	e.logger.Info().
		Str("runID", spec.RunID).
		Str("region", location.Region).
		Int("questions", len(spec.Questions)).
		Int("concurrency", concurrency).
		Msg("run started")

	questions := make(chan models.Question)
	var wg sync.WaitGroup

	// Cancellation only gates the dequeue below. A question already handed
	// to a worker keeps an uncancellable context, so its query and
	// judgments run to completion and are recorded.
	questionCtx := context.WithoutCancel(ctx)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case q, ok := <-questions:
					if !ok {
						return
					}
					e.runQuestion(questionCtx, spec, state, location, endpoint, cred, q)
				}
			}
		}()
	}

feed:
	for _, q := range spec.Questions {
		select {
		case <-ctx.Done():
			break feed
		case questions <- q:
		}
	}
	close(questions)
	wg.Wait()

	e.finish(ctx, state, models.StatusCompleted)
	e.logger.Info().Str("runID", spec.RunID).Msg("run finished")
}

func (e *Engine) runQuestion(
	ctx context.Context,
	spec RunSpec,
	state *runState,
	location models.AgentLocation,
	endpoint string,
	cred auth.Credential,
	q models.Question,
) {
	start := time.Now()
	sessionID := uuid.NewString()

	result := models.TestResult{
		QuestionID: q.ID,
		CreatedAt:  start,
	}

	query := func(message string, scored bool) (string, error) {
		resp, err := e.agent.Query(ctx, agentapi.QueryRequest{
			SessionID:         sessionID,
			Endpoint:          endpoint,
			AgentFullName:     location.FullName,
			Message:           message,
			LanguageCode:      spec.LanguageCode,
			SessionParameters: spec.SessionParameters,
			EnableWebhook:     spec.EnableWebhook,
			Credential:        cred,
		})
		if err != nil {
			return "", err
		}
		result.Transcript = append(result.Transcript, models.Exchange{
			Message: message,
			Reply:   resp.ReplyText,
			Scored:  scored,
		})
		return resp.ReplyText, nil
	}

	fail := func(err error) {
		result.ErrorMessage = err.Error()
		result.ExecutionTimeMs = time.Since(start).Milliseconds()
		e.record(ctx, spec.RunID, state, result)
	}

	for _, msg := range spec.PrePromptMessages {
		if _, err := query(msg, false); err != nil {
			fail(fmt.Errorf("pre-prompt message failed: %w", err))
			return
		}
	}

	answer, err := query(q.Text, true)
	if err != nil {
		fail(fmt.Errorf("agent query failed: %w", err))
		return
	}
	result.ActualAnswer = answer

	for _, msg := range spec.PostPromptMessages {
		if _, err := query(msg, false); err != nil {
			e.logger.Warn().
				Err(err).
				Str("runID", spec.RunID).
				Str("questionID", q.ID).
				Msg("post-prompt message failed")
			break
		}
	}

	judgments, err := e.evaluator.Evaluate(ctx, q.Text, q.ExpectedAnswer, answer, spec.Parameters)
	if err != nil {
		fail(fmt.Errorf("evaluation failed: %w", err))
		return
	}

	result.Judgments = judgments
	result.OverallScore = evaluation.WeightedOverall(judgments)
	result.Reasoning = evaluation.CombineReasoning(judgments)
	result.ExecutionTimeMs = time.Since(start).Milliseconds()

	e.record(ctx, spec.RunID, state, result)
}

func (e *Engine) record(ctx context.Context, runID string, state *runState, result models.TestResult) {
	if err := e.store.SaveResult(ctx, runID, result); err != nil {
		e.logger.Error().
			Err(err).
			Str("runID", runID).
			Str("questionID", result.QuestionID).
			Msg("failed to persist result")
	}

	state.mu.Lock()
	state.progress.CompletedQuestions++
	if result.OverallScore != nil {
		state.scoreSum += *result.OverallScore
		state.scoreCnt++
	}
	if state.scoreCnt > 0 {
		avg := int(math.Round(float64(state.scoreSum) / float64(state.scoreCnt)))
		state.progress.AverageScore = &avg
	}
	if remaining := state.progress.TotalQuestions - state.progress.CompletedQuestions; remaining > 0 {
		perQuestion := time.Since(state.startedAt) / time.Duration(state.progress.CompletedQuestions)
		eta := int(perQuestion.Seconds() * float64(remaining))
		state.progress.EstimatedRemaining = &eta
	} else {
		state.progress.EstimatedRemaining = nil
	}
	snapshot := state.progress
	state.mu.Unlock()

	if err := e.store.UpdateProgress(ctx, snapshot); err != nil {
		e.logger.Error().Err(err).Str("runID", runID).Msg("failed to persist progress")
	}
}

// transition moves a run to a non-terminal status. Terminal statuses are
// never overwritten.
func (e *Engine) transition(ctx context.Context, state *runState, status models.RunStatus) {
	state.mu.Lock()
	if state.progress.Status.Terminal() {
		state.mu.Unlock()
		return
	}
	state.progress.Status = status
	snapshot := state.progress
	state.mu.Unlock()

	if err := e.store.UpdateProgress(ctx, snapshot); err != nil {
		e.logger.Error().Err(err).Str("runID", snapshot.RunID).Msg("failed to persist progress")
	}
}

func (e *Engine) finish(ctx context.Context, state *runState, status models.RunStatus) {
	state.mu.Lock()
	if state.progress.Status.Terminal() {
		state.mu.Unlock()
		return
	}
	now := time.Now()
	state.progress.Status = status
	state.progress.CompletedAt = &now
	state.progress.EstimatedRemaining = nil
	snapshot := state.progress
	state.mu.Unlock()

	if err := e.store.UpdateProgress(ctx, snapshot); err != nil {
		e.logger.Error().Err(err).Str("runID", snapshot.RunID).Msg("failed to persist final progress")
	}
}

func (s *runState) snapshot() models.RunProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}
