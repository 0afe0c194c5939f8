package judge

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/convotest/convotest/internal/llm"
	"github.com/convotest/convotest/internal/models"
)

const defaultPrompt = `You are an expert evaluator of conversational AI agents.
Rate the agent's answer for the criterion "{{.ParameterName}}" on a scale from 0 to 100.

Question: {{.Question}}
Expected answer: {{.ExpectedAnswer}}
Actual answer: {{.ActualAnswer}}

Respond in exactly this format:
SCORE: <number between 0 and 100>
REASONING: <one or two sentences explaining the score>`

const (
	judgeMaxTokens   = 512
	judgeTemperature = 0.0
)

// ParameterJudge scores one evaluation parameter via an LLM prompt.
type ParameterJudge struct {
	param          models.EvaluationParameter
	promptTemplate *template.Template
	llmClient      llm.Client
	logger         *zerolog.Logger
}

func NewParameterJudge(
	param models.EvaluationParameter,
	llmClient llm.Client,
	logger *zerolog.Logger,
) (*ParameterJudge, error) {
	prompt := param.PromptTemplate
	if prompt == "" {
		prompt = defaultPrompt
	}

	tmpl, err := template.New(param.Name).Parse(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template for parameter %s: %w", param.Name, err)
	}

	return &ParameterJudge{
		param:          param,
		promptTemplate: tmpl,
		llmClient:      llmClient,
		logger:         logger,
	}, nil
}

func (j *ParameterJudge) Name() string {
	return j.param.Name
}

func (j *ParameterJudge) Evaluate(ctx context.Context, input PromptInput) models.ParameterJudgment {
	now := time.Now()

	result := models.ParameterJudgment{
		ParameterID:   j.param.ID,
		ParameterName: j.param.Name,
		WeightUsed:    j.param.Weight,
	}

	input.ParameterName = j.param.Name

	prompt, err := j.buildPrompt(input)
	if err != nil {
		j.logger.Error().
			Err(err).
			Str("parameter", j.param.Name).
			Msg("failed to build prompt from template")
		result.Error = fmt.Sprintf("failed to build prompt: %v", err)
		return result
	}

	resp, err := j.llmClient.InvokeModelWithRetry(ctx, llm.Request{
		Prompt:      prompt,
		MaxTokens:   judgeMaxTokens,
		Temperature: judgeTemperature,
	})
	if err != nil {
		j.logger.Error().
			Err(err).
			Str("parameter", j.param.Name).
			Msg("LLM call failed")
		result.Error = fmt.Sprintf("LLM call failed: %v", err)
		return result
	}

	score, reasoning := parseJudgeResponse(resp.Content)
	result.Score = score
	result.Reasoning = reasoning

	j.logger.Info().
		Str("parameter", j.param.Name).
		Int("score", score).
		Dur("duration", time.Since(now)).
		Msg("parameter judged")

	return result
}

func (j *ParameterJudge) buildPrompt(input PromptInput) (string, error) {
	var buf bytes.Buffer
	if err := j.promptTemplate.Execute(&buf, input); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return buf.String(), nil
}
