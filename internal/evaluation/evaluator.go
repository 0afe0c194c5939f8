package evaluation

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/convotest/convotest/internal/judge"
	"github.com/convotest/convotest/internal/llm"
	"github.com/convotest/convotest/internal/models"
)

// Evaluator runs every scored parameter's judge against an agent answer
// and collects the judgments in parameter order.
type Evaluator struct {
	llmClient llm.Client
	logger    *zerolog.Logger
}

func NewEvaluator(llmClient llm.Client, logger *zerolog.Logger) *Evaluator {
	return &Evaluator{
		llmClient: llmClient,
		logger:    logger,
	}
}

func (e *Evaluator) Evaluate(
	ctx context.Context,
	question string,
	expectedAnswer string,
	actualAnswer string,
	params []models.EvaluationParameter,
) ([]models.ParameterJudgment, error) {
	var scored []models.EvaluationParameter
	for _, p := range params {
		if p.Scored() {
			scored = append(scored, p)
		}
	}

	if len(scored) == 0 {
		return nil, nil
	}

	input := judge.PromptInput{
		Question:       question,
		ExpectedAnswer: expectedAnswer,
		ActualAnswer:   actualAnswer,
	}

	judgments := make([]models.ParameterJudgment, len(scored))

	var wg sync.WaitGroup
	for i, param := range scored {
		wg.Add(1)
		go func(i int, param models.EvaluationParameter) {
			defer wg.Done()
			judgments[i] = e.judgeParameter(ctx, param, input)
		}(i, param)
	}
	wg.Wait()

	return judgments, nil
}

func (e *Evaluator) judgeParameter(
	ctx context.Context,
	param models.EvaluationParameter,
	input judge.PromptInput,
) models.ParameterJudgment {
	j, err := judge.NewParameterJudge(param, e.llmClient, e.logger)
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("parameter", param.Name).
			Msg("failed to build judge for parameter")
		return models.ParameterJudgment{
			ParameterID:   param.ID,
			ParameterName: param.Name,
			WeightUsed:    param.Weight,
			Error:         err.Error(),
		}
	}
	return j.Evaluate(ctx, input)
}
