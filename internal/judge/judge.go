package judge

import (
	"context"

	"github.com/convotest/convotest/internal/models"
)

// PromptInput carries the fields exposed to a judge prompt template.
type PromptInput struct {
	Question       string
	ExpectedAnswer string
	ActualAnswer   string
	ParameterName  string
}

type Judge interface {
	Evaluate(ctx context.Context, input PromptInput) models.ParameterJudgment
}
