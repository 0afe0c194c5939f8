package evaluation

import (
	"fmt"
	"math"
	"strings"

	"github.com/convotest/convotest/internal/models"
)

// WeightedOverall computes the weighted average of the successful
// judgments, rounded to the nearest integer. Judgments that failed or
// carry a non-positive weight are skipped. Returns nil when no judgment
// contributes to the score.
func WeightedOverall(judgments []models.ParameterJudgment) *int {
	var weightedSum, weightTotal float64

	for _, j := range judgments {
		if j.Error != "" || j.WeightUsed <= 0 {
			continue
		}
		weightedSum += float64(j.Score) * float64(j.WeightUsed)
		weightTotal += float64(j.WeightUsed)
	}

	if weightTotal == 0 {
		return nil
	}

	overall := int(math.Round(weightedSum / weightTotal))
	return &overall
}

// CombineReasoning renders the per-parameter reasoning as one bullet per
// judgment, in judgment order.
func CombineReasoning(judgments []models.ParameterJudgment) string {
	var b strings.Builder
	for _, j := range judgments {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		if j.Error != "" {
			fmt.Fprintf(&b, "• %s: evaluation failed: %s", j.ParameterName, j.Error)
			continue
		}
		fmt.Fprintf(&b, "• %s (%d/100): %s", j.ParameterName, j.Score, j.Reasoning)
	}
	return b.String()
}
