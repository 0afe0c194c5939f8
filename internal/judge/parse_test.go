package judge

import (
	"strings"
	"testing"
)

func TestParseJudgeResponse(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		expectedScore int
		reasonSubstr  string
	}{
		{
			name:          "well formed",
			content:       "SCORE: 80\nREASONING: Good coverage of the expected answer.",
			expectedScore: 80,
			reasonSubstr:  "Good coverage",
		},
		{
			name:          "lowercase labels",
			content:       "score: 55\nreasoning: fine",
			expectedScore: 55,
			reasonSubstr:  "fine",
		},
		{
			name:          "score with trailing text",
			content:       "SCORE: 90/100\nREASONING: near perfect",
			expectedScore: 90,
			reasonSubstr:  "near perfect",
		},
		{
			name:          "above range clamped",
			content:       "SCORE: 150\nREASONING: enthusiastic",
			expectedScore: 100,
			reasonSubstr:  "clamped to 100",
		},
		{
			name:          "below range clamped",
			content:       "SCORE: -10\nREASONING: hostile",
			expectedScore: 0,
			reasonSubstr:  "clamped to 0",
		},
		{
			name:          "missing score",
			content:       "REASONING: the model rambled",
			expectedScore: 0,
			reasonSubstr:  "no score found",
		},
		{
			name:          "missing reasoning",
			content:       "SCORE: 70",
			expectedScore: 70,
			reasonSubstr:  "no reasoning provided",
		},
		{
			name:          "surrounding chatter ignored",
			content:       "Sure, here is my evaluation:\nSCORE: 65\nREASONING: acceptable\nThanks!",
			expectedScore: 65,
			reasonSubstr:  "acceptable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, reasoning := parseJudgeResponse(tt.content)
			if score != tt.expectedScore {
				t.Errorf("Expected score %d, got %d", tt.expectedScore, score)
			}
			if !strings.Contains(reasoning, tt.reasonSubstr) {
				t.Errorf("Expected reasoning to contain '%s', got '%s'", tt.reasonSubstr, reasoning)
			}
		})
	}
}
