package judge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var scoreDigits = regexp.MustCompile(`-?\d+`)

// parseJudgeResponse extracts the SCORE and REASONING lines from an LLM
// reply. Scores outside 0-100 are clamped and the anomaly is noted in the
// reasoning. A reply with no parseable score yields 0.
func parseJudgeResponse(content string) (int, string) {
	var (
		score     int
		found     bool
		reasoning strings.Builder
	)

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)

		switch {
		case strings.HasPrefix(upper, "SCORE:"):
			raw := strings.TrimSpace(trimmed[len("SCORE:"):])
			if match := scoreDigits.FindString(raw); match != "" {
				if n, err := strconv.Atoi(match); err == nil {
					score = n
					found = true
				}
			}
		case strings.HasPrefix(upper, "REASONING:"):
			if reasoning.Len() > 0 {
				reasoning.WriteString(" ")
			}
			reasoning.WriteString(strings.TrimSpace(trimmed[len("REASONING:"):]))
		}
	}

	text := reasoning.String()
	if !found {
		if text == "" {
			text = "no score found in response"
		} else {
			text += " (no score found in response)"
		}
		return 0, text
	}

	if score < 0 || score > 100 {
		clamped := score
		if clamped < 0 {
			clamped = 0
		}
		if clamped > 100 {
			clamped = 100
		}
		note := fmt.Sprintf("(model returned out-of-range score %d, clamped to %d)", score, clamped)
		if text == "" {
			text = note
		} else {
			text += " " + note
		}
		return clamped, text
	}

	if text == "" {
		text = "no reasoning provided"
	}
	return score, text
}
