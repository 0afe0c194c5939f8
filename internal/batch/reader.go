package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/convotest/convotest/internal/models"
)

// Reader parses JSONL question files. Malformed lines are logged and
// skipped so one bad record does not sink a whole batch.
type Reader struct {
	r      io.Reader
	logger *zerolog.Logger
}

func NewReader(r io.Reader, logger *zerolog.Logger) *Reader {
	return &Reader{r: r, logger: logger}
}

// ReadAll streams questions from the input. The channel closes when the
// input is exhausted or the context is cancelled.
func (r *Reader) ReadAll(ctx context.Context) <-chan models.Question {
	out := make(chan models.Question)

	go func() {
		defer close(out)

		scanner := bufio.NewScanner(r.r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var q models.Question
			if err := json.Unmarshal([]byte(line), &q); err != nil {
				r.logger.Warn().
					Err(err).
					Int("line", lineNo).
					Msg("skipping malformed record")
				continue
			}
			if q.Text == "" {
				r.logger.Warn().Int("line", lineNo).Msg("skipping record without question text")
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- q:
			}
		}

		if err := scanner.Err(); err != nil {
			r.logger.Error().Err(err).Msg("input read failed")
		}
	}()

	return out
}
