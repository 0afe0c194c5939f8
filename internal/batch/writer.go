package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/convotest/convotest/internal/models"
)

// Writer emits one JSON result per line.
type Writer struct {
	mu      sync.Mutex
	enc     *json.Encoder
	written int
	logger  *zerolog.Logger
}

func NewWriter(w io.Writer, logger *zerolog.Logger) *Writer {
	return &Writer{
		enc:    json.NewEncoder(w),
		logger: logger,
	}
}

func (w *Writer) Write(result models.TestResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write result for question %s: %w", result.QuestionID, err)
	}
	w.written++
	return nil
}

func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}
