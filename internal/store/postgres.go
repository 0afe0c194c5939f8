package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/convotest/convotest/internal/models"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// PostgresStore persists runs and results in Postgres. Judgments and
// transcripts are stored as JSONB alongside the scalar columns.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, config Config) (*PostgresStore, error) {
	pgPool, err := pgxpool.New(ctx, config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PostgresStore{Pool: pgPool}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.Pool.Close()
}

func (s *PostgresStore) SaveResult(ctx context.Context, runID string, result models.TestResult) error {
	judgments, err := json.Marshal(result.Judgments)
	if err != nil {
		return fmt.Errorf("failed to serialize judgments: %w", err)
	}
	transcript, err := json.Marshal(result.Transcript)
	if err != nil {
		return fmt.Errorf("failed to serialize transcript: %w", err)
	}

	query := `
	INSERT INTO test_results (
	  run_id, question_id, actual_answer, judgments, overall_score,
	  reasoning, transcript, execution_time_ms, error_message, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.Pool.Exec(ctx, query,
		runID,
		result.QuestionID,
		result.ActualAnswer,
		judgments,
		result.OverallScore,
		result.Reasoning,
		transcript,
		result.ExecutionTimeMs,
		result.ErrorMessage,
		result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert result for question %s: %w", result.QuestionID, err)
	}

	return nil
}

func (s *PostgresStore) UpdateProgress(ctx context.Context, progress models.RunProgress) error {
	query := `
	INSERT INTO test_runs (
	  run_id, total_questions, completed_questions, status,
	  average_score, started_at, completed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (run_id) DO UPDATE SET
	  completed_questions = EXCLUDED.completed_questions,
	  status = EXCLUDED.status,
	  average_score = EXCLUDED.average_score,
	  completed_at = EXCLUDED.completed_at`

	_, err := s.Pool.Exec(ctx, query,
		progress.RunID,
		progress.TotalQuestions,
		progress.CompletedQuestions,
		string(progress.Status),
		progress.AverageScore,
		progress.StartedAt,
		progress.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert run %s: %w", progress.RunID, err)
	}

	return nil
}

func (s *PostgresStore) GetProgress(ctx context.Context, runID string) (models.RunProgress, error) {
	query := `
	SELECT run_id, total_questions, completed_questions, status,
	       average_score, started_at, completed_at
	FROM test_runs WHERE run_id = $1`

	var (
		progress models.RunProgress
		status   string
	)
	err := s.Pool.QueryRow(ctx, query, runID).Scan(
		&progress.RunID,
		&progress.TotalQuestions,
		&progress.CompletedQuestions,
		&status,
		&progress.AverageScore,
		&progress.StartedAt,
		&progress.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RunProgress{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return models.RunProgress{}, fmt.Errorf("failed to fetch run %s: %w", runID, err)
	}
	progress.Status = models.RunStatus(status)

	return progress, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, runID string, skip int) ([]models.TestResult, error) {
	if skip < 0 {
		skip = 0
	}

	query := `
	SELECT question_id, actual_answer, judgments, overall_score,
	       reasoning, transcript, execution_time_ms, error_message, created_at
	FROM test_results
	WHERE run_id = $1
	ORDER BY created_at ASC
	OFFSET $2`

	rows, err := s.Pool.Query(ctx, query, runID, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for run %s: %w", runID, err)
	}
	defer rows.Close()

	var results []models.TestResult
	for rows.Next() {
		var (
			result     models.TestResult
			judgments  []byte
			transcript []byte
		)
		if err := rows.Scan(
			&result.QuestionID,
			&result.ActualAnswer,
			&judgments,
			&result.OverallScore,
			&result.Reasoning,
			&transcript,
			&result.ExecutionTimeMs,
			&result.ErrorMessage,
			&result.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		if len(judgments) > 0 {
			if err := json.Unmarshal(judgments, &result.Judgments); err != nil {
				return nil, fmt.Errorf("failed to decode judgments: %w", err)
			}
		}
		if len(transcript) > 0 {
			if err := json.Unmarshal(transcript, &result.Transcript); err != nil {
				return nil, fmt.Errorf("failed to decode transcript: %w", err)
			}
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return results, nil
}
