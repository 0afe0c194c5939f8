package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/convotest/convotest/internal/batch"
	"github.com/convotest/convotest/internal/engine"
	"github.com/convotest/convotest/internal/models"
	"github.com/convotest/convotest/internal/setup"
	logging "github.com/convotest/convotest/internal/setup/logger"
)

func main() {
	startTime := time.Now()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = logging.New(os.Getenv("LOG_LEVEL")).
		Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	input := flag.String("input", "", "Input JSONL file with questions, or - for stdin")
	output := flag.String("output", "", "Output JSONL file for results, defaults to stdout")
	agentID := flag.String("agent", "", "Agent identifier to test")
	principal := flag.String("principal", "", "Requesting user identifier")
	scope := flag.String("scope", "", "Deployment scope to search")
	workers := flag.Int("workers", 10, "Concurrent question workers")
	dryRun := flag.Bool("dry-run", false, "Validate input without running")

	flag.Parse()

	if *input == "" {
		log.Fatal().Msg("required flag --input not provided")
	}
	if !*dryRun && *agentID == "" {
		log.Fatal().Msg("required flag --agent not provided")
	}

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	ctx, cancel := setupGracefulShutdown()
	defer cancel()

	questions := readQuestions(ctx, *input)
	log.Info().Int("total", len(questions)).Msg("Input file parsed")

	if *dryRun {
		log.Info().Msg("Dry run complete, input is valid")
		return
	}

	cfg := setup.LoadConfig()
	deps, err := setup.Wire(ctx, cfg, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	var outputFile io.Writer
	if *output == "" {
		outputFile = os.Stdout
		log.Info().Msg("Writing to stdout")
	} else {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatal().Err(err).Str("file", *output).Msg("Failed to create output file")
		}
		defer f.Close()
		outputFile = f
		log.Info().Str("file", *output).Msg("Writing to output file")
	}
	writer := batch.NewWriter(outputFile, deps.Logger)

	runID, err := deps.Engine.Start(ctx, engine.RunSpec{
		AgentID:     *agentID,
		Principal:   *principal,
		Scope:       *scope,
		Questions:   questions,
		Parameters:  deps.DefaultParams,
		Concurrency: *workers,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start run")
	}
	log.Info().Str("run_id", runID).Msg("Run started")

	// Cancel the engine run when a signal arrives.
	go func() {
		<-ctx.Done()
		if err := deps.Engine.Cancel(context.Background(), runID); err != nil {
			log.Warn().Err(err).Msg("Failed to cancel run on shutdown")
		}
	}()

	final := tail(deps, runID, writer)

	log.Info().
		Str("run_id", runID).
		Str("status", string(final.Status)).
		Int("completed", final.CompletedQuestions).
		Int("total", final.TotalQuestions).
		Dur("duration", time.Since(startTime)).
		Msg("Run finished")

	if final.AverageScore != nil {
		log.Info().Int("average_score", *final.AverageScore).Msg("Overall result")
	}

	if final.Status != models.StatusCompleted {
		os.Exit(1)
	}
}

// tail polls progress and streams new results to the writer until the run
// reaches a terminal status.
func tail(deps *setup.Dependencies, runID string, writer *batch.Writer) models.RunProgress {
	skip := 0
	for {
		progress, err := deps.Engine.Progress(runID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read progress")
		}

		results, err := deps.Runs.ListResults(context.Background(), runID, skip)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list results")
		}
		for _, r := range results {
			if err := writer.Write(r); err != nil {
				log.Error().Err(err).Msg("Failed to write result")
			}
		}
		skip += len(results)

		if progress.Status.Terminal() {
			return progress
		}

		if progress.EstimatedRemaining != nil {
			fmt.Fprintf(os.Stderr, "progress: %d/%d (eta %ds)\n",
				progress.CompletedQuestions, progress.TotalQuestions, *progress.EstimatedRemaining)
		}

		time.Sleep(500 * time.Millisecond)
	}
}

func readQuestions(ctx context.Context, input string) []models.Question {
	var inputFile io.Reader
	if input == "-" {
		inputFile = os.Stdin
		log.Info().Msg("Reading from stdin")
	} else {
		f, err := os.Open(input)
		if err != nil {
			log.Fatal().Err(err).Str("file", input).Msg("Failed to open input file")
		}
		defer f.Close()
		inputFile = f
		log.Info().Str("file", input).Msg("Reading input file")
	}

	reader := batch.NewReader(inputFile, &log.Logger)

	var questions []models.Question
	for q := range reader.ReadAll(ctx) {
		questions = append(questions, q)
	}
	return questions
}

func setupGracefulShutdown() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	return ctx, cancel
}
