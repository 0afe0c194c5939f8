package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/convotest/convotest/internal/mcpadapter"
	"github.com/convotest/convotest/internal/setup"
	logging "github.com/convotest/convotest/internal/setup/logger"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := logging.New(os.Getenv("LOG_LEVEL")).
		Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = logger

	// Load env
	_ = godotenv.Load()

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load Config
	cfg := setup.LoadConfig()

	// Wire dependencies
	deps, err := setup.Wire(ctx, cfg, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Unable to load dependencies")
		os.Exit(1)
	}

	// Create MCP Server
	server := createMCPServer(deps)

	// Run over stdio
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		// EOF / "server is closing" is expected when stdin closes (e.g. echo | ./bin/convotest-mcp)
		if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "server is closing") {
			logger.Debug().Err(err).Msg("MCP server stopped")
			return
		}
		logger.Error().Err(err).Msg("Failed to run mcp server")
		os.Exit(1)
	}
}

func createMCPServer(deps *setup.Dependencies) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "convotest",
			Version: "1.0.0",
		}, nil,
	)

	// Add Tools
	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_run",
		Description: "Start a batch test run against a conversational agent, scoring every reply with the configured evaluation parameters",
	}, mcpadapter.NewStartRunHandler(deps.Engine, deps.DefaultParams))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_run",
		Description: "Cancel a running batch test run. Questions already in flight still finish and record their results",
	}, mcpadapter.NewCancelRunHandler(deps.Engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_progress",
		Description: "Get the progress of a run: completed count, status, average score and estimated seconds remaining",
	}, mcpadapter.NewProgressHandler(deps.Runs))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_results",
		Description: "List the recorded results of a run, with a skip offset for tailing",
	}, mcpadapter.NewResultsHandler(deps.Runs))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_agents",
		Description: "Discover the agents visible to a principal within a deployment scope, searching every region",
	}, mcpadapter.NewListAgentsHandler(deps.Coordinator))

	return server
}
