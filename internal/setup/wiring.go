package setup

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/convotest/convotest/internal/agentapi"
	"github.com/convotest/convotest/internal/auth"
	"github.com/convotest/convotest/internal/config"
	"github.com/convotest/convotest/internal/discovery"
	"github.com/convotest/convotest/internal/engine"
	"github.com/convotest/convotest/internal/evaluation"
	"github.com/convotest/convotest/internal/llm"
	"github.com/convotest/convotest/internal/llm/bedrock"
	"github.com/convotest/convotest/internal/llm/gpt"
	"github.com/convotest/convotest/internal/locator"
	"github.com/convotest/convotest/internal/models"
	"github.com/convotest/convotest/internal/regions"
	"github.com/convotest/convotest/internal/store"
)

type Config struct {
	AWSRegion       string
	ClaudeModelID   string
	OpenAIKey       string
	OpenAIModelID   string
	DefaultProvider string

	AgentEndpoint         string
	AgentEndpointTemplate string
	AgentAccessToken      string

	RedisAddr     string
	RedisPassword string
	CacheTTLSec   int

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
}

type Dependencies struct {
	Engine        *engine.Engine
	Coordinator   *discovery.Coordinator
	Runs          store.RunStore
	DefaultParams []models.EvaluationParameter
	Logger        *zerolog.Logger
}

func LoadConfig() *Config {
	return &Config{
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		ClaudeModelID:   getEnv("CLAUDE_MODEL_ID", ""),
		OpenAIKey:       getEnv("OPEN_AI_KEY", ""),
		OpenAIModelID:   getEnv("OPEN_AI_MODEL_ID", ""),
		DefaultProvider: getEnv("DEFAULT_LLM_PROVIDER", "bedrock"),

		AgentEndpoint:         getEnv("AGENT_ENDPOINT", "https://agents.example.com"),
		AgentEndpointTemplate: getEnv("AGENT_ENDPOINT_TEMPLATE", "https://%s-agents.example.com"),
		AgentAccessToken:      getEnv("AGENT_ACCESS_TOKEN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CacheTTLSec:   getEnvInt("AGENT_CACHE_TTL_SECONDS", 3600),

		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "convotest"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}
}

func Wire(ctx context.Context, cfg *Config, logger *zerolog.Logger) (*Dependencies, error) {
	llmClient, err := createLLMClient(ctx, cfg.DefaultProvider, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	paramsConfig, err := config.LoadParametersConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load parameters config: %w", err)
	}

	registry, err := regions.New(cfg.AgentEndpoint, cfg.AgentEndpointTemplate, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build region registry: %w", err)
	}

	cache, err := createCache(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	runs, err := createStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	creds := auth.Static(cfg.AgentAccessToken)
	agentClient := agentapi.NewHTTPClient(logger)

	coordinator := discovery.NewCoordinator(registry, creds, cache, agentClient, logger).
		WithTTL(time.Duration(cfg.CacheTTLSec) * time.Second)

	evaluator := evaluation.NewEvaluator(llmClient, logger)

	eng := engine.New(coordinator, registry, creds, agentClient, evaluator, runs, logger)

	return &Dependencies{
		Engine:        eng,
		Coordinator:   coordinator,
		Runs:          runs,
		DefaultParams: paramsConfig.Parameters,
		Logger:        logger,
	}, nil
}

func createLLMClient(ctx context.Context, provider string, cfg *Config) (llm.Client, error) {
	switch provider {
	case "openai":
		return gpt.NewClient(cfg.OpenAIKey, cfg.OpenAIModelID)
	default:
		return bedrock.NewClient(ctx, cfg.AWSRegion, cfg.ClaudeModelID)
	}
}

func createCache(ctx context.Context, cfg *Config, logger *zerolog.Logger) (locator.Cache, error) {
	if cfg.RedisAddr == "" {
		logger.Info().Msg("REDIS_ADDR not set, using in-memory agent cache")
		return locator.NewMemoryCache(), nil
	}

	client, err := locator.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return locator.NewRedisCache(client, logger), nil
}

func createStore(ctx context.Context, cfg *Config, logger *zerolog.Logger) (store.RunStore, error) {
	if cfg.DBHost == "" {
		logger.Info().Msg("DB_HOST not set, using in-memory run store")
		return store.NewMemoryStore(), nil
	}

	pg, err := store.NewPostgresStore(ctx, store.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pg.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return pg, nil
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}

	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		value = defaultValue
	}

	return value
}
