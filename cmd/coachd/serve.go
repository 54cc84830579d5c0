package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fitstack/coach/internal/agent"
	"github.com/fitstack/coach/internal/agent/providers"
	"github.com/fitstack/coach/internal/auth"
	"github.com/fitstack/coach/internal/coach"
	"github.com/fitstack/coach/internal/config"
	"github.com/fitstack/coach/internal/observability"
	"github.com/fitstack/coach/internal/server"
	"github.com/fitstack/coach/internal/storage"
)

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the coaching API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "coach.yaml", "Path to configuration file")
	return cmd
}

func runServe(cfg *config.Config) error {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
	metrics := observability.NewMetrics()

	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "coachd",
		ServiceVersion: version,
		Environment:    cfg.Observability.Environment,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		SamplingRate:   cfg.Observability.SamplingRate,
		EnableInsecure: cfg.Observability.Insecure,
	})

	stores, err := buildStores(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer stores.Close()

	// The classifier always runs on the low-latency OpenAI model.
	openaiProvider, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
		APIKey:          cfg.LLM.OpenAI.APIKey,
		DefaultModel:    cfg.LLM.OpenAI.Model,
		ClassifierModel: cfg.LLM.OpenAI.ClassifierModel,
		MaxTokens:       cfg.LLM.MaxTokens,
		Metrics:         metrics,
	})
	if err != nil {
		return fmt.Errorf("init openai provider: %w", err)
	}

	var generator agent.LLMProvider
	var model string
	switch cfg.LLM.Provider {
	case "anthropic":
		anthropicProvider, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       cfg.LLM.Anthropic.APIKey,
			DefaultModel: cfg.LLM.Anthropic.Model,
			MaxTokens:    cfg.LLM.MaxTokens,
			Metrics:      metrics,
		})
		if err != nil {
			return fmt.Errorf("init anthropic provider: %w", err)
		}
		generator = anthropicProvider
		model = cfg.LLM.Anthropic.Model
	case "openai":
		generator = openaiProvider
		model = cfg.LLM.OpenAI.Model
	default:
		return fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}

	tools := agent.NewToolRegistry()
	tools.Register(agent.NewSaveFitnessLevelTool(stores.Profiles))
	tools.Register(agent.NewSavePrimaryGoalTool(stores.Profiles))
	tools.Register(agent.NewSaveScheduleTool(stores.Profiles))
	tools.Register(agent.NewLogMealPreferenceTool(stores.Profiles))
	tools.Register(agent.NewGenerateWorkoutPlanTool(stores.Plans))
	tools.Register(agent.NewGenerateMealPlanTool(stores.Plans))

	orch := coach.NewOrchestrator(coach.OrchestratorConfig{
		Loader:     coach.NewContextLoader(stores, cfg.History.Limit),
		Classifier: coach.NewKindClassifier(openaiProvider),
		Registry:   coach.NewRegistry(generator, tools, model, cfg.LLM.MaxTokens),
		Warmer:     generator,
		Logger:     logger,
		Metrics:    metrics,
		Tracer:     tracer,
	})

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Expiry)
	srv := server.New(cfg.Server, orch, jwtService, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Pre-warm the provider connection so the first voice turn is fast.
	// Failure is a warning inside WarmUp, never fatal.
	go orch.WarmUp(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return shutdownTracer(shutdownCtx)
}

func buildStores(cfg config.StorageConfig) (storage.StoreSet, error) {
	switch cfg.Driver {
	case "sqlite":
		return storage.NewSQLiteStoreSet(cfg.Path)
	default:
		return storage.NewMemoryStoreSet(), nil
	}
}
