package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anser-ai/anser/db"
	"github.com/anser-ai/anser/internal/chat"
	"github.com/anser-ai/anser/internal/config"
	"github.com/anser-ai/anser/internal/knowledge"
	"github.com/anser-ai/anser/internal/log"
	"github.com/anser-ai/anser/internal/provider"
	"github.com/anser-ai/anser/internal/rag"
	"github.com/anser-ai/anser/internal/session"
)

// app holds the wired application components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   log.Logger
	client   provider.Client
	index    rag.Index
	ingestor *rag.Ingestor
	service  *chat.Service
	sessions session.Store
	pool     *pgxpool.Pool
}

// setup loads configuration and wires every component: logger, model
// client with retry, chunk index, session store, and the conversation
// service. Configuration errors abort here, before anything starts.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := log.New(log.Config{Level: parseLogLevel(cfg.LogLevel), JSON: cfg.LogJSON})

	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	retrying := provider.WithRetry(client, provider.DefaultRetryConfig(), nil,
		time.Duration(cfg.UpstreamTimeoutSeconds)*time.Second, logger)

	a := &app{cfg: cfg, logger: logger, client: retrying}

	switch cfg.Store {
	case config.StorePostgres:
		if err := db.Migrate(cfg.DatabaseURL()); err != nil {
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		pool, err := db.Connect(ctx, cfg.DatabaseURL())
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.index = knowledge.NewStore(pool, logger)
		a.sessions = session.NewPostgresStore(pool, logger)
	case config.StoreMemory:
		a.index = knowledge.NewMemoryStore()
		a.sessions = session.NewMemoryStore()
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidStore, cfg.Store)
	}

	a.ingestor = rag.NewIngestor(retrying, a.index, logger,
		rag.WithChunking(cfg.ChunkSize, cfg.ChunkOverlap))

	retriever := rag.NewRetriever(retrying, a.index, logger,
		rag.WithTopK(cfg.TopK), rag.WithMinScore(float32(cfg.MinScore)))
	assembler := rag.NewAssembler(cfg.PreviewLen)

	a.service = chat.NewService(retriever, retrying, assembler, a.sessions, logger,
		chat.WithDebug(cfg.DebugChunks || debugChunks))

	return a, nil
}

// Close releases shared resources.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// parseLogLevel maps the configured level name to a slog level.
// Unknown names fall back to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newClient builds the model client for the configured provider. The
// choice is made once here; nothing downstream branches on provider.
func newClient(ctx context.Context, cfg *config.Config) (provider.Client, error) {
	switch cfg.Provider {
	case config.ProviderLMStudio:
		return provider.NewOpenAI(provider.OpenAIConfig{
			BaseURL:     cfg.LMStudioURL,
			Model:       cfg.Model,
			EmbedModel:  cfg.EmbedModel,
			Temperature: cfg.Temperature,
		}), nil
	case config.ProviderOpenAI:
		return provider.NewOpenAI(provider.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.Model,
			EmbedModel:  cfg.EmbedModel,
			Dimensions:  knowledge.VectorDimension,
			Temperature: cfg.Temperature,
		}), nil
	case config.ProviderGemini:
		return provider.NewGemini(ctx, provider.GeminiConfig{
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.Model,
			EmbedModel:     cfg.EmbedModel,
			EmbedDimension: knowledge.VectorDimension,
			Temperature:    float32(cfg.Temperature),
		})
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidProvider, cfg.Provider)
	}
}
