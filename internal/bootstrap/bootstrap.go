package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jjyaz/dohars-world/internal/config"
	"github.com/jjyaz/dohars-world/internal/core/domain"
	"github.com/jjyaz/dohars-world/internal/core/ports"
	"github.com/jjyaz/dohars-world/internal/core/usecase"
	"github.com/jjyaz/dohars-world/internal/infrastructure/llm/gateway"
	"github.com/jjyaz/dohars-world/internal/infrastructure/queue/nats"
	"github.com/jjyaz/dohars-world/internal/infrastructure/repository/postgres"
	"github.com/jjyaz/dohars-world/internal/infrastructure/resilience"
	"github.com/jjyaz/dohars-world/internal/infrastructure/search/firecrawl"
)

type App struct {
	Config config.Config

	Queue    ports.MaintenanceQueue
	Memories ports.MemoryStore
	Embedder ports.Embedder
	Runner   ports.AgentRunner
	Tools    ports.ToolExecutor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if cfg.GatewayAPIKey == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "bootstrap", fmt.Errorf("GATEWAY_API_KEY is required"))
	}

	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	agents := postgres.NewAgentRepository(db)
	conversations := postgres.NewConversationRepository(db)
	reasonings := postgres.NewReasoningRepository(db)
	memories := postgres.NewMemoryRepository(db)
	tasks := postgres.NewTaskRepository(db)
	councilSessions := postgres.NewCouncilRepository(db)

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init maintenance queue: %w", err)
	}

	exec := resilience.NewExecutor(resilience.DefaultConfig())
	llm := gateway.New(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.GatewayEmbedModel, exec)
	search := firecrawl.New(cfg.FirecrawlURL, cfg.FirecrawlAPIKey)

	personas, err := config.LoadPersonas(cfg.PersonasPath, cfg.GatewayModel)
	if err != nil {
		return nil, fmt.Errorf("load personas: %w", err)
	}
	if err := seedPersonas(ctx, agents, personas); err != nil {
		return nil, fmt.Errorf("seed personas: %w", err)
	}

	tools := usecase.NewToolExecutor(memories, tasks, llm, search, llm, cfg.GatewayModel)
	council := usecase.NewCouncil(agents, councilSessions, llm)

	limits := domain.AgentLimits{
		MaxIterations:    cfg.AgentMaxIterations,
		RunTimeout:       time.Duration(cfg.AgentRunTimeoutSeconds) * time.Second,
		PlannerTimeout:   time.Duration(cfg.AgentPlannerTimeoutSecond) * time.Second,
		ToolTimeout:      time.Duration(cfg.AgentToolTimeoutSeconds) * time.Second,
		HistoryMessages:  cfg.AgentHistoryMessages,
		MemoryTopK:       cfg.AgentMemoryTopK,
		StreamChunkChars: cfg.StreamChunkChars,
		StreamChunkDelay: time.Duration(cfg.StreamChunkDelayMs) * time.Millisecond,
	}
	runner := usecase.NewOrchestrator(
		llm,
		agents,
		conversations,
		reasonings,
		memories,
		tools,
		council,
		queue,
		limits,
		cfg.DefaultAgentName,
		cfg.LeadAgentName,
		logger,
	)

	return &App{
		Config:   cfg,
		Queue:    queue,
		Memories: memories,
		Embedder: llm,
		Runner:   runner,
		Tools:    tools,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func seedPersonas(ctx context.Context, agents ports.AgentStore, personas []config.Persona) error {
	for _, p := range personas {
		agent := &domain.Agent{
			ID:            uuid.NewString(),
			Name:          p.Name,
			Role:          p.Role,
			SystemPrompt:  p.SystemPrompt,
			Model:         p.Model,
			Tools:         p.Tools,
			AvatarURL:     p.AvatarURL,
			ChatAvatarURL: p.ChatAvatarURL,
		}
		if err := agents.EnsureAgent(ctx, agent); err != nil {
			return fmt.Errorf("ensure agent %s: %w", p.Name, err)
		}
	}
	return nil
}
