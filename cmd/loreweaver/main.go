package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nidhogg/loreweaver/internal/api"
	"github.com/nidhogg/loreweaver/internal/config"
	"github.com/nidhogg/loreweaver/internal/embedding"
	"github.com/nidhogg/loreweaver/internal/events"
	"github.com/nidhogg/loreweaver/internal/extract"
	"github.com/nidhogg/loreweaver/internal/gateway"
	"github.com/nidhogg/loreweaver/internal/provider"
	"github.com/nidhogg/loreweaver/internal/retrieval"
	"github.com/nidhogg/loreweaver/internal/session"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Loreweaver...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/loreweaver.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize provider router
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey, Model: pc.Model,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	if len(cfg.Game.FallbackOrder) > 0 {
		router.SetFallbacks(cfg.Game.FallbackOrder)
	}

	// Initialize embedder
	var embedder embedding.Provider
	embCfg := embedding.Config{
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
	}
	switch cfg.Embedding.Provider {
	case "local":
		embedder = embedding.NewLocalProvider(embCfg)
	case "hash", "":
		embedder = embedding.NewHashProvider(cfg.Embedding.Dimension)
		logger.Warn("using hash embedder — retrieval quality will be rough")
	default:
		embedder = embedding.NewAPIProvider(embCfg)
	}

	// Optional Redis turn-event stream
	var publisher events.Publisher
	if cfg.Events.Enabled {
		pub, pubErr := events.NewRedisPublisher(cfg.Events.RedisURL, logger)
		if pubErr != nil {
			logger.Warn("Redis unavailable, running without turn events", zap.Error(pubErr))
		} else {
			publisher = pub
			logger.Info("Turn event stream enabled")
		}
	}

	// Memory extraction shares the chat provider router
	extractor := extract.NewLLMExtractor(router, cfg.Game.Model, logger)

	sessions := session.NewManager(
		sessionConfig(cfg.Game),
		embedder,
		retrieval.DefaultBonusTable(),
		router,
		extractor,
		publisher,
		logger,
	)

	// Initialize chat-platform gateways
	gw := gateway.NewGateway(logger)
	gateway.NewDispatcher(gw, sessions, logger)

	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		gw.Register(gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger))
	}
	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		gw.Register(gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger))
	}
	if err := gw.ConnectAll(context.Background()); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	// Build HTTP handler
	handler := api.NewHandler(sessions, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Loreweaver listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Loreweaver...")
	srv.Shutdown(context.Background())
	gw.Close()
	if publisher != nil {
		publisher.Close()
	}
}

// sessionConfig overlays file settings onto the session defaults.
func sessionConfig(g config.GameConfig) session.Config {
	cfg := session.DefaultConfig()
	cfg.Model = g.Model
	if g.SystemPrompt != "" {
		cfg.SystemPrompt = g.SystemPrompt
	}
	if g.MaxHistoryTokens > 0 {
		cfg.MaxHistoryTokens = g.MaxHistoryTokens
	}
	if g.MaxReplyTokens > 0 {
		cfg.MaxReplyTokens = g.MaxReplyTokens
	}
	if g.Temperature != nil {
		cfg.Temperature = *g.Temperature
	}
	if g.TopP != nil {
		cfg.TopP = *g.TopP
	}
	if g.ContextEnabled != nil {
		cfg.ContextEnabled = *g.ContextEnabled
	}
	if g.AcceptThreshold != nil {
		cfg.AcceptThreshold = *g.AcceptThreshold
	}
	cfg.DedupeWrites = g.DedupeWrites
	if g.RetrieveFacts > 0 {
		cfg.RetrieveFacts = g.RetrieveFacts
	}
	if g.RetrieveNPCs > 0 {
		cfg.RetrieveNPCs = g.RetrieveNPCs
	}
	return cfg
}
