package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/newsense/telemetry-ai/internal/auth"
	"github.com/newsense/telemetry-ai/internal/config"
	"github.com/newsense/telemetry-ai/internal/fetch"
	"github.com/newsense/telemetry-ai/internal/history"
	"github.com/newsense/telemetry-ai/internal/knowledge"
	"github.com/newsense/telemetry-ai/internal/llm"
	"github.com/newsense/telemetry-ai/internal/newsense"
	"github.com/newsense/telemetry-ai/internal/observability"
	"github.com/newsense/telemetry-ai/internal/processor"
	"github.com/newsense/telemetry-ai/internal/session"
	"github.com/newsense/telemetry-ai/internal/summary"
)

func main() {
	// Load .env for local development; ignore if absent
	_ = godotenv.Load()

	ctx := context.Background()

	cfg := config.NewDefaultLoader().MustLoad(ctx)
	if err := cfg.ValidateWithContext(); err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	gin.SetMode(cfg.Server.GinMode)

	logger := observability.NewLogger("main")

	// Initialize Redis client (query cache + chat sessions)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Initialize telemetry platform client; logs in at startup
	platform, err := newsense.NewClient(ctx, cfg.Newsense.BaseURL, cfg.Newsense.Username, cfg.Newsense.Password, cfg.Newsense.Timeout)
	if err != nil {
		log.Fatal("Failed to connect to telemetry platform:", err)
	}

	// Initialize LLM client behind a circuit breaker
	gemini, err := llm.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		log.Fatal("Failed to initialize LLM client:", err)
	}
	llmClient := llm.NewCircuitBreakerClient(gemini, "gemini", llm.DefaultCircuitBreakerConfig)

	// Storage layers
	knowledgeStore := knowledge.NewStore(cfg.Knowledge.Path)
	historyStore := history.NewStore(cfg.History.Dir)

	// Chat sessions in Redis
	sessions := session.NewManager(rdb, cfg.Chat.SessionExpiry)

	// Telemetry fetch orchestrator
	fetcher := fetch.NewOrchestrator(platform, cfg.Fetch.Workers, observability.NewLogger("fetch"))

	// Vietnamese summarizer
	summarizer := summary.NewSummarizer(llmClient, observability.NewLogger("summary"))

	// Auth manager with seeded admin account
	authManager, err := auth.NewManager(auth.Config{
		JWTSecret:     cfg.Auth.JWTSecret,
		JWTExpiry:     cfg.Auth.JWTExpiry,
		RateLimit:     cfg.Auth.RateLimit,
		AdminUsername: cfg.Auth.AdminUsername,
		AdminPassword: cfg.Auth.AdminPassword,
	})
	if err != nil {
		log.Fatal("Failed to initialize auth manager:", err)
	}

	// Health checks
	healthChecker := observability.NewHealthChecker()

	healthChecker.Register("redis", observability.RedisHealthCheck(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}))

	healthChecker.Register("telemetry_platform", observability.TelemetryHealthCheck(func(ctx context.Context) error {
		_, err := platform.ListDevices(ctx)
		return err
	}))

	healthChecker.Register("llm_service", observability.LLMHealthCheck(func(ctx context.Context) error {
		if state := llmClient.State(); state.String() == "open" {
			return fmt.Errorf("circuit breaker is %s", state)
		}
		return nil
	}))

	healthChecker.Register("memory", observability.MemoryHealthCheck(func() (uint64, uint64) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.Alloc, m.Sys
	}))

	healthChecker.Register("history_dir", observability.HistoryDirHealthCheck(func() error {
		probe := filepath.Join(cfg.History.Dir, ".probe")
		if err := os.MkdirAll(cfg.History.Dir, 0755); err != nil {
			return err
		}
		if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
			return err
		}
		return os.Remove(probe)
	}))

	// Create chat processor
	p := processor.NewProcessor(llmClient, knowledgeStore, historyStore, sessions, fetcher, summarizer, platform, rdb)
	p.SetHealthChecker(healthChecker)

	router := p.SetupRoutes(authManager)

	// Metrics endpoint
	router.Use(observability.MetricsEndpointMiddleware(observability.GetGlobalMetrics()))

	// Auth endpoints for login/user management
	auth.NewHandlers(authManager).SetupRoutes(router.Group("/api/v1"))

	// CORS for browser clients
	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
	}).Handler(router)

	logger.Info(ctx, "Telemetry chat service starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"workers": cfg.Fetch.Workers,
		"model":   cfg.Gemini.Model,
	})

	if err := http.ListenAndServe(":"+cfg.Server.Port, handler); err != nil {
		logger.Error(ctx, "Failed to start server", err, nil)
		log.Fatal("Failed to start server:", err)
	}
}
