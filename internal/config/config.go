package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Newsense telemetry platform configuration
	Newsense NewsenseConfig

	// Redis configuration
	Redis RedisConfig

	// Gemini LLM configuration
	Gemini GeminiConfig

	// Knowledge base configuration
	Knowledge KnowledgeConfig

	// Query history configuration
	History HistoryConfig

	// Telemetry fetch configuration
	Fetch FetchConfig

	// Chat pipeline configuration
	Chat ChatConfig

	// Authentication configuration
	Auth AuthConfig

	// Server configuration
	Server ServerConfig
}

// NewsenseConfig holds telemetry platform API configuration
type NewsenseConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
}

// KnowledgeConfig holds device knowledge base configuration
type KnowledgeConfig struct {
	Path string
}

// HistoryConfig holds query history configuration
type HistoryConfig struct {
	Dir string
}

// FetchConfig holds telemetry fetch configuration
type FetchConfig struct {
	Workers int
}

// ChatConfig holds chat pipeline configuration
type ChatConfig struct {
	HistoryWindow int
	CacheTTL      time.Duration
	SessionExpiry time.Duration
}

// AuthConfig holds authentication and authorization configuration
type AuthConfig struct {
	JWTSecret     string
	JWTExpiry     time.Duration
	RateLimit     int
	AdminUsername string
	AdminPassword string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port    string
	GinMode string
}

// Loader handles loading configuration from various sources
type Loader struct {
	provider SecretProvider
}

// NewLoader creates a new configuration loader with the given secret provider
func NewLoader(provider SecretProvider) *Loader {
	return &Loader{
		provider: provider,
	}
}

// NewDefaultLoader creates a loader with the default provider chain:
// 1. File-based secrets (if available)
// 2. Environment variables (fallback)
func NewDefaultLoader() *Loader {
	providers := []SecretProvider{
		NewFileProvider("/var/secrets"), // Common secret mount path
		NewEnvProvider(),                // Always available fallback
	}

	return &Loader{
		provider: NewChainProvider(providers...),
	}
}

// Load loads the complete configuration
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	cfg := &Config{}

	cfg.Newsense = NewsenseConfig{
		BaseURL:  l.getString(ctx, "NEWSENSE_BASE_URL", ""),
		Username: l.getString(ctx, "NEWSENSE_USERNAME", ""),
		Password: l.getString(ctx, "NEWSENSE_PASSWORD", ""),
		Timeout:  l.getDuration(ctx, "NEWSENSE_TIMEOUT", 30*time.Second),
	}

	cfg.Redis = RedisConfig{
		Addr:     l.getString(ctx, "REDIS_ADDR", "localhost:6379"),
		Password: l.getString(ctx, "REDIS_PASSWORD", ""),
		DB:       l.getInt(ctx, "REDIS_DB", 0),
	}

	cfg.Gemini = GeminiConfig{
		APIKey:          l.getString(ctx, "GEMINI_API_KEY", ""),
		Model:           l.getString(ctx, "GEMINI_MODEL", "gemini-1.5-flash"),
		MaxOutputTokens: l.getInt(ctx, "GEMINI_MAX_OUTPUT_TOKENS", 2048),
	}

	cfg.Knowledge = KnowledgeConfig{
		Path: l.getString(ctx, "KNOWLEDGE_PATH", "data/thong_tin_thiet_bi.xlsx"),
	}

	cfg.History = HistoryConfig{
		Dir: l.getString(ctx, "HISTORY_DIR", "data/history"),
	}

	cfg.Fetch = FetchConfig{
		Workers: l.getInt(ctx, "FETCH_WORKERS", 5),
	}

	cfg.Chat = ChatConfig{
		HistoryWindow: l.getInt(ctx, "CHAT_HISTORY_WINDOW", 6),
		CacheTTL:      l.getDuration(ctx, "CACHE_TTL", 5*time.Minute),
		SessionExpiry: l.getDuration(ctx, "SESSION_EXPIRY", 24*time.Hour),
	}

	cfg.Auth = AuthConfig{
		JWTSecret:     l.getString(ctx, "JWT_SECRET", ""),
		JWTExpiry:     l.getDuration(ctx, "JWT_EXPIRY", 24*time.Hour),
		RateLimit:     l.getInt(ctx, "RATE_LIMIT", 100),
		AdminUsername: l.getString(ctx, "ADMIN_USERNAME", "admin"),
		AdminPassword: l.getString(ctx, "ADMIN_PASSWORD", ""),
	}

	cfg.Server = ServerConfig{
		Port:    l.getString(ctx, "PORT", "8080"),
		GinMode: l.getString(ctx, "GIN_MODE", "debug"),
	}

	return cfg, nil
}

// Helper methods for retrieving and parsing configuration values

func (l *Loader) getString(ctx context.Context, key, defaultValue string) string {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}
	return value
}

func (l *Loader) getInt(ctx context.Context, key string, defaultValue int) int {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}

func (l *Loader) getDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func (l *Loader) getSlice(ctx context.Context, key string, defaultValue []string) []string {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// MustLoad loads configuration and panics on error
// Useful for application startup
func (l *Loader) MustLoad(ctx context.Context) *Config {
	cfg, err := l.Load(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
