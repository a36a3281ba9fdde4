package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Scrape
	ScrapeTimeout      time.Duration
	ScrapeMaxSize      int64
	MarketplaceBaseURL string

	// Pipeline
	PipelineDeadline time.Duration
	ProbeTimeout     time.Duration
	ProbeLive        bool
	ProbeSynthetic   bool

	// Jobs
	JobMaxConcurrent int
	JobRetentionDays int
	CleanupInterval  time.Duration

	// Webhook
	WebhookTimeout     time.Duration
	TelegramWebhookURL string
	TelegramChatID     string
	DiscordWebhookURL  string

	// Rate Limit
	RateLimitGeneral int
	RateLimitFilter  int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ScrapeTimeout = getEnvDuration("SCRAPE_TIMEOUT", 20*time.Second)
	cfg.ScrapeMaxSize = getEnvInt64("SCRAPE_MAX_SIZE", 5242880)
	cfg.MarketplaceBaseURL = getEnvString("MARKETPLACE_BASE_URL", "")
	cfg.PipelineDeadline = getEnvDuration("PIPELINE_DEADLINE", 30*time.Second)
	cfg.ProbeTimeout = getEnvDuration("PROBE_TIMEOUT", 3*time.Second)
	cfg.ProbeLive = getEnvBool("PROBE_LIVE", false)
	cfg.ProbeSynthetic = getEnvBool("PROBE_SYNTHETIC", true)
	cfg.JobMaxConcurrent = getEnvInt("JOB_MAX_CONCURRENT", 4)
	cfg.JobRetentionDays = getEnvInt("JOB_RETENTION_DAYS", 30)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.WebhookTimeout = getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second)
	cfg.TelegramWebhookURL = getEnvString("TELEGRAM_WEBHOOK_URL", "")
	cfg.TelegramChatID = getEnvString("TELEGRAM_CHAT_ID", "")
	cfg.DiscordWebhookURL = getEnvString("DISCORD_WEBHOOK_URL", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitFilter = getEnvInt("RATE_LIMIT_FILTER", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}
