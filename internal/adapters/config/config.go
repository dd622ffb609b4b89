package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"oracle/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ClickHouse    ClickHouseConfig
	Providers     ProvidersConfig
	AI            AIConfig
	Scheduler     SchedulerConfig
	Pipeline      PipelineConfig
	Delivery      DeliveryConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"oracle"`
	Version  string `envconfig:"APP_VERSION" default:"0.1.0"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type HTTPConfig struct {
	Port int `envconfig:"HTTP_PORT" default:"8080"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"oracle"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"oracle"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

// Enabled reports whether a Postgres report store is configured.
// Without it the service falls back to the in-memory store.
func (c PostgresConfig) Enabled() bool {
	return c.Host != ""
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"oracle"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"oracle"`
}

func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

// ProvidersConfig holds API keys and limits for external data providers
type ProvidersConfig struct {
	FredAPIKey         string `envconfig:"FRED_API_KEY"`
	TavilyAPIKey       string `envconfig:"TAVILY_API_KEY"`
	AlphaVantageAPIKey string `envconfig:"ALPHA_VANTAGE_API_KEY"`

	// Requests per minute per provider
	FredRateLimit         int `envconfig:"FRED_RATE_LIMIT" default:"60"`
	TavilyRateLimit       int `envconfig:"TAVILY_RATE_LIMIT" default:"30"`
	AlphaVantageRateLimit int `envconfig:"ALPHA_VANTAGE_RATE_LIMIT" default:"5"`
	CotRateLimit          int `envconfig:"COT_RATE_LIMIT" default:"30"`

	CacheTTLEconomic time.Duration `envconfig:"CACHE_TTL_ECONOMIC" default:"30m"`
	CacheTTLResearch time.Duration `envconfig:"CACHE_TTL_RESEARCH" default:"1h"`
	CacheTTLCot      time.Duration `envconfig:"CACHE_TTL_COT" default:"24h"`
}

type AIConfig struct {
	OpenAIKey   string        `envconfig:"OPENAI_API_KEY"`
	Model       string        `envconfig:"AI_MODEL" default:"gpt-4o"`
	Temperature float64       `envconfig:"AI_TEMPERATURE" default:"0.3"`
	MaxTokens   int           `envconfig:"AI_MAX_TOKENS" default:"4096"`
	Timeout     time.Duration `envconfig:"AI_TIMEOUT" default:"2m"`
}

// SchedulerConfig defines when reports are generated.
// Trigger times are evaluated in Timezone, not host local time.
type SchedulerConfig struct {
	Enabled        bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
	Timezone       string        `envconfig:"SCHEDULER_TIMEZONE" default:"America/New_York"`
	PremarketTime  string        `envconfig:"PREMARKET_TIME" default:"06:30"`
	PostmarketTime string        `envconfig:"POSTMARKET_TIME" default:"16:30"`
	WeeklyTime     string        `envconfig:"WEEKLY_REPORT_TIME" default:"17:00"`
	WeeklyDay      string        `envconfig:"WEEKLY_REPORT_DAY" default:"Sunday"`
	WeeklyEnabled  bool          `envconfig:"WEEKLY_REPORT_ENABLED" default:"true"`
	RunLockTTL     time.Duration `envconfig:"SCHEDULER_RUN_LOCK_TTL" default:"45m"`
}

type PipelineConfig struct {
	MaxConcurrentAgents int           `envconfig:"PIPELINE_MAX_CONCURRENT_AGENTS" default:"5"`
	Deadline            time.Duration `envconfig:"PIPELINE_DEADLINE" default:"30m"`
	AgentTimeout        time.Duration `envconfig:"PIPELINE_AGENT_TIMEOUT" default:"2m"`
	AgentRetries        int           `envconfig:"PIPELINE_AGENT_RETRIES" default:"2"`
	RetryBaseDelay      time.Duration `envconfig:"PIPELINE_RETRY_BASE_DELAY" default:"2s"`
	RetryMaxDelay       time.Duration `envconfig:"PIPELINE_RETRY_MAX_DELAY" default:"30s"`
	SynthesisTimeout    time.Duration `envconfig:"PIPELINE_SYNTHESIS_TIMEOUT" default:"3m"`
}

type DeliveryConfig struct {
	ReportsDir     string `envconfig:"REPORTS_DIR" default:"./reports"`
	TelegramToken  string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `envconfig:"TELEGRAM_CHAT_ID"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
