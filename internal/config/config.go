// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override, .env supported)
//  2. Config file (~/.anser/config.yaml or ./config.yaml)
//  3. Default values
//
// Security: API keys and the database password are masked in
// MarshalJSON so a dumped config never leaks secrets into logs.
// Validation is fail-fast: Load returns an error before any component
// starts with a bad value.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation. All of them mean the
// process must not start; none are retryable.
var (
	// ErrInvalidProvider indicates the model provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidChunking indicates chunk size/overlap misconfiguration.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidRetrieval indicates top-k or min-score is out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval configuration")

	// ErrInvalidStore indicates the store backend is not supported.
	ErrInvalidStore = errors.New("invalid store backend")

	// ErrInvalidPostgres indicates the PostgreSQL settings are unusable.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")

	// ErrInvalidServer indicates the HTTP server settings are unusable.
	ErrInvalidServer = errors.New("invalid server configuration")
)

// Model provider identifiers used in Config.Provider.
const (
	ProviderLMStudio = "lmstudio"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
)

// Store backend identifiers used in Config.Store.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding a
// new secret field, update MarshalJSON.
type Config struct {
	// Model provider configuration
	Provider               string  `mapstructure:"provider" json:"provider"` // "lmstudio", "openai", "gemini"
	Model                  string  `mapstructure:"model" json:"model"`
	EmbedModel             string  `mapstructure:"embed_model" json:"embed_model"`
	Temperature            float64 `mapstructure:"temperature" json:"temperature"`
	OpenAIAPIKey           string  `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE
	GeminiAPIKey           string  `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE
	LMStudioURL            string  `mapstructure:"lmstudio_url" json:"lmstudio_url"`
	UpstreamTimeoutSeconds int     `mapstructure:"upstream_timeout_seconds" json:"upstream_timeout_seconds"`

	// Chunking configuration (character units)
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval configuration
	TopK        int     `mapstructure:"top_k" json:"top_k"`
	MinScore    float64 `mapstructure:"min_score" json:"min_score"`
	PreviewLen  int     `mapstructure:"preview_len" json:"preview_len"`
	DebugChunks bool    `mapstructure:"debug_chunks" json:"debug_chunks"`

	// Storage configuration
	Store            string `mapstructure:"store" json:"store"` // "postgres" (default), "memory"
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration (serve mode only)
	ServerHost string `mapstructure:"server_host" json:"server_host"`
	ServerPort int    `mapstructure:"server_port" json:"server_port"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"` // "debug", "info", "warn", "error"
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	// .env is optional; absence is the normal case in production.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".anser"))
	}
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderLMStudio)
	v.SetDefault("model", "")       // provider default
	v.SetDefault("embed_model", "") // provider default
	v.SetDefault("temperature", 0.2)
	v.SetDefault("lmstudio_url", "http://localhost:1234/v1")
	v.SetDefault("upstream_timeout_seconds", 60)

	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 200)

	v.SetDefault("top_k", 3)
	v.SetDefault("min_score", 0.3)
	v.SetDefault("preview_len", 200)
	v.SetDefault("debug_chunks", false)

	v.SetDefault("store", StorePostgres)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "anser")
	v.SetDefault("postgres_password", "anser_dev_password")
	v.SetDefault("postgres_db_name", "anser")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("server_host", "127.0.0.1")
	v.SetDefault("server_port", 8080)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds environment variables explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("lmstudio_url", "LMSTUDIO_URL")

	mustBind("provider", "ANSER_PROVIDER")
	mustBind("model", "ANSER_MODEL")
	mustBind("embed_model", "ANSER_EMBED_MODEL")
	mustBind("store", "ANSER_STORE")
	mustBind("debug_chunks", "DEBUG_CHUNKS")
	mustBind("log_level", "ANSER_LOG_LEVEL")
}

// parseDatabaseURL overrides the PostgreSQL fields from DATABASE_URL
// when set. The URL form wins over individual settings.
func (c *Config) parseDatabaseURL() error {
	raw := os.Getenv("DATABASE_URL")
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPostgres, err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidPostgres, u.Scheme)
	}

	c.PostgresHost = u.Hostname()
	if port := u.Port(); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("%w: port %q", ErrInvalidPostgres, port)
		}
		c.PostgresPort = p
	}
	if u.User != nil {
		c.PostgresUser = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.PostgresPassword = pw
		}
	}
	if len(u.Path) > 1 {
		c.PostgresDBName = u.Path[1:]
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}
	return nil
}

// Validate checks all configuration values. It returns the first
// violation found, wrapped around the matching sentinel error.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLMStudio:
		if c.LMStudioURL == "" {
			return fmt.Errorf("%w: lmstudio_url is required for provider lmstudio", ErrInvalidProvider)
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required for provider openai", ErrMissingAPIKey)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for provider gemini", ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("%w: %q (want lmstudio, openai, or gemini)", ErrInvalidProvider, c.Provider)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, %d)", ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidRetrieval, c.TopK)
	}
	if c.MinScore < -1 || c.MinScore > 1 {
		return fmt.Errorf("%w: min_score %v must be in [-1, 1]", ErrInvalidRetrieval, c.MinScore)
	}
	if c.PreviewLen <= 0 {
		return fmt.Errorf("%w: preview_len must be positive, got %d", ErrInvalidRetrieval, c.PreviewLen)
	}

	switch c.Store {
	case StorePostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("%w: postgres_host is required", ErrInvalidPostgres)
		}
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: postgres_port %d out of range", ErrInvalidPostgres, c.PostgresPort)
		}
		if c.PostgresDBName == "" {
			return fmt.Errorf("%w: postgres_db_name is required", ErrInvalidPostgres)
		}
	case StoreMemory:
		// No settings to check; nothing persists.
	default:
		return fmt.Errorf("%w: %q (want postgres or memory)", ErrInvalidStore, c.Store)
	}

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("%w: server_port %d out of range", ErrInvalidServer, c.ServerPort)
	}
	if c.UpstreamTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: upstream_timeout_seconds must be positive", ErrInvalidServer)
	}
	return nil
}

// DatabaseURL builds the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.PostgresUser),
		url.QueryEscape(c.PostgresPassword),
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}

// ServerAddr builds the HTTP listen address.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debug
// utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + maskedValue + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields so a dumped config is safe to log.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(c)
	masked.OpenAIAPIKey = maskSecret(c.OpenAIAPIKey)
	masked.GeminiAPIKey = maskSecret(c.GeminiAPIKey)
	masked.PostgresPassword = maskSecret(c.PostgresPassword)
	return json.Marshal(masked)
}
