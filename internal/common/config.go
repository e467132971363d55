package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Embeddings  EmbeddingConfig `toml:"embeddings"`
	RAG         RAGConfig       `toml:"rag"`
	Ingest      IngestConfig    `toml:"ingest"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
	Blob   BlobConfig   `toml:"blob"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	GCInterval     string `toml:"gc_interval"`      // Value-log GC interval (default: "10m")
}

// BlobConfig configures the filesystem blob store for uploaded files
type BlobConfig struct {
	Path string `toml:"path"` // Root directory for stored file blobs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`       // Chat model (default: "gemini-2.5-flash")
	EmbedModel  string  `toml:"embed_model"` // Embedding model (default: "gemini-embedding-001")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	Temperature float32 `toml:"temperature"` // Chat completion temperature (default: 0.7)
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 8192)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`       // Model (default: "claude-haiku-3-5-20241022")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 8192)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "gemini")
}

// EmbeddingConfig controls embedding generation and validation
type EmbeddingConfig struct {
	Dimension     int     `toml:"dimension" validate:"gt=0"`     // Fixed corpus dimensionality (default: 768)
	BatchSize     int     `toml:"batch_size" validate:"gt=0"`    // Texts per provider batch group (default: 10)
	BatchInterval string  `toml:"batch_interval"`                // Pause between batch groups (default: "1s")
	MaxMagnitude  float64 `toml:"max_magnitude" validate:"gt=0"` // Component magnitude ceiling (default: 10)
}

// RAGConfig controls retrieval and context budgeting
type RAGConfig struct {
	MinSimilarity float64 `toml:"min_similarity" validate:"gte=-1,lte=1"` // Relevance threshold (default: 0.7)
	MaxChunks     int     `toml:"max_chunks" validate:"gt=0"`             // Result-count cap (default: 5)
	CharBudget    int     `toml:"char_budget" validate:"gt=0"`            // Prompt character budget (default: 4000)
	OverFetch     int     `toml:"over_fetch" validate:"gte=1"`            // Search over-fetch factor (default: 2)
}

// IngestConfig controls document intake
type IngestConfig struct {
	MaxFileSize  int64    `toml:"max_file_size" validate:"gt=0"` // Upload size cap in bytes (default: 20 MB)
	AllowedTypes []string `toml:"allowed_types"`                 // Allowed file extensions (default: .txt, .md, .pdf)
	ChunkSize    int      `toml:"chunk_size" validate:"gt=0"`    // Chunker target size (default: 1000)
	ChunkOverlap int      `toml:"chunk_overlap" validate:"gte=0"`
}

// SchedulerConfig controls the stuck-document sweep
type SchedulerConfig struct {
	Enabled    bool   `toml:"enabled"`
	Schedule   string `toml:"schedule"`    // Cron schedule (default: "*/5 * * * *")
	StaleAfter string `toml:"stale_after"` // Requeue documents pending longer than this (default: "10m")
}

// WebSocketConfig controls status event broadcasting
type WebSocketConfig struct {
	ThrottleInterval string `toml:"throttle_interval"` // Minimum interval between status events per document (default: "250ms")
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability;
// only user-facing settings need to appear in memoria.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:       "./data",
				GCInterval: "10m",
			},
			Blob: BlobConfig{
				Path: "./data/blobs",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			EmbedModel:  "gemini-embedding-001",
			Timeout:     "5m",
			Temperature: 0.7,
			MaxTokens:   8192,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-3-5-20241022",
			Timeout:     "5m",
			Temperature: 0.7,
			MaxTokens:   8192,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Embeddings: EmbeddingConfig{
			Dimension:     768,
			BatchSize:     10,
			BatchInterval: "1s",
			MaxMagnitude:  10,
		},
		RAG: RAGConfig{
			MinSimilarity: 0.7,
			MaxChunks:     5,
			CharBudget:    4000,
			OverFetch:     2,
		},
		Ingest: IngestConfig{
			MaxFileSize:  20 * 1024 * 1024,
			AllowedTypes: []string{".txt", ".md", ".pdf"},
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Scheduler: SchedulerConfig{
			Enabled:    true,
			Schedule:   "*/5 * * * *",
			StaleAfter: "10m",
		},
		WebSocket: WebSocketConfig{
			ThrottleInterval: "250ms",
		},
	}
}

// LoadFromFile loads configuration from a single TOML file
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration by layering TOML files over defaults,
// later files overriding earlier ones, then applying environment overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies MEMORIA_* environment variable overrides
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("MEMORIA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("MEMORIA_SERVER_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("MEMORIA_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("MEMORIA_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("MEMORIA_BLOB_PATH"); v != "" {
		config.Storage.Blob.Path = v
	}
	if v := os.Getenv("MEMORIA_GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && config.Gemini.APIKey == "" {
		config.Gemini.APIKey = v
	}
	if v := os.Getenv("MEMORIA_CLAUDE_API_KEY"); v != "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("MEMORIA_LLM_PROVIDER"); v != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(v))
	}
	if v := os.Getenv("MEMORIA_EMBED_DIMENSION"); v != "" {
		if dim, err := strconv.Atoi(v); err == nil {
			config.Embeddings.Dimension = dim
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.LLM.DefaultProvider {
	case LLMProviderGemini, LLMProviderClaude:
	default:
		return fmt.Errorf("invalid configuration: unknown llm provider %q", c.LLM.DefaultProvider)
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"gemini.timeout", c.Gemini.Timeout},
		{"claude.timeout", c.Claude.Timeout},
		{"embeddings.batch_interval", c.Embeddings.BatchInterval},
		{"scheduler.stale_after", c.Scheduler.StaleAfter},
		{"websocket.throttle_interval", c.WebSocket.ThrottleInterval},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid configuration: %s %q: %w", field.name, field.value, err)
		}
	}

	return nil
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
