package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/agenthands/loregraph/internal/core/community"
)

const (
	BackendMemory   = "memory"
	BackendMemgraph = "memgraph"
	BackendPostgres = "postgres"
)

type ServerConfig struct {
	Port                   string `toml:"port" env:"PORT"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds" env:"SHUTDOWN_TIMEOUT_SECONDS"`
	// DetectTimeoutSeconds bounds one detection request, including persistence.
	DetectTimeoutSeconds int `toml:"detect_timeout_seconds" env:"DETECT_TIMEOUT_SECONDS"`
}

func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

func (s ServerConfig) DetectTimeout() time.Duration {
	return time.Duration(s.DetectTimeoutSeconds) * time.Second
}

type LogConfig struct {
	Level       string `toml:"level" env:"LOG_LEVEL"`
	Development bool   `toml:"development" env:"LOG_DEVELOPMENT"`
}

type StorageConfig struct {
	Backend string `toml:"backend" env:"STORAGE_BACKEND"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri" env:"MEMGRAPH_URI"`
	User     string `toml:"user" env:"MEMGRAPH_USER"`
	Password string `toml:"password" env:"MEMGRAPH_PASSWORD"`
}

type PostgresConfig struct {
	URL            string `toml:"url" env:"DATABASE_URL"`
	MaxConnections int32  `toml:"max_connections" env:"DATABASE_MAX_CONNECTIONS"`
	MigrationsPath string `toml:"migrations_path" env:"MIGRATIONS_PATH"`
}

// DetectionConfig holds the service-wide defaults applied to requests that
// leave an option unset.
type DetectionConfig struct {
	Resolution       float64 `toml:"resolution" env:"DETECTION_RESOLUTION"`
	MinCommunitySize int     `toml:"min_community_size" env:"DETECTION_MIN_COMMUNITY_SIZE"`
	MaxLevels        int     `toml:"max_levels" env:"DETECTION_MAX_LEVELS"`
	MaxIterations    int     `toml:"max_iterations" env:"DETECTION_MAX_ITERATIONS"`
	MinImprovement   float64 `toml:"min_improvement" env:"DETECTION_MIN_IMPROVEMENT"`
}

func (d DetectionConfig) Options() community.Options {
	return community.Options{
		Resolution:       d.Resolution,
		MinCommunitySize: d.MinCommunitySize,
		MaxLevels:        d.MaxLevels,
		MaxIterations:    d.MaxIterations,
		MinImprovement:   d.MinImprovement,
	}
}

type LLMConfig struct {
	Provider string `toml:"provider" env:"LLM_PROVIDER"`
	Model    string `toml:"model" env:"LLM_MODEL"`
	APIKey   string `toml:"api_key" env:"LLM_API_KEY"`
	BaseURL  string `toml:"base_url" env:"LLM_BASE_URL"`
}

type SummaryPrompts struct {
	Communities   string `toml:"communities"`
	CommunityName string `toml:"community_name"`
}

type SummaryConfig struct {
	Prompts     SummaryPrompts `toml:"prompts"`
	ChunkSize   int            `toml:"chunk_size" env:"SUMMARY_CHUNK_SIZE"`
	KeyEntities int            `toml:"key_entities" env:"SUMMARY_KEY_ENTITIES"`
}

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
	Storage   StorageConfig   `toml:"storage"`
	Memgraph  MemgraphConfig  `toml:"memgraph"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Detection DetectionConfig `toml:"detection"`
	LLM       LLMConfig       `toml:"llm"`
	Summary   SummaryConfig   `toml:"summary"`
}

// Default returns a configuration that runs without any external service.
func Default() *Config {
	opts := community.DefaultOptions()
	return &Config{
		Server: ServerConfig{
			Port:                   "8080",
			ShutdownTimeoutSeconds: 10,
			DetectTimeoutSeconds:   120,
		},
		Log:     LogConfig{Level: "info"},
		Storage: StorageConfig{Backend: BackendMemory},
		Memgraph: MemgraphConfig{
			URI: "bolt://localhost:7687",
		},
		Postgres: PostgresConfig{
			MaxConnections: 10,
			MigrationsPath: "migrations",
		},
		Detection: DetectionConfig{
			Resolution:       opts.Resolution,
			MinCommunitySize: opts.MinCommunitySize,
			MaxLevels:        opts.MaxLevels,
			MaxIterations:    opts.MaxIterations,
			MinImprovement:   opts.MinImprovement,
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "llama3",
			BaseURL:  "http://localhost:11434/v1",
		},
		Summary: SummaryConfig{
			ChunkSize:   20,
			KeyEntities: 5,
		},
	}
}

// Load reads path over Default() and then applies environment overrides.
// With allowMissing a nonexistent file is not an error.
func Load(path string, allowMissing bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML in '%s': %w", path, err)
		}
	case allowMissing && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	if err := cleanenv.UpdateEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendMemgraph:
		if c.Memgraph.URI == "" {
			return fmt.Errorf("memgraph.uri is required for the memgraph backend")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("postgres.url (DATABASE_URL) is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.LLM.Provider {
	case "", "openai", "ollama", "claude", "anthropic", "gemini":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	if err := c.Detection.Options().Validate(); err != nil {
		return fmt.Errorf("invalid detection defaults: %w", err)
	}
	return nil
}
