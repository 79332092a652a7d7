package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete codeintel configuration (v1 schema).
// cmd/codeintel reads the Server, Jobs, Agent and Credentials sections at
// startup; the Retrieval, Cache, Telemetry and Logging sections are loaded,
// validated and saved but not read by any other package.
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	Server      ServerConfig      `json:"server" mapstructure:"server"`
	Jobs        JobsConfig        `json:"jobs" mapstructure:"jobs"`
	Retrieval   RetrievalConfig   `json:"retrieval" mapstructure:"retrieval"`
	Agent       AgentConfig       `json:"agent" mapstructure:"agent"`
	Cache       CacheConfig       `json:"cache" mapstructure:"cache"`
	Telemetry   TelemetryConfig   `json:"telemetry" mapstructure:"telemetry"`
	Credentials CredentialsConfig `json:"credentials" mapstructure:"credentials"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP/RPC surface configuration (internal/api).
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// JobsConfig contains worker pool configuration (internal/jobs).
type JobsConfig struct {
	WorkerCount  int `json:"workerCount" mapstructure:"workerCount"`
	QueueDepth   int `json:"queueDepth" mapstructure:"queueDepth"`
}

// RetrievalConfig mirrors the retrieval.Options fields. Retrieval calls use
// retrieval.DefaultOptions; these values do not override them.
type RetrievalConfig struct {
	MaxNodes        int  `json:"maxNodes" mapstructure:"maxNodes"`
	UseGraph        bool `json:"useGraph" mapstructure:"useGraph"`
	ExperimentalPPR bool `json:"experimentalPpr" mapstructure:"experimentalPpr"`
}

// AgentConfig contains ReAct loop configuration (internal/agent).
type AgentConfig struct {
	MaxSteps int `json:"maxSteps" mapstructure:"maxSteps"`
}

// CacheConfig contains TTL settings for the SQLite-backed query/view/negative
// cache tiers (internal/storage.Cache). The API handlers use their own fixed
// TTL constants; these values are not applied to the cache.
type CacheConfig struct {
	QueryTtlSeconds    int `json:"queryTtlSeconds" mapstructure:"queryTtlSeconds"`
	ViewTtlSeconds     int `json:"viewTtlSeconds" mapstructure:"viewTtlSeconds"`
	NegativeTtlSeconds int `json:"negativeTtlSeconds" mapstructure:"negativeTtlSeconds"`
}

// TelemetryConfig contains an OS-stat poll cadence setting. The telemetry
// Collector polls at its own fixed interval and does not read this value.
type TelemetryConfig struct {
	PollIntervalMs int `json:"pollIntervalMs" mapstructure:"pollIntervalMs"`
}

// CredentialsConfig points at the rotating API-key/model pool file.
type CredentialsConfig struct {
	FileName string `json:"fileName" mapstructure:"fileName"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8085,
		},
		Jobs: JobsConfig{
			WorkerCount: 4,
			QueueDepth:  100,
		},
		Retrieval: RetrievalConfig{
			MaxNodes:        80,
			UseGraph:        true,
			ExperimentalPPR: false,
		},
		Agent: AgentConfig{
			MaxSteps: 10,
		},
		Cache: CacheConfig{
			QueryTtlSeconds:    300,
			ViewTtlSeconds:     3600,
			NegativeTtlSeconds: 60,
		},
		Telemetry: TelemetryConfig{
			PollIntervalMs: 500,
		},
		Credentials: CredentialsConfig{
			FileName: "keys.json",
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .codeintel/config.json, falling
// back to DefaultConfig when no file has been written yet.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)
	v.SetDefault("repoRoot", ".")

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, ".codeintel"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := DefaultConfig()
			cfg.RepoRoot = repoRoot
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.RepoRoot == "." {
		cfg.RepoRoot = repoRoot
	}

	return cfg, nil
}

// Save writes the configuration to .codeintel/config.json.
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".codeintel")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	configPath := filepath.Join(dir, "config.json")

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// Validate checks whether the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Message: "must be between 1 and 65535"}
	}
	if c.Jobs.WorkerCount <= 0 {
		return &ConfigError{Field: "jobs.workerCount", Message: "must be positive"}
	}
	if c.Retrieval.MaxNodes <= 0 {
		return &ConfigError{Field: "retrieval.maxNodes", Message: "must be positive"}
	}
	if c.Agent.MaxSteps <= 0 {
		return &ConfigError{Field: "agent.maxSteps", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field '%s': %s", e.Field, e.Message)
}
