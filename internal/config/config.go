package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the chatepstein API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	NER       NERConfig       `yaml:"ner"`
	Reranker  RerankerConfig  `yaml:"reranker"`
	Storage   StorageConfig   `yaml:"storage"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// RateLimitConfig holds per-client request throttling settings.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RetrievalConfig holds candidate retrieval settings.
type RetrievalConfig struct {
	IndexName string `yaml:"index_name"`
	// EntityK caps the entity-filtered similarity search.
	EntityK int `yaml:"entity_k"`
	// CandidateK is the combined candidate budget per turn.
	CandidateK int `yaml:"candidate_k"`
	// RerankTopN bounds the passages forwarded to context assembly.
	RerankTopN int `yaml:"rerank_top_n"`
}

// EmbeddingConfig holds query embedding provider settings.
type EmbeddingConfig struct {
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	CacheTTLSec      int    `yaml:"cache_ttl_sec"`
}

// LLMConfig holds the text generation provider settings.
type LLMConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float32 `yaml:"temperature"`
	CallTimeoutSec int     `yaml:"call_timeout_sec"`
}

// NERConfig holds NER sidecar settings.
type NERConfig struct {
	BaseURL        string `yaml:"base_url"`
	CallTimeoutSec int    `yaml:"call_timeout_sec"`
}

// RerankerConfig holds cross-encoder sidecar settings.
type RerankerConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	CallTimeoutSec int    `yaml:"call_timeout_sec"`
}

// StorageConfig holds source document bucket settings for link resolution.
type StorageConfig struct {
	Bucket           string `yaml:"bucket"`
	Region           string `yaml:"region"`
	PresignExpirySec int    `yaml:"presign_expiry_sec"`
}

// SessionsConfig holds conversation memory bounds.
type SessionsConfig struct {
	MaxSessions int `yaml:"max_sessions"`
	MaxMessages int `yaml:"max_messages"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Generation calls can run long; the write timeout covers the whole turn.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Retrieval.IndexName == "" {
		c.Retrieval.IndexName = "passages:idx"
	}
	if c.Retrieval.EntityK <= 0 {
		c.Retrieval.EntityK = 8
	}
	if c.Retrieval.CandidateK <= 0 {
		c.Retrieval.CandidateK = 16
	}
	if c.Retrieval.RerankTopN <= 0 {
		c.Retrieval.RerankTopN = 8
	}
	if c.Embedding.CacheTTLSec <= 0 {
		c.Embedding.CacheTTLSec = 7 * 24 * 3600
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = 0.2
	}
	if c.LLM.CallTimeoutSec <= 0 {
		c.LLM.CallTimeoutSec = 60
	}
	if c.NER.CallTimeoutSec <= 0 {
		c.NER.CallTimeoutSec = 10
	}
	if c.Reranker.CallTimeoutSec <= 0 {
		c.Reranker.CallTimeoutSec = 30
	}
	if c.Storage.PresignExpirySec <= 0 {
		c.Storage.PresignExpirySec = 3600
	}
	if c.Sessions.MaxSessions <= 0 {
		c.Sessions.MaxSessions = 50
	}
	if c.Sessions.MaxMessages <= 0 {
		c.Sessions.MaxMessages = 4
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		c.RateLimit.RequestsPerMinute = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.NER.BaseURL == "" {
		return fmt.Errorf("ner.base_url is required")
	}
	if c.Reranker.BaseURL == "" {
		return fmt.Errorf("reranker.base_url is required")
	}
	if c.Retrieval.EntityK > c.Retrieval.CandidateK {
		return fmt.Errorf(
			"retrieval.entity_k (%d) must not exceed retrieval.candidate_k (%d)",
			c.Retrieval.EntityK, c.Retrieval.CandidateK,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
