// Package config provides application configuration management using koanf.
// Values come from defaults, an optional config.yaml/config.json, and
// environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Chroma     ChromaConfig     `koanf:"chroma"`
	Redis      RedisConfig      `koanf:"redis"`
	Crew       CrewConfig       `koanf:"crew"`
	Webhook    WebhookConfig    `koanf:"webhook"`
	Auth       AuthConfig       `koanf:"auth"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Ingest     IngestConfig     `koanf:"ingest"`
	App        AppConfig        `koanf:"app"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	ReadTimeout  int    `koanf:"read_timeout"`  // seconds
	WriteTimeout int    `koanf:"write_timeout"` // seconds
}

// ChromaConfig holds vector store connection settings.
type ChromaConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Tenant     string `koanf:"tenant"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
	Timeout    int    `koanf:"timeout"` // seconds
}

// RedisConfig holds Redis connection settings. Redis is optional: when it is
// unreachable the server falls back to in-process conversation/profile stores.
type RedisConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	PoolSize int    `koanf:"pool_size"`
}

// CrewConfig holds the external multi-agent task runner settings.
type CrewConfig struct {
	BaseURL   string `koanf:"base_url"`
	ConfigDir string `koanf:"config_dir"`
	Timeout   int    `koanf:"timeout"` // seconds
}

// WebhookConfig holds the appointment booking webhook settings.
type WebhookConfig struct {
	URL     string `koanf:"url"`
	Timeout int    `koanf:"timeout"` // seconds
}

// AuthConfig holds token signing settings and the demo credential table.
type AuthConfig struct {
	Secret        string          `koanf:"secret"`
	ExpiryMinutes int             `koanf:"expiry_minutes"`
	Users         map[string]User `koanf:"users"`
}

// User is one entry in the configured credential table.
type User struct {
	Password string `koanf:"password"`
	Role     string `koanf:"role"`
}

// RetrievalConfig holds the retrieval policy defaults.
type RetrievalConfig struct {
	TopK              int     `koanf:"top_k"`
	DoctorTopK        int     `koanf:"doctor_top_k"`
	DistanceThreshold float64 `koanf:"distance_threshold"`
}

// ClassifierConfig holds the task classification policy values. The keyword
// tables themselves live in the classifier; these tune its scoring.
type ClassifierConfig struct {
	FloorThreshold    float64 `koanf:"floor_threshold"`
	WordBoundaryBonus float64 `koanf:"word_boundary_bonus"`
	QuestionBonus     float64 `koanf:"question_bonus"`
	FuzzyEnabled      bool    `koanf:"fuzzy_enabled"`
	FuzzyThreshold    float64 `koanf:"fuzzy_threshold"`
	FuzzyDiscount     float64 `koanf:"fuzzy_discount"`
}

// IngestConfig holds document ingestion settings.
type IngestConfig struct {
	DataDir      string `koanf:"data_dir"`
	ChunkSize    int    `koanf:"chunk_size"`
	ChunkOverlap int    `koanf:"chunk_overlap"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Environment string `koanf:"environment"` // "development", "staging", "production"
	Version     string `koanf:"version"`
}

// Load loads configuration from defaults, optional config files, and
// environment variables (HB_ prefix, "_" as separator; highest precedence).
func Load() (*Config, error) {
	k := koanf.New(".")

	setDefaults(k)
	loadConfigFiles(k)

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: "HB_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "HB_"))
			return strings.ReplaceAll(key, "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"server.host":          "0.0.0.0",
		"server.port":          8080,
		"server.read_timeout":  30,
		"server.write_timeout": 60,

		"chroma.host":       "localhost",
		"chroma.port":       8000,
		"chroma.tenant":     "default_tenant",
		"chroma.database":   "default_database",
		"chroma.collection": "healthbridge_ai",
		"chroma.timeout":    30,

		"redis.host":      "localhost",
		"redis.port":      6379,
		"redis.db":        0,
		"redis.pool_size": 10,

		"crew.base_url": "http://localhost:8100",
		"crew.timeout":  30,

		"webhook.timeout": 30,

		"auth.expiry_minutes": 60,

		"retrieval.top_k":              3,
		"retrieval.doctor_top_k":       5,
		"retrieval.distance_threshold": 1.6,

		"classifier.floor_threshold":     1.0,
		"classifier.word_boundary_bonus": 0.5,
		"classifier.question_bonus":      1.0,
		"classifier.fuzzy_enabled":       true,
		"classifier.fuzzy_threshold":     0.8,
		"classifier.fuzzy_discount":      0.8,

		"ingest.chunk_size":    1000,
		"ingest.chunk_overlap": 150,

		"app.environment": "development",
		"app.version":     "1.0.0",
	}

	for key, value := range defaults {
		_ = k.Set(key, value)
	}
}

func loadConfigFiles(k *koanf.Koanf) {
	if _, err := os.Stat("config.yaml"); err == nil {
		if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
			log.Printf("Warning: failed to load config.yaml: %v", err)
		}
	}

	if _, err := os.Stat("config.json"); err == nil {
		if err := k.Load(file.Provider("config.json"), json.Parser()); err != nil {
			log.Printf("Warning: failed to load config.json: %v", err)
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Auth.Secret == "" {
		if cfg.IsProduction() {
			return fmt.Errorf("auth secret is required in production")
		}
		// Development-only fallback so a bare checkout starts up.
		cfg.Auth.Secret = "healthbridge-dev-secret"
	}

	if cfg.Retrieval.DistanceThreshold <= 0 {
		return fmt.Errorf("retrieval distance threshold must be positive")
	}

	if cfg.Retrieval.TopK <= 0 || cfg.Retrieval.DoctorTopK <= 0 {
		return fmt.Errorf("retrieval top_k values must be positive")
	}

	if cfg.Classifier.FuzzyThreshold < 0 || cfg.Classifier.FuzzyThreshold > 1 {
		return fmt.Errorf("classifier fuzzy threshold must be in [0,1]")
	}

	if cfg.Webhook.URL != "" && !strings.HasPrefix(cfg.Webhook.URL, "http") {
		return fmt.Errorf("webhook url must be an http(s) endpoint: %s", cfg.Webhook.URL)
	}

	return nil
}

// ChromaTimeout returns the vector store call timeout as a duration.
func (c *Config) ChromaTimeout() time.Duration {
	return time.Duration(c.Chroma.Timeout) * time.Second
}

// CrewTimeout returns the task runner call timeout as a duration.
func (c *Config) CrewTimeout() time.Duration {
	return time.Duration(c.Crew.Timeout) * time.Second
}

// WebhookTimeout returns the appointment webhook timeout as a duration.
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Webhook.Timeout) * time.Second
}

// TokenExpiry returns the access token lifetime as a duration.
func (c *Config) TokenExpiry() time.Duration {
	return time.Duration(c.Auth.ExpiryMinutes) * time.Minute
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
