package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"organized-data/internal/models"
)

type Config struct {
	LLMs     []LLMConfig    `yaml:"llms"`
	Refine   RefineConfig   `yaml:"refine"`
	Cache    CacheConfig    `yaml:"cache"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	PDF      PDFConfig      `yaml:"pdf"`
	Log      LogConfig      `yaml:"log"`
}

// LLMConfig describes one backend. Name is the model identifier callers use.
type LLMConfig struct {
	Name           string        `yaml:"name"`
	Provider       string        `yaml:"provider"` // groq, openai, ollama
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	Key            string        `yaml:"key"`
	Temperature    *float64      `yaml:"temperature"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	MaxRetries     *int          `yaml:"max_retries"`
	RetryPolicy    string        `yaml:"retry_policy"` // all, transient
	Timeout        time.Duration `yaml:"timeout"`
}

type RefineConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"` // pgdriver (default) or postgres
	Debug  bool   `yaml:"debug"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type PDFConfig struct {
	MaxSizeBytes int64 `yaml:"max_size_bytes"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads a YAML file, expanding ${VAR} references from the
// environment so secrets never live in the file itself.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Refine.ChunkSize == 0 {
		c.Refine.ChunkSize = models.DefaultChunkSize
		if c.Refine.ChunkOverlap == 0 {
			c.Refine.ChunkOverlap = models.DefaultChunkOverlap
		}
	}
	if c.PDF.MaxSizeBytes == 0 {
		c.PDF.MaxSizeBytes = models.DefaultPDFMaxSize
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	for i := range c.LLMs {
		l := &c.LLMs[i]
		if l.Model == "" {
			l.Model = l.Name
		}
		if l.Temperature == nil {
			t := models.DefaultTemperature
			l.Temperature = &t
		}
		if l.MaxConcurrency == 0 {
			l.MaxConcurrency = models.DefaultMaxConcurrency
		}
		if l.MaxRetries == nil {
			r := models.DefaultMaxRetries
			l.MaxRetries = &r
		}
		if l.RetryPolicy == "" {
			l.RetryPolicy = "all"
		}
		if l.Timeout == 0 {
			l.Timeout = 60 * time.Second
		}
	}
}

// Validate checks the parts of the config that would otherwise only fail at
// request time.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.LLMs))
	for _, l := range c.LLMs {
		if l.Name == "" {
			return fmt.Errorf("llm entry without name")
		}
		if seen[l.Name] {
			return fmt.Errorf("duplicate llm name %q", l.Name)
		}
		seen[l.Name] = true
		switch l.Provider {
		case "groq", "openai", "ollama":
		default:
			return fmt.Errorf("llm %q: unsupported provider %q", l.Name, l.Provider)
		}
		switch l.RetryPolicy {
		case "all", "transient":
		default:
			return fmt.Errorf("llm %q: unsupported retry policy %q", l.Name, l.RetryPolicy)
		}
		if l.MaxConcurrency < 0 || *l.MaxRetries < 0 {
			return fmt.Errorf("llm %q: max_concurrency and max_retries must not be negative", l.Name)
		}
	}
	return nil
}
