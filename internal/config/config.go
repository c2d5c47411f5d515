package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port" default:"8090"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Completion provider
	Completion CompletionConfig `yaml:"completion"`

	// Pacing
	CharacterDelay time.Duration `yaml:"character_delay" default:"10ms"`
	SlideDelay     time.Duration `yaml:"slide_delay" default:"500ms"`

	// Generations
	MaxConcurrentStreams int           `yaml:"max_concurrent_streams" default:"8"`
	GenerationTTL        time.Duration `yaml:"generation_ttl" default:"1h"`
	MaxSlides            int           `yaml:"max_slides" default:"30"`

	// Upload limits
	MaxUploadBytes    int64 `yaml:"max_upload_bytes" default:"20971520"` // 20MB
	MaxMaterialTokens int   `yaml:"max_material_tokens" default:"6000"`

	StatsWindow time.Duration `yaml:"stats_window" default:"1h"`
}

type CompletionConfig struct {
	Provider  string        `yaml:"provider" default:"anthropic"`
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model" default:"claude-sonnet-4-5-20250929"`
	MaxTokens int           `yaml:"max_tokens" default:"8192"`
	Timeout   time.Duration `yaml:"timeout" default:"5m"`
}

// Load builds the configuration from struct defaults, the optional YAML file
// named by SLIDEGEN_CONFIG, and environment overrides, in that order.
func Load() (Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("apply defaults: %w", err)
	}

	if path := os.Getenv("SLIDEGEN_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("SLIDEGEN_API_KEY", cfg.APIKey)

	cfg.Completion.Provider = envOr("COMPLETION_PROVIDER", cfg.Completion.Provider)
	cfg.Completion.BaseURL = envOr("COMPLETION_BASE_URL", cfg.Completion.BaseURL)
	cfg.Completion.APIKey = envOr("COMPLETION_API_KEY", cfg.Completion.APIKey)
	cfg.Completion.Model = envOr("COMPLETION_MODEL", cfg.Completion.Model)
	cfg.Completion.MaxTokens = envInt("COMPLETION_MAX_TOKENS", cfg.Completion.MaxTokens)
	cfg.Completion.Timeout = envDuration("COMPLETION_TIMEOUT", cfg.Completion.Timeout)

	cfg.CharacterDelay = envDuration("CHARACTER_DELAY", cfg.CharacterDelay)
	cfg.SlideDelay = envDuration("SLIDE_DELAY", cfg.SlideDelay)

	cfg.MaxConcurrentStreams = envInt("MAX_CONCURRENT_STREAMS", cfg.MaxConcurrentStreams)
	cfg.GenerationTTL = envDuration("GENERATION_TTL", cfg.GenerationTTL)
	cfg.MaxSlides = envInt("MAX_SLIDES", cfg.MaxSlides)

	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.MaxMaterialTokens = envInt("MAX_MATERIAL_TOKENS", cfg.MaxMaterialTokens)

	cfg.StatsWindow = envDuration("STATS_WINDOW", cfg.StatsWindow)

	cfg.clamp()
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// clamp replaces nonsensical values with their defaults. Zero delays are
// allowed and disable pacing.
func (c *Config) clamp() {
	if c.CharacterDelay < 0 {
		c.CharacterDelay = 0
	}
	if c.SlideDelay < 0 {
		c.SlideDelay = 0
	}
	if c.MaxConcurrentStreams <= 0 {
		c.MaxConcurrentStreams = 8
	}
	if c.GenerationTTL <= 0 {
		c.GenerationTTL = 1 * time.Hour
	}
	if c.MaxSlides <= 0 {
		c.MaxSlides = 30
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 20971520
	}
	if c.MaxMaterialTokens <= 0 {
		c.MaxMaterialTokens = 6000
	}
	if c.StatsWindow <= 0 {
		c.StatsWindow = 1 * time.Hour
	}
	if c.Completion.MaxTokens <= 0 {
		c.Completion.MaxTokens = 8192
	}
	if c.Completion.Timeout <= 0 {
		c.Completion.Timeout = 5 * time.Minute
	}
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("SLIDEGEN_API_KEY is required")
	}
	switch c.Completion.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("COMPLETION_PROVIDER must be anthropic or openai, got %q", c.Completion.Provider)
	}
	if c.Completion.APIKey == "" {
		return fmt.Errorf("COMPLETION_API_KEY is required")
	}
	if c.Completion.Model == "" {
		return fmt.Errorf("COMPLETION_MODEL is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
