package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP HTTPConfig `yaml:"http"`
	FAQ  FAQConfig  `yaml:"faq"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address         string          `yaml:"address"`
	ReadTimeout     time.Duration   `yaml:"readTimeout"`
	WriteTimeout    time.Duration   `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
	AllowedOrigins  []string        `yaml:"allowedOrigins"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
	Retry           RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// FAQConfig controls the matching engine and its storage.
type FAQConfig struct {
	InstitutionName    string           `yaml:"institutionName"`
	SuggestionCount    int              `yaml:"suggestionCount"`
	TopRecommendations int              `yaml:"topRecommendations"`
	UnknownQueueLimit  int              `yaml:"unknownQueueLimit"`
	RulesPath          string           `yaml:"rulesPath"`
	Thresholds         ThresholdsConfig `yaml:"thresholds"`
	Normalizer         NormalizerConfig `yaml:"normalizer"`
	Index              IndexConfig      `yaml:"index"`
	Redis              RedisConfig      `yaml:"redis"`
	Postgres           PostgresConfig   `yaml:"postgres"`
	Reindex            ReindexConfig    `yaml:"reindex"`
	Seed               SeedConfig       `yaml:"seed"`
}

// ThresholdsConfig holds the initial classification cut-points.
type ThresholdsConfig struct {
	Exact   float64 `yaml:"exact"`
	Similar float64 `yaml:"similar"`
	Low     float64 `yaml:"low"`
}

// NormalizerConfig selects the text reduction mode and extra tables.
type NormalizerConfig struct {
	UseStemming    bool     `yaml:"useStemming"`
	DomainWords    []string `yaml:"domainWords"`
	ExtraStopwords []string `yaml:"extraStopwords"`
}

// IndexConfig tunes the term-weighting model.
type IndexConfig struct {
	MaxFeatures int     `yaml:"maxFeatures"`
	MaxDocFreq  float64 `yaml:"maxDocFreq"`
	MaxNGram    int     `yaml:"maxNGram"`
}

// RedisConfig contains connection information for the valkey store.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ReindexConfig names the pub/sub channel used to fan out rebuilds.
type ReindexConfig struct {
	Channel string `yaml:"channel"`
}

// SeedConfig points at the entries imported into an empty knowledge base.
type SeedConfig struct {
	Path   string       `yaml:"path"`
	Object ObjectConfig `yaml:"object"`
}

// ObjectConfig describes an S3 compatible bucket holding the seed file.
type ObjectConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Key       string `yaml:"key"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	} else if v := os.Getenv("PORT"); v != "" {
		cfg.HTTP.Address = ":" + v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_BASE_BACKOFF"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Retry.BaseBackoff = parsed
		}
	}
	if v := os.Getenv("FAQ_INSTITUTION_NAME"); v != "" {
		cfg.FAQ.InstitutionName = v
	}
	if v := os.Getenv("FAQ_RECOMMENDATIONS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.FAQ.TopRecommendations = parsed
		}
	}
	if v := os.Getenv("FAQ_RULES_PATH"); v != "" {
		cfg.FAQ.RulesPath = v
	}
	if v := os.Getenv("FAQ_THRESHOLD_EXACT"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FAQ.Thresholds.Exact = parsed
		}
	}
	if v := os.Getenv("FAQ_THRESHOLD_SIMILAR"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FAQ.Thresholds.Similar = parsed
		}
	}
	if v := os.Getenv("FAQ_THRESHOLD_LOW"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FAQ.Thresholds.Low = parsed
		}
	}
	if v := os.Getenv("FAQ_USE_STEMMING"); v != "" {
		cfg.FAQ.Normalizer.UseStemming = parseBool(v)
	}
	if v := os.Getenv("FAQ_REDIS_ENABLED"); v != "" {
		cfg.FAQ.Redis.Enabled = parseBool(v)
	}
	if v := os.Getenv("FAQ_REDIS_ADDR"); v != "" {
		cfg.FAQ.Redis.Addr = v
	}
	if v := os.Getenv("FAQ_POSTGRES_DSN"); v != "" {
		cfg.FAQ.Postgres.DSN = v
	}
	if v := os.Getenv("FAQ_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.FAQ.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("FAQ_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.FAQ.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("FAQ_REINDEX_CHANNEL"); v != "" {
		cfg.FAQ.Reindex.Channel = v
	}
	if v := os.Getenv("FAQ_SEED_PATH"); v != "" {
		cfg.FAQ.Seed.Path = v
	}
	if v := os.Getenv("FAQ_SEED_OBJECT_ENABLED"); v != "" {
		cfg.FAQ.Seed.Object.Enabled = parseBool(v)
	}
	if v := os.Getenv("FAQ_SEED_ENDPOINT"); v != "" {
		cfg.FAQ.Seed.Object.Endpoint = v
	}
	if v := os.Getenv("FAQ_SEED_ACCESS_KEY"); v != "" {
		cfg.FAQ.Seed.Object.AccessKey = v
	}
	if v := os.Getenv("FAQ_SEED_SECRET_KEY"); v != "" {
		cfg.FAQ.Seed.Object.SecretKey = v
	}
	if v := os.Getenv("FAQ_SEED_BUCKET"); v != "" {
		cfg.FAQ.Seed.Object.Bucket = v
	}
	if v := os.Getenv("FAQ_SEED_KEY"); v != "" {
		cfg.FAQ.Seed.Object.Key = v
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:         ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/admin",
				},
			},
		},
		FAQ: FAQConfig{
			InstitutionName:    "LAUTECH",
			SuggestionCount:    3,
			TopRecommendations: 10,
			UnknownQueueLimit:  50,
			Thresholds: ThresholdsConfig{
				Exact:   0.6,
				Similar: 0.4,
				Low:     0.25,
			},
			Index: IndexConfig{
				MaxFeatures: 2000,
				MaxDocFreq:  0.7,
				MaxNGram:    2,
			},
			Redis: RedisConfig{
				Prefix: "faq",
			},
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
			Reindex: ReindexConfig{
				Channel: "faq:reindex",
			},
			Seed: SeedConfig{
				Object: ObjectConfig{
					Region: "auto",
					Key:    "faqs.json",
				},
			},
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if strings.TrimSpace(c.FAQ.InstitutionName) == "" {
		return errors.New("faq.institutionName cannot be empty")
	}
	if c.FAQ.TopRecommendations < 0 {
		return errors.New("faq.topRecommendations cannot be negative")
	}
	if c.FAQ.SuggestionCount < 0 {
		return errors.New("faq.suggestionCount cannot be negative")
	}
	t := c.FAQ.Thresholds
	for _, v := range []float64{t.Exact, t.Similar, t.Low} {
		if v < 0 || v > 1 {
			return errors.New("faq.thresholds must lie within [0,1]")
		}
	}
	if t.Low > t.Similar || t.Similar > t.Exact {
		return errors.New("faq.thresholds must satisfy low <= similar <= exact")
	}
	if c.FAQ.Index.MaxDocFreq < 0 || c.FAQ.Index.MaxDocFreq > 1 {
		return errors.New("faq.index.maxDocFreq must lie within [0,1]")
	}
	if c.FAQ.Redis.Enabled && strings.TrimSpace(c.FAQ.Redis.Addr) == "" {
		return errors.New("faq.redis.addr cannot be empty when redis is enabled")
	}
	if c.FAQ.Seed.Object.Enabled {
		obj := c.FAQ.Seed.Object
		if obj.Endpoint == "" || obj.Bucket == "" {
			return errors.New("faq.seed.object requires endpoint and bucket when enabled")
		}
		if obj.AccessKey == "" || obj.SecretKey == "" {
			return errors.New("faq.seed.object requires credentials when enabled")
		}
	}
	return nil
}
