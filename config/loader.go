// =============================================================================
// corejudge configuration loader
// =============================================================================
// Unified config loading: defaults -> YAML file -> environment variables,
// using koanf as the merge engine (the shape the pack's logistics-service
// loader uses for exactly this three-source priority chain).
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("COREJUDGE").
//	    Load()
// =============================================================================
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// =============================================================================
// Top-level configuration structure
// =============================================================================

// Config is corejudge's complete worker-process configuration (§6's
// recognized options).
type Config struct {
	Server    ServerConfig         `yaml:"server" koanf:"server"`
	Worker    WorkerConfig         `yaml:"worker" koanf:"worker"`
	Broker    BrokerConfig         `yaml:"broker" koanf:"broker"`
	RateLimit RateLimitConfig      `yaml:"rate_limit" koanf:"rate_limit"`
	Tasks     map[string]TaskConfig `yaml:"task" koanf:"task"`
	LLM       LLMConfig            `yaml:"llm" koanf:"llm"`
	Log       LogConfig            `yaml:"log" koanf:"log"`
	Telemetry TelemetryConfig      `yaml:"telemetry" koanf:"telemetry"`
	OrphanRecovery OrphanRecoveryConfig `yaml:"orphan_recovery" koanf:"orphan_recovery"`
}

// ServerConfig configures the admin/metrics HTTP listener.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" koanf:"http_port"`
	MetricsPort     int           `yaml:"metrics_port" koanf:"metrics_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" koanf:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" koanf:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"`
}

// WorkerConfig configures the Worker Pool (C6, §4.5).
type WorkerConfig struct {
	// PoolSize is the fixed slot count; 0 defers to
	// workerpool.DefaultSize() (min(2*CPU+1, 16)).
	PoolSize int `yaml:"pool_size" koanf:"pool_size"`
	// Queues lists which broker queues this process's slots dequeue from.
	Queues              []string      `yaml:"queues" koanf:"queues"`
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period" koanf:"shutdown_grace_period"`
}

// BrokerConfig configures the Job Broker Adapter's Redis Streams backend
// (C5, §4.4).
type BrokerConfig struct {
	Host         string `yaml:"host" koanf:"host"`
	Port         int    `yaml:"port" koanf:"port"`
	Password     string `yaml:"password" koanf:"password"`
	DB           int    `yaml:"db" koanf:"db"`
	KeyPrefix    string `yaml:"key_prefix" koanf:"key_prefix"`
	ConsumerName string `yaml:"consumer_name" koanf:"consumer_name"`
}

// RateLimitConfig configures the rate-limit decision cache (§4.8).
type RateLimitConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" koanf:"cache_ttl_seconds"`
}

// TaskConfig is one task's retry policy (§4.5: "Each task declares
// max_retries, retry_delay, and backoff").
type TaskConfig struct {
	MaxRetries int           `yaml:"max_retries" koanf:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay" koanf:"retry_delay"`
	Backoff    string        `yaml:"backoff" koanf:"backoff"`
}

// LLMConfig configures the LLM Gateway's default client (C9).
type LLMConfig struct {
	DefaultProvider string        `yaml:"default_provider" koanf:"default_provider"`
	APIKey          string        `yaml:"api_key" koanf:"api_key"`
	BaseURL         string        `yaml:"base_url" koanf:"base_url"`
	Timeout         time.Duration `yaml:"timeout" koanf:"timeout"`
	MaxRetries      int           `yaml:"max_retries" koanf:"max_retries"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level            string   `yaml:"level" koanf:"level"`
	Format           string   `yaml:"format" koanf:"format"`
	OutputPaths      []string `yaml:"output_paths" koanf:"output_paths"`
	EnableCaller     bool     `yaml:"enable_caller" koanf:"enable_caller"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" koanf:"enable_stacktrace"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" koanf:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" koanf:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name" koanf:"service_name"`
	SampleRate   float64 `yaml:"sample_rate" koanf:"sample_rate"`
}

// OrphanRecoveryConfig configures the periodic stuck-job sweep (C10,
// §4.10).
type OrphanRecoveryConfig struct {
	IntervalSeconds  int `yaml:"interval_seconds" koanf:"interval_seconds"`
	ThresholdSeconds int `yaml:"threshold_seconds" koanf:"threshold_seconds"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader is a builder-style configuration loader.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the default COREJUDGE env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "COREJUDGE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a configuration validator run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load merges defaults, the optional YAML file, and environment
// variables (in that increasing priority order) into a Config.
func (l *Loader) Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if l.configPath != "" {
		if _, err := os.Stat(l.configPath); err == nil {
			if err := k.Load(file.Provider(l.configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", l.configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file %s: %w", l.configPath, err)
		}
	}

	prefix := l.envPrefix + "_"
	err := k.Load(env.Provider(prefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, prefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for _, v := range l.validators {
		if err := v(&cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return &cfg, nil
}

// defaultsMap flattens DefaultConfig into the dotted key/value form
// koanf's confmap provider expects.
func defaultsMap() map[string]any {
	d := DefaultConfig()
	m := map[string]any{
		"server.http_port":        d.Server.HTTPPort,
		"server.metrics_port":     d.Server.MetricsPort,
		"server.read_timeout":     d.Server.ReadTimeout,
		"server.write_timeout":    d.Server.WriteTimeout,
		"server.shutdown_timeout": d.Server.ShutdownTimeout,

		"worker.pool_size":              d.Worker.PoolSize,
		"worker.queues":                 d.Worker.Queues,
		"worker.shutdown_grace_period":  d.Worker.ShutdownGracePeriod,

		"broker.host":          d.Broker.Host,
		"broker.port":          d.Broker.Port,
		"broker.password":      d.Broker.Password,
		"broker.db":            d.Broker.DB,
		"broker.key_prefix":    d.Broker.KeyPrefix,
		"broker.consumer_name": d.Broker.ConsumerName,

		"rate_limit.cache_ttl_seconds": d.RateLimit.CacheTTLSeconds,

		"llm.default_provider": d.LLM.DefaultProvider,
		"llm.api_key":          d.LLM.APIKey,
		"llm.base_url":         d.LLM.BaseURL,
		"llm.timeout":          d.LLM.Timeout,
		"llm.max_retries":      d.LLM.MaxRetries,

		"log.level":             d.Log.Level,
		"log.format":            d.Log.Format,
		"log.output_paths":      d.Log.OutputPaths,
		"log.enable_caller":     d.Log.EnableCaller,
		"log.enable_stacktrace": d.Log.EnableStacktrace,

		"telemetry.enabled":       d.Telemetry.Enabled,
		"telemetry.otlp_endpoint": d.Telemetry.OTLPEndpoint,
		"telemetry.service_name":  d.Telemetry.ServiceName,
		"telemetry.sample_rate":   d.Telemetry.SampleRate,

		"orphan_recovery.interval_seconds":  d.OrphanRecovery.IntervalSeconds,
		"orphan_recovery.threshold_seconds": d.OrphanRecovery.ThresholdSeconds,
	}
	for name, tc := range d.Tasks {
		m["task."+name+".max_retries"] = tc.MaxRetries
		m["task."+name+".retry_delay"] = tc.RetryDelay
		m["task."+name+".backoff"] = tc.Backoff
	}
	return m
}

// MustLoad loads configuration, panicking on failure. Intended for
// process start-up where a bad config is unrecoverable.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads configuration from defaults and environment only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks invariants the loader itself cannot express via tags.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		problems = append(problems, "invalid HTTP port")
	}
	if c.Worker.PoolSize < 0 {
		problems = append(problems, "worker.pool_size must not be negative")
	}
	if len(c.Worker.Queues) == 0 {
		problems = append(problems, "worker.queues must not be empty")
	}
	if c.RateLimit.CacheTTLSeconds <= 0 {
		problems = append(problems, "rate_limit.cache_ttl_seconds must be positive")
	}
	for name, tc := range c.Tasks {
		if tc.MaxRetries < 0 {
			problems = append(problems, fmt.Sprintf("task.%s.max_retries must not be negative", name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(problems, "; "))
	}
	return nil
}
