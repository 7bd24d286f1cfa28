// =============================================================================
// corejudge default configuration
// =============================================================================
// Provides reasonable defaults for every configuration section.
// =============================================================================
package config

import "time"

// DefaultConfig returns the configuration a worker process starts with
// before any file or environment override is applied.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Worker:    DefaultWorkerConfig(),
		Broker:    DefaultBrokerConfig(),
		RateLimit: DefaultRateLimitConfig(),
		Tasks:     DefaultTaskConfigs(),
		LLM:       DefaultLLMConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		OrphanRecovery: DefaultOrphanRecoveryConfig(),
	}
}

// DefaultServerConfig returns the default admin/metrics HTTP server config.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultWorkerConfig mirrors §4.5's pool sizing and shutdown defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PoolSize:            0, // 0 means workerpool.DefaultSize() at construction
		Queues:              []string{"ai", "execution", "generation", "jobs", "maintenance"},
		ShutdownGracePeriod: 120 * time.Second,
	}
}

// DefaultBrokerConfig points at a local Redis instance, matching the
// teacher's DefaultRedisConfig shape.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		Host:         "localhost",
		Port:         6379,
		Password:     "",
		DB:           0,
		KeyPrefix:    "corejudge",
		ConsumerName: "",
	}
}

// DefaultRateLimitConfig matches §4.8's rate-limit cache.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		CacheTTLSeconds: 60,
	}
}

// DefaultTaskConfigs returns the §4.5 default retry policy for every
// registered task name. tasks.Register does not read these entries: it
// registers every task with workerpool.DefaultRetryPolicy() (and
// recover_orphaned_jobs with zero retries), whatever Tasks holds.
func DefaultTaskConfigs() map[string]TaskConfig {
	def := TaskConfig{MaxRetries: 3, RetryDelay: 60 * time.Second, Backoff: "exponential_jitter"}
	return map[string]TaskConfig{
		"extract_problem":           def,
		"generate_generator_script": def,
		"generate_outputs":          def,
		"execute_submission":        def,
		"generate_hints":            def,
		"delete_job":                def,
		"recover_orphaned_jobs":     {MaxRetries: 0, RetryDelay: 60 * time.Second, Backoff: "none"},
	}
}

// DefaultLLMConfig returns the default gateway client configuration.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultProvider: "anthropic",
		APIKey:          "",
		BaseURL:         "",
		Timeout:         2 * time.Minute,
		MaxRetries:      3,
	}
}

// DefaultLogConfig returns the default structured-logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default OpenTelemetry export config.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "corejudge-worker",
		SampleRate:   0.1,
	}
}

// DefaultOrphanRecoveryConfig matches §4.10: a 15-minute sweep interval
// and a 30-minute staleness threshold.
func DefaultOrphanRecoveryConfig() OrphanRecoveryConfig {
	return OrphanRecoveryConfig{
		IntervalSeconds:  15 * 60,
		ThresholdSeconds: 30 * 60,
	}
}
