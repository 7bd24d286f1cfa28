package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, WorkerConfig{}, cfg.Worker)
	assert.NotEqual(t, BrokerConfig{}, cfg.Broker)
	assert.NotEqual(t, RateLimitConfig{}, cfg.RateLimit)
	assert.NotEmpty(t, cfg.Tasks)
	assert.NotEqual(t, LLMConfig{}, cfg.LLM)
	assert.NotEqual(t, LogConfig{}, cfg.Log)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	assert.NotEqual(t, OrphanRecoveryConfig{}, cfg.OrphanRecovery)
}

// --- Individual Default*Config functions ---

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}

func TestDefaultWorkerConfig(t *testing.T) {
	cfg := DefaultWorkerConfig()
	assert.Equal(t, 0, cfg.PoolSize)
	assert.ElementsMatch(t, []string{"ai", "execution", "generation", "jobs", "maintenance"}, cfg.Queues)
	assert.Equal(t, 120*time.Second, cfg.ShutdownGracePeriod)
}

func TestDefaultBrokerConfig(t *testing.T) {
	cfg := DefaultBrokerConfig()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6379, cfg.Port)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, "corejudge", cfg.KeyPrefix)
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	assert.Equal(t, 60, cfg.CacheTTLSeconds)
}

func TestDefaultTaskConfigs(t *testing.T) {
	tasks := DefaultTaskConfigs()
	require.Contains(t, tasks, "extract_problem")
	assert.Equal(t, 3, tasks["extract_problem"].MaxRetries)
	assert.Equal(t, 60*time.Second, tasks["extract_problem"].RetryDelay)
	assert.Equal(t, "exponential_jitter", tasks["extract_problem"].Backoff)

	require.Contains(t, tasks, "recover_orphaned_jobs")
	assert.Equal(t, 0, tasks["recover_orphaned_jobs"].MaxRetries)
}

func TestDefaultLLMConfig(t *testing.T) {
	cfg := DefaultLLMConfig()
	assert.Equal(t, "anthropic", cfg.DefaultProvider)
	assert.Empty(t, cfg.APIKey)
	assert.Empty(t, cfg.BaseURL)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
	assert.True(t, cfg.EnableCaller)
	assert.False(t, cfg.EnableStacktrace)
}

func TestDefaultOrphanRecoveryConfig(t *testing.T) {
	cfg := DefaultOrphanRecoveryConfig()
	assert.Equal(t, 900, cfg.IntervalSeconds)
	assert.Equal(t, 1800, cfg.ThresholdSeconds)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "corejudge-worker", cfg.ServiceName)
	assert.InDelta(t, 0.1, cfg.SampleRate, 0.001)
}
