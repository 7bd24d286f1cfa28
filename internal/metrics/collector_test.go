package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.tasksTotal)
	assert.NotNil(t, collector.taskDuration)
	assert.NotNil(t, collector.queueDepth)
	assert.NotNil(t, collector.rateLimitDecisions)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.llmRequestDuration)
}

func TestCollector_RecordTaskExecution(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordTaskExecution("extract_problem", "success", 120*time.Millisecond)
	collector.RecordTaskExecution("extract_problem", "failed", 50*time.Millisecond)

	count := testutil.CollectAndCount(collector.tasksTotal)
	assert.Equal(t, 2, count)
}

func TestCollector_SetQueueDepth(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.SetQueueDepth("ai", 7)
	collector.SetQueueDepth("execution", 0)

	assert.InDelta(t, 7, testutil.ToFloat64(collector.queueDepth.WithLabelValues("ai")), 0.001)
}

func TestCollector_RecordRateLimitDecision(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordRateLimitDecision("execute", "allowed")
	collector.RecordRateLimitDecision("execute", "denied")

	count := testutil.CollectAndCount(collector.rateLimitDecisions)
	assert.Equal(t, 2, count)
}

func TestCollector_LedgerCache(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordLedgerCacheHit("positive")
	collector.RecordLedgerCacheMiss("negative")

	assert.Greater(t, testutil.CollectAndCount(collector.ledgerCacheHits), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.ledgerCacheMisses), 0)
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordLLMRequest("anthropic", "claude-3-5-sonnet", "success", 900*time.Millisecond)

	assert.Greater(t, testutil.CollectAndCount(collector.llmRequestsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.llmRequestDuration), 0)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			collector.RecordTaskExecution("generate_hints", "success", 10*time.Millisecond)
			collector.RecordLLMRequest("anthropic", "claude-3-5-sonnet", "success", 500*time.Millisecond)
			collector.RecordRateLimitDecision("hints", "allowed")
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Greater(t, testutil.CollectAndCount(collector.tasksTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.llmRequestsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.rateLimitDecisions), 0)
}

func TestCollector_MetricsRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	registry.MustRegister(collector.tasksTotal)
	registry.MustRegister(collector.taskDuration)

	collector.RecordTaskExecution("delete_job", "success", 5*time.Millisecond)

	assert.Greater(t, testutil.CollectAndCount(collector.tasksTotal), 0)
}
