// Package tasks implements the Task Library (C7): the handlers
// dispatched by the Worker Pool (C6) by name, each idempotent in the
// sense that rerunning on the same input converges to the same final
// state (§4.6).
package tasks

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/algojudge/corejudge/broker"
	"github.com/algojudge/corejudge/clock"
	"github.com/algojudge/corejudge/llmgateway"
	"github.com/algojudge/corejudge/repo"
	"github.com/algojudge/corejudge/runner"
	"github.com/algojudge/corejudge/testcase"
	"github.com/algojudge/corejudge/webfetch"
)

// platformConcurrency is the default per-platform politeness limit for
// ExtractProblem (§4.6.1: "Concurrency limit per platform enforced by a
// semaphore (default 4)").
const platformConcurrency = 4

// Deps bundles every capability and repository the task library
// dispatches against. One Deps instance is shared process-wide, per
// §5's "Store, Broker, Object Store, and LLM clients are process-wide
// singletons initialized once."
type Deps struct {
	Problems       *repo.ProblemRepo
	ExtractionJobs *repo.ProblemExtractionJobRepo
	ScriptJobs     *repo.ScriptGenerationJobRepo
	Progress       *repo.ProgressRepo
	Histories      *repo.HistoryRepo

	TestCases *testcase.Store
	Gateway   *llmgateway.Gateway
	Runner    runner.Runner
	Fetcher   *webfetch.Fetcher
	Broker    broker.Broker
	Clock     clock.Clock
	Logger    *zap.Logger

	// LLMProvider/LLMModel select which registered provider and model
	// name tasks call through the gateway; kept here rather than hardcoded
	// per-task so operators can repoint tasks at a different backend.
	LLMProvider string
	LLMModel    string

	// OrphanThreshold overrides orphanThreshold (§4.10's staleness
	// threshold) when set; operators tune it via
	// config.OrphanRecoveryConfig.ThresholdSeconds.
	OrphanThreshold time.Duration

	mu          sync.Mutex
	platformSem map[string]*semaphore.Weighted
}

func (d *Deps) orphanThreshold() time.Duration {
	if d.OrphanThreshold > 0 {
		return d.OrphanThreshold
	}
	return orphanThreshold
}

func (d *Deps) semaphoreFor(platform string) *semaphore.Weighted {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.platformSem == nil {
		d.platformSem = make(map[string]*semaphore.Weighted)
	}
	sem, ok := d.platformSem[platform]
	if !ok {
		sem = semaphore.NewWeighted(platformConcurrency)
		d.platformSem[platform] = sem
	}
	return sem
}
