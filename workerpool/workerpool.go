// Package workerpool implements the Worker Pool (C6): a fixed set of
// slots, each dequeuing from a subset of queues and dispatching to a
// task handler by name, with per-task retry/backoff and a graceful
// shutdown grace period.
//
// Worker lifecycle, atomic counters, and panic recovery follow the same
// shape as a generic goroutine pool, generalized here into a
// queue-bound dispatch loop driven by the Job Broker Adapter, using
// golang.org/x/sync/errgroup for slot supervision instead of a manual
// sync.WaitGroup.
package workerpool

import (
	"context"
	"math/rand"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/algojudge/corejudge/broker"
	"github.com/algojudge/corejudge/errs"
)

// Handler executes one task's payload. A returned error that is
// errs.IsRetryable schedules a retry per RetryPolicy; any other error
// is terminal.
type Handler func(ctx context.Context, payload []byte) error

// Recorder receives task execution outcomes. internal/metrics.Collector
// satisfies this; it is kept as a narrow interface here so workerpool
// doesn't depend on the concrete metrics package.
type Recorder interface {
	RecordTaskExecution(task, status string, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordTaskExecution(string, string, time.Duration) {}

// RetryPolicy controls how a task is rescheduled after a retryable
// failure (§4.5: "Default: 3 retries, 60s base, exponential with
// jitter, cap 30min").
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy is the §4.5 default applied to any task registered
// without an explicit policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 60 * time.Second, MaxDelay: 30 * time.Minute}
}

// Delay returns the backoff delay before the attempt-th retry (1-indexed),
// exponential with full jitter, capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt-1)
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	jittered := time.Duration(rand.Int63n(int64(d) + 1))
	return jittered
}

type registration struct {
	handler Handler
	policy  RetryPolicy
}

// Pool is the worker pool. One Pool instance owns Size slots, each
// bound to Queues, sharing the same Broker and task registry.
type Pool struct {
	broker broker.Broker
	logger *zap.Logger

	size        int
	queues      []string
	waitTimeout time.Duration
	gracePeriod time.Duration
	recorder    Recorder

	tasks map[string]registration
}

// Config configures a Pool. Size defaults to min(2*CPU+1, 16) per §4.5
// when left zero.
type Config struct {
	Queues      []string
	Size        int
	WaitTimeout time.Duration
	GracePeriod time.Duration
	// Recorder receives task execution metrics; nil disables recording.
	Recorder Recorder
}

// DefaultSize returns §4.5's default slot count for this process.
func DefaultSize() int {
	n := 2*runtime.NumCPU() + 1
	if n > 16 {
		return 16
	}
	return n
}

func New(b broker.Broker, cfg Config, logger *zap.Logger) *Pool {
	size := cfg.Size
	if size <= 0 {
		size = DefaultSize()
	}
	wait := cfg.WaitTimeout
	if wait <= 0 {
		wait = 5 * time.Second
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = 120 * time.Second
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Pool{
		broker: b, logger: logger,
		size: size, queues: cfg.Queues, waitTimeout: wait, gracePeriod: grace,
		recorder: recorder,
		tasks:    make(map[string]registration),
	}
}

// Register binds a task name to its handler and retry policy. Tasks
// must be registered before Run starts dispatching them.
func (p *Pool) Register(taskName string, h Handler, policy RetryPolicy) {
	p.tasks[taskName] = registration{handler: h, policy: policy}
}

// Run starts Size slots and blocks until ctx is cancelled, then gives
// in-flight tasks up to GracePeriod to finish before returning.
func (p *Pool) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(runCtx)
	for i := 0; i < p.size; i++ {
		g.Go(func() error {
			p.slot(gCtx)
			return nil
		})
	}

	<-ctx.Done()
	p.logger.Info("worker pool shutting down, draining in-flight tasks", zap.Duration("grace_period", p.gracePeriod))

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(p.gracePeriod):
		p.logger.Warn("grace period expired with tasks still in flight, forcing shutdown")
		cancel()
		return <-done
	}
}

func (p *Pool) slot(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := p.broker.Dequeue(ctx, p.queues, 1, p.waitTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		p.handle(ctx, msgs[0])
	}
}

func (p *Pool) handle(ctx context.Context, msg broker.Message) {
	reg, ok := p.tasks[msg.TaskName]
	if !ok {
		p.logger.Error("no handler registered for task, dead-lettering", zap.String("task_name", msg.TaskName))
		_ = p.broker.Nack(ctx, withAttempt(msg, broker.MaxDeliveries+1), 0)
		return
	}

	taskCtx, cancel := context.WithDeadline(ctx, msg.Deadline)
	defer cancel()

	start := time.Now()
	err := reg.handler(taskCtx, msg.Payload)
	elapsed := time.Since(start)

	if err == nil {
		p.recorder.RecordTaskExecution(msg.TaskName, "success", elapsed)
		if ackErr := p.broker.Ack(ctx, msg); ackErr != nil {
			p.logger.Error("ack failed", zap.String("task_name", msg.TaskName), zap.Error(ackErr))
		}
		return
	}

	if !errs.IsRetryable(err) || msg.Attempt > reg.policy.MaxRetries {
		p.recorder.RecordTaskExecution(msg.TaskName, "failed", elapsed)
		p.logger.Error("task failed terminally", zap.String("task_name", msg.TaskName),
			zap.Int("attempt", msg.Attempt), zap.Error(err))
		_ = p.broker.Nack(ctx, withAttempt(msg, broker.MaxDeliveries+1), 0)
		return
	}

	p.recorder.RecordTaskExecution(msg.TaskName, "retried", elapsed)
	delay := reg.policy.Delay(msg.Attempt)
	p.logger.Warn("task failed, scheduling retry", zap.String("task_name", msg.TaskName),
		zap.Int("attempt", msg.Attempt), zap.Duration("delay", delay), zap.Error(err))
	if nackErr := p.broker.Nack(ctx, msg, delay); nackErr != nil {
		p.logger.Error("nack failed", zap.String("task_name", msg.TaskName), zap.Error(nackErr))
	}
}

// withAttempt forces a message to be treated as exhausted so a terminal
// failure routes straight to the dead letter queue instead of waiting
// out the broker's own retry ceiling.
func withAttempt(msg broker.Message, attempt int) broker.Message {
	msg.Attempt = attempt
	return msg
}
