package workerpool_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/algojudge/corejudge/broker"
	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/workerpool"
)

func TestPoolDispatchesRegisteredHandlerAndAcks(t *testing.T) {
	b := broker.NewMemoryBroker()
	_, err := b.Enqueue(context.Background(), broker.QueueJobs, "noop", []byte("x"), broker.EnqueueOptions{})
	require.NoError(t, err)

	var calls atomic.Int32
	pool := workerpool.New(b, workerpool.Config{Queues: []string{broker.QueueJobs}, Size: 1, WaitTimeout: 10 * time.Millisecond}, zap.NewNop())
	pool.Register("noop", func(ctx context.Context, payload []byte) error {
		calls.Add(1)
		return nil
	}, workerpool.DefaultRetryPolicy())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = pool.Run(ctx)

	require.Equal(t, int32(1), calls.Load())
	letters, err := b.DeadLetters(context.Background(), broker.QueueJobs, 10)
	require.NoError(t, err)
	require.Empty(t, letters)
}

func TestPoolDeadLettersTerminalFailure(t *testing.T) {
	b := broker.NewMemoryBroker()
	_, err := b.Enqueue(context.Background(), broker.QueueJobs, "always_fails", []byte("x"), broker.EnqueueOptions{})
	require.NoError(t, err)

	pool := workerpool.New(b, workerpool.Config{Queues: []string{broker.QueueJobs}, Size: 1, WaitTimeout: 10 * time.Millisecond}, zap.NewNop())
	pool.Register("always_fails", func(ctx context.Context, payload []byte) error {
		return errs.New(errs.KindValidation, "bad input")
	}, workerpool.DefaultRetryPolicy())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = pool.Run(ctx)

	letters, err := b.DeadLetters(context.Background(), broker.QueueJobs, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
}

func TestRetryPolicyDelayRespectsCap(t *testing.T) {
	p := workerpool.RetryPolicy{MaxRetries: 5, BaseDelay: time.Minute, MaxDelay: 2 * time.Minute}
	for attempt := 1; attempt <= 5; attempt++ {
		d := p.Delay(attempt)
		require.LessOrEqual(t, d, 2*time.Minute)
		require.GreaterOrEqual(t, d, time.Duration(0))
	}
}

func TestDefaultSizeIsBoundedAtSixteen(t *testing.T) {
	require.LessOrEqual(t, workerpool.DefaultSize(), 16)
	require.Greater(t, workerpool.DefaultSize(), 0)
}
