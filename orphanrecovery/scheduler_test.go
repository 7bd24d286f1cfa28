package orphanrecovery_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/algojudge/corejudge/broker"
	"github.com/algojudge/corejudge/orphanrecovery"
)

func TestScheduler_EnqueuesOnInterval(t *testing.T) {
	b := broker.NewMemoryBroker()
	s := orphanrecovery.New(b, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	defer s.Stop()

	require.Eventually(t, func() bool {
		msgs, err := b.Dequeue(ctx, []string{broker.QueueMaintenance}, 1, 0)
		return err == nil && len(msgs) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	b := broker.NewMemoryBroker()
	s := orphanrecovery.New(b, time.Minute, zap.NewNop())

	s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Stop()
	s.Stop()
}

func TestNew_NonPositiveIntervalBuildsScheduler(t *testing.T) {
	b := broker.NewMemoryBroker()
	s := orphanrecovery.New(b, 0, zap.NewNop())
	assert.NotNil(t, s)
}
