package broker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/algojudge/corejudge/broker"
)

func TestMemoryBrokerEnqueueDequeueAck(t *testing.T) {
	b := broker.NewMemoryBroker()
	ctx := context.Background()

	id, err := b.Enqueue(ctx, broker.QueueJobs, "extract_problem", []byte("payload"), broker.EnqueueOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs, err := b.Dequeue(ctx, []string{broker.QueueJobs}, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "extract_problem", msgs[0].TaskName)
	require.Equal(t, 1, msgs[0].Attempt)

	require.NoError(t, b.Ack(ctx, msgs[0]))

	msgs, err = b.Dequeue(ctx, []string{broker.QueueJobs}, 1, 10*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestMemoryBrokerNackRedeliversUntilExhausted(t *testing.T) {
	b := broker.NewMemoryBroker()
	ctx := context.Background()

	_, err := b.Enqueue(ctx, broker.QueueExecution, "execute_submission", []byte("p"), broker.EnqueueOptions{})
	require.NoError(t, err)

	var last broker.Message
	for i := 0; i < broker.MaxDeliveries; i++ {
		msgs, err := b.Dequeue(ctx, []string{broker.QueueExecution}, 1, time.Second)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		last = msgs[0]
		require.NoError(t, b.Nack(ctx, last, 0))
	}

	letters, err := b.DeadLetters(ctx, broker.QueueExecution, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	require.Equal(t, "execute_submission", letters[0].TaskName)
	_ = last
}

func TestMemoryBrokerDelayedMessageNotImmediatelyVisible(t *testing.T) {
	b := broker.NewMemoryBroker()
	ctx := context.Background()

	_, err := b.Enqueue(ctx, broker.QueueAI, "generate_hints", []byte("p"), broker.EnqueueOptions{Delay: 50 * time.Millisecond})
	require.NoError(t, err)

	msgs, err := b.Dequeue(ctx, []string{broker.QueueAI}, 1, 5*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, msgs)

	msgs, err = b.Dequeue(ctx, []string{broker.QueueAI}, 1, 200*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestVisibilityTimeoutPerQueue(t *testing.T) {
	require.Equal(t, 25*time.Minute, broker.VisibilityTimeout(broker.QueueAI))
	require.Equal(t, 5*time.Minute, broker.VisibilityTimeout(broker.QueueExecution))
	require.Equal(t, 20*time.Minute, broker.VisibilityTimeout(broker.QueueGeneration))
	require.Equal(t, 10*time.Minute, broker.VisibilityTimeout(broker.QueueJobs))
	require.Equal(t, 2*time.Minute, broker.VisibilityTimeout(broker.QueueMaintenance))
}
