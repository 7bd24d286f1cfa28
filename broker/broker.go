// Package broker implements the Job Broker Adapter (C5): enqueue/dequeue
// of task messages with per-queue visibility timeouts, prefetch=1
// delivery, and dead-letter routing after exhausted retries.
//
// Follows the same Redis hash + sorted-set indexing and Ping/Close
// lifecycle a task store would use, generalized from a task-status
// index into a consumer-group message queue on Redis Streams, the
// mechanism go-redis/v9 exposes for exactly this at-least-once
// delivery shape.
package broker

import (
	"context"
	"time"
)

// Queue names from §4.4's visibility-timeout table.
const (
	QueueAI          = "ai"
	QueueExecution   = "execution"
	QueueGeneration  = "generation"
	QueueJobs        = "jobs"
	QueueMaintenance = "maintenance"
)

// VisibilityTimeout returns the per-queue visibility timeout (§4.4).
// Brokers stamp it on Message.Deadline at delivery and the Worker Pool
// bounds the handler's context with it; neither MemoryBroker nor
// RedisBroker redelivers an unacked message once that deadline passes.
func VisibilityTimeout(queue string) time.Duration {
	switch queue {
	case QueueAI:
		return 25 * time.Minute
	case QueueExecution:
		return 5 * time.Minute
	case QueueGeneration:
		return 20 * time.Minute
	case QueueJobs:
		return 10 * time.Minute
	case QueueMaintenance:
		return 2 * time.Minute
	default:
		return 10 * time.Minute
	}
}

// MaxDeliveries is the broker-level retry ceiling (§4.4: "Max broker
// retries = 5; the 6th delivery is routed to a dead-letter store").
const MaxDeliveries = 5

// EnqueueOptions customizes a single enqueue call.
type EnqueueOptions struct {
	// Delay postpones the message's first visibility by this duration.
	// Zero means deliver immediately.
	Delay time.Duration
}

// Message is a single delivery from Dequeue.
type Message struct {
	ID       string
	Queue    string
	TaskName string
	Payload  []byte
	Attempt  int
	Deadline time.Time
}

// Capabilities describes what a Broker implementation supports, so
// callers (e.g. admin tooling) can introspect without a type switch.
type Capabilities struct {
	SupportsDeadLetter bool
	SupportsDelay      bool
}

// Broker is the public contract consumed by the Worker Pool (C6) and
// the Task Library (C7).
type Broker interface {
	// Enqueue publishes a task message to queue, returning the broker's
	// id for the delivery.
	Enqueue(ctx context.Context, queue, taskName string, payload []byte, opts EnqueueOptions) (string, error)

	// Dequeue pulls up to max messages across queues, waiting up to wait
	// for at least one. Prefetch=1 callers should pass max=1 (§4.4).
	Dequeue(ctx context.Context, queues []string, max int, wait time.Duration) ([]Message, error)

	// Ack confirms successful processing of msg, removing it from the
	// pending-delivery set.
	Ack(ctx context.Context, msg Message) error

	// Nack marks msg as failed; if msg.Attempt has not exhausted
	// MaxDeliveries, it becomes visible again after delay, otherwise it
	// is routed to the dead-letter store.
	Nack(ctx context.Context, msg Message, delay time.Duration) error

	// DeadLetters returns up to max dead-lettered messages for queue,
	// for admin inspection and manual replay.
	DeadLetters(ctx context.Context, queue string, max int) ([]Message, error)

	Capabilities() Capabilities
	Ping(ctx context.Context) error
	Close() error
}
