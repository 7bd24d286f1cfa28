package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBroker is an in-process Broker for unit tests, mirroring the
// visibility-timeout and dead-letter semantics of RedisBroker without a
// live Redis server.
type MemoryBroker struct {
	mu         sync.Mutex
	queues     map[string][]*pendingMessage
	deadLetter map[string][]Message
}

type pendingMessage struct {
	msg       Message
	visibleAt time.Time
	delivered bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{queues: make(map[string][]*pendingMessage), deadLetter: make(map[string][]Message)}
}

func (m *MemoryBroker) Ping(ctx context.Context) error { return nil }
func (m *MemoryBroker) Close() error                   { return nil }
func (m *MemoryBroker) Capabilities() Capabilities {
	return Capabilities{SupportsDeadLetter: true, SupportsDelay: true}
}

func (m *MemoryBroker) Enqueue(ctx context.Context, queue, taskName string, payload []byte, opts EnqueueOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	visibleAt := time.Now()
	if opts.Delay > 0 {
		visibleAt = visibleAt.Add(opts.Delay)
	}
	m.queues[queue] = append(m.queues[queue], &pendingMessage{
		msg:       Message{ID: id, Queue: queue, TaskName: taskName, Payload: payload, Attempt: 0},
		visibleAt: visibleAt,
	})
	return id, nil
}

func (m *MemoryBroker) Dequeue(ctx context.Context, queues []string, max int, wait time.Duration) ([]Message, error) {
	deadline := time.Now().Add(wait)
	for {
		m.mu.Lock()
		now := time.Now()
		var out []Message
		for _, q := range queues {
			for _, pm := range m.queues[q] {
				if pm.delivered || now.Before(pm.visibleAt) {
					continue
				}
				pm.delivered = true
				pm.msg.Attempt++
				pm.msg.Deadline = now.Add(VisibilityTimeout(q))
				pm.visibleAt = pm.msg.Deadline
				out = append(out, pm.msg)
				if len(out) >= max {
					break
				}
			}
			if len(out) >= max {
				break
			}
		}
		m.mu.Unlock()

		if len(out) > 0 || wait <= 0 || time.Now().After(deadline) {
			return out, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (m *MemoryBroker) Ack(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.queues[msg.Queue]
	for i, pm := range list {
		if pm.msg.ID == msg.ID {
			m.queues[msg.Queue] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MemoryBroker) Nack(ctx context.Context, msg Message, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.queues[msg.Queue]
	for i, pm := range list {
		if pm.msg.ID != msg.ID {
			continue
		}
		if msg.Attempt >= MaxDeliveries {
			m.deadLetter[msg.Queue] = append(m.deadLetter[msg.Queue], msg)
			m.queues[msg.Queue] = append(list[:i], list[i+1:]...)
			return nil
		}
		pm.delivered = false
		pm.visibleAt = time.Now().Add(delay)
		pm.msg.Attempt = msg.Attempt
		return nil
	}
	return nil
}

func (m *MemoryBroker) DeadLetters(ctx context.Context, queue string, max int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	letters := m.deadLetter[queue]
	if max > 0 && len(letters) > max {
		letters = letters[:max]
	}
	out := make([]Message, len(letters))
	copy(out, letters)
	return out, nil
}
