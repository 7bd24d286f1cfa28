package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker implements Broker on Redis Streams: one stream per queue,
// a single consumer group ("workers") per stream, delayed messages held
// in a sorted set keyed by due time, and dead letters appended to a
// separate stream per queue.
type RedisBroker struct {
	client   *redis.Client
	prefix   string
	group    string
	consumer string
	logger   *zap.Logger
}

type RedisBrokerConfig struct {
	Host, Password string
	Port, DB       int
	KeyPrefix      string
	ConsumerName   string
}

func NewRedisBroker(cfg RedisBrokerConfig, logger *zap.Logger) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis broker: %w", err)
	}
	return NewRedisBrokerFromClient(client, cfg, logger), nil
}

// NewRedisBrokerFromClient lets tests wire in a miniredis-backed client.
func NewRedisBrokerFromClient(client *redis.Client, cfg RedisBrokerConfig, logger *zap.Logger) *RedisBroker {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "corejudge:broker:"
	}
	consumer := cfg.ConsumerName
	if consumer == "" {
		consumer = uuid.New().String()
	}
	return &RedisBroker{client: client, prefix: prefix, group: "workers", consumer: consumer, logger: logger}
}

func (b *RedisBroker) streamKey(queue string) string { return b.prefix + "stream:" + queue }
func (b *RedisBroker) dlqKey(queue string) string    { return b.prefix + "dlq:" + queue }
func (b *RedisBroker) delayedKey(queue string) string { return b.prefix + "delayed:" + queue }

func (b *RedisBroker) Ping(ctx context.Context) error { return b.client.Ping(ctx).Err() }
func (b *RedisBroker) Close() error                   { return b.client.Close() }

func (b *RedisBroker) Capabilities() Capabilities {
	return Capabilities{SupportsDeadLetter: true, SupportsDelay: true}
}

// ensureGroup creates the consumer group for queue if absent, starting
// from the beginning of the stream ("0").
func (b *RedisBroker) ensureGroup(ctx context.Context, queue string) error {
	err := b.client.XGroupCreateMkStream(ctx, b.streamKey(queue), b.group, "0").Err()
	if err == nil || isBusyGroup(err) {
		return nil
	}
	return fmt.Errorf("create consumer group for %s: %w", queue, err)
}

// isBusyGroup reports whether err is Redis's BUSYGROUP response, meaning
// the consumer group already exists — not a real failure.
func isBusyGroup(err error) bool {
	s := err.Error()
	return len(s) >= 9 && s[:9] == "BUSYGROUP"
}

func (b *RedisBroker) Enqueue(ctx context.Context, queue, taskName string, payload []byte, opts EnqueueOptions) (string, error) {
	if err := b.ensureGroup(ctx, queue); err != nil {
		return "", err
	}

	if opts.Delay > 0 {
		id := uuid.New().String()
		dueAt := time.Now().Add(opts.Delay)
		encoded := encodeDelayed(id, taskName, payload)
		if err := b.client.ZAdd(ctx, b.delayedKey(queue), redis.Z{Score: float64(dueAt.UnixNano()), Member: encoded}).Err(); err != nil {
			return "", fmt.Errorf("schedule delayed message: %w", err)
		}
		return id, nil
	}

	streamID, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.streamKey(queue),
		Values: map[string]any{"task_name": taskName, "payload": payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue to stream %s: %w", queue, err)
	}
	return streamID, nil
}

// promoteDue moves any delayed messages whose due time has passed onto
// the live stream, best-effort, called opportunistically from Dequeue.
func (b *RedisBroker) promoteDue(ctx context.Context, queue string) {
	now := float64(time.Now().UnixNano())
	due, err := b.client.ZRangeByScore(ctx, b.delayedKey(queue), &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatFloat(now, 'f', 0, 64)}).Result()
	if err != nil || len(due) == 0 {
		return
	}
	for _, encoded := range due {
		_, taskName, payload := decodeDelayed(encoded)
		if _, err := b.client.XAdd(ctx, &redis.XAddArgs{
			Stream: b.streamKey(queue),
			Values: map[string]any{"task_name": taskName, "payload": payload},
		}).Result(); err != nil {
			b.logger.Warn("failed to promote delayed message", zap.String("queue", queue), zap.Error(err))
			continue
		}
		b.client.ZRem(ctx, b.delayedKey(queue), encoded)
	}
}

func (b *RedisBroker) Dequeue(ctx context.Context, queues []string, max int, wait time.Duration) ([]Message, error) {
	for _, q := range queues {
		if err := b.ensureGroup(ctx, q); err != nil {
			return nil, err
		}
		b.promoteDue(ctx, q)
	}

	streams := make([]string, 0, len(queues)*2)
	for _, q := range queues {
		streams = append(streams, b.streamKey(q))
	}
	for range queues {
		streams = append(streams, ">")
	}

	res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.group,
		Consumer: b.consumer,
		Streams:  streams,
		Count:    int64(max),
		Block:    wait,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue: %w", err)
	}

	var out []Message
	for _, stream := range res {
		queue := queueFromStreamKey(b.prefix, stream.Stream)
		for _, entry := range stream.Messages {
			attempt, _ := b.pendingAttempt(ctx, queue, entry.ID)
			out = append(out, Message{
				ID:       entry.ID,
				Queue:    queue,
				TaskName: str(entry.Values["task_name"]),
				Payload:  bytesOf(entry.Values["payload"]),
				Attempt:  attempt,
				Deadline: time.Now().Add(VisibilityTimeout(queue)),
			})
		}
	}
	return out, nil
}

func (b *RedisBroker) pendingAttempt(ctx context.Context, queue, id string) (int, error) {
	res, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: b.streamKey(queue), Group: b.group, Start: id, End: id, Count: 1,
	}).Result()
	if err != nil || len(res) == 0 {
		return 1, err
	}
	return int(res[0].RetryCount), nil
}

func (b *RedisBroker) Ack(ctx context.Context, msg Message) error {
	pipe := b.client.TxPipeline()
	pipe.XAck(ctx, b.streamKey(msg.Queue), b.group, msg.ID)
	pipe.XDel(ctx, b.streamKey(msg.Queue), msg.ID)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("ack message %s: %w", msg.ID, err)
	}
	return nil
}

func (b *RedisBroker) Nack(ctx context.Context, msg Message, delay time.Duration) error {
	if msg.Attempt >= MaxDeliveries {
		return b.deadLetter(ctx, msg)
	}

	// Ack the original delivery and re-enqueue with a delay so the next
	// delivery's attempt count starts fresh from the new stream entry;
	// attempt tracking then comes from the caller incrementing msg.Attempt.
	pipe := b.client.TxPipeline()
	pipe.XAck(ctx, b.streamKey(msg.Queue), b.group, msg.ID)
	pipe.XDel(ctx, b.streamKey(msg.Queue), msg.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("nack ack-and-remove %s: %w", msg.ID, err)
	}

	encoded := encodeDelayed(msg.ID, msg.TaskName, msg.Payload)
	dueAt := time.Now().Add(delay)
	if err := b.client.ZAdd(ctx, b.delayedKey(msg.Queue), redis.Z{Score: float64(dueAt.UnixNano()), Member: encoded}).Err(); err != nil {
		return fmt.Errorf("schedule nacked message for redelivery: %w", err)
	}
	return nil
}

func (b *RedisBroker) deadLetter(ctx context.Context, msg Message) error {
	pipe := b.client.TxPipeline()
	pipe.XAck(ctx, b.streamKey(msg.Queue), b.group, msg.ID)
	pipe.XDel(ctx, b.streamKey(msg.Queue), msg.ID)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: b.dlqKey(msg.Queue),
		Values: map[string]any{"task_name": msg.TaskName, "payload": msg.Payload, "original_id": msg.ID},
	})
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("dead-letter message %s: %w", msg.ID, err)
	}
	b.logger.Warn("message exhausted retries, routed to dead-letter",
		zap.String("queue", msg.Queue), zap.String("task_name", msg.TaskName), zap.String("id", msg.ID))
	return nil
}

func (b *RedisBroker) DeadLetters(ctx context.Context, queue string, max int) ([]Message, error) {
	entries, err := b.client.XRange(ctx, b.dlqKey(queue), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("read dead letters for %s: %w", queue, err)
	}
	if max > 0 && len(entries) > max {
		entries = entries[:max]
	}
	out := make([]Message, 0, len(entries))
	for _, entry := range entries {
		out = append(out, Message{
			ID:       entry.ID,
			Queue:    queue,
			TaskName: str(entry.Values["task_name"]),
			Payload:  bytesOf(entry.Values["payload"]),
			Attempt:  MaxDeliveries + 1,
		})
	}
	return out, nil
}

func queueFromStreamKey(prefix, streamKey string) string {
	return streamKey[len(prefix+"stream:"):]
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func bytesOf(v any) []byte {
	switch t := v.(type) {
	case []byte:
		return t
	case string:
		return []byte(t)
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}

func encodeDelayed(id, taskName string, payload []byte) string {
	return id + "\x1f" + taskName + "\x1f" + string(payload)
}

func decodeDelayed(encoded string) (id, taskName string, payload []byte) {
	parts := splitN3(encoded, '\x1f')
	if len(parts) != 3 {
		return "", "", nil
	}
	return parts[0], parts[1], []byte(parts[2])
}

func splitN3(s string, sep byte) []string {
	var parts []string
	start := 0
	count := 0
	for i := 0; i < len(s) && count < 2; i++ {
		if s[i] == sep {
			parts = append(parts, s[start:i])
			start = i + 1
			count++
		}
	}
	parts = append(parts, s[start:])
	return parts
}
