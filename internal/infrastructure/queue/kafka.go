// Package queue provides a Kafka-backed implementation of the append log,
// for deployments that already run Kafka instead of Redis Streams.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/redis-developer/beats-by-redis/internal/domain/repository"
)

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	DeadTopic    string
	Group        string
	BatchTimeout time.Duration
}

// KafkaLog implements the EventLog interface on a Kafka topic. Auto-commit is
// disabled: an entry counts as acknowledged only when its offset is committed,
// which keeps the delivery-then-ack contract. Unlike the Redis backend, Kafka
// has no cross-consumer claim primitive, so Claim and Pending report nothing;
// redelivery of unacknowledged entries happens through uncommitted offsets
// when a consumer restarts.
type KafkaLog struct {
	writer     *kafka.Writer
	deadWriter *kafka.Writer
	reader     *kafka.Reader

	pendingMu sync.Mutex
	pending   map[string]kafka.Message // entry ID -> fetched message awaiting commit
}

func NewKafkaLog(cfg KafkaConfig) *KafkaLog {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: cfg.BatchTimeout,
	}
	deadWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.DeadTopic,
		RequiredAcks: kafka.RequireAll,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.Group,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // explicit commits only
		StartOffset:    kafka.FirstOffset,
	})

	return &KafkaLog{
		writer:     writer,
		deadWriter: deadWriter,
		reader:     reader,
		pending:    make(map[string]kafka.Message),
	}
}

var _ repository.EventLog = (*KafkaLog)(nil)

// Append publishes one entry. Kafka assigns the canonical partition/offset
// identity only at fetch time, so Append returns the message key instead;
// consumers see the partition-offset form.
func (l *KafkaLog) Append(ctx context.Context, fields map[string]string) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entry: %w", err)
	}

	key := uuid.New().String()
	err = l.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish entry: %w", err)
	}
	return key, nil
}

// CreateGroup is a no-op: the reader's GroupID establishes the group on first
// fetch, and joining an existing group is not an error.
func (l *KafkaLog) CreateGroup(ctx context.Context, group, start string) error {
	return nil
}

func (l *KafkaLog) ReadGroup(ctx context.Context, group, consumer string, count int64, block time.Duration) ([]repository.Entry, error) {
	deadline := time.Now().Add(block)
	var entries []repository.Entry

	for int64(len(entries)) < count {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		fetchCtx, cancel := context.WithTimeout(ctx, remaining)
		msg, err := l.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return entries, ctx.Err()
			}
			break // block window elapsed
		}

		var fields map[string]string
		if err := json.Unmarshal(msg.Value, &fields); err != nil {
			// Commit malformed messages so the group doesn't wedge on them.
			_ = l.reader.CommitMessages(ctx, msg)
			continue
		}

		id := fmt.Sprintf("%d-%d", msg.Partition, msg.Offset)
		l.pendingMu.Lock()
		l.pending[id] = msg
		l.pendingMu.Unlock()

		entries = append(entries, repository.Entry{ID: id, Fields: fields})
	}
	return entries, nil
}

func (l *KafkaLog) Ack(ctx context.Context, group string, ids ...string) error {
	l.pendingMu.Lock()
	msgs := make([]kafka.Message, 0, len(ids))
	for _, id := range ids {
		if msg, ok := l.pending[id]; ok {
			msgs = append(msgs, msg)
			delete(l.pending, id)
		}
	}
	l.pendingMu.Unlock()

	if len(msgs) == 0 {
		return nil // unknown or already-acked IDs are not an error
	}
	if err := l.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to commit %d messages: %w", len(msgs), err)
	}
	return nil
}

// Claim has no Kafka equivalent; see the type comment.
func (l *KafkaLog) Claim(ctx context.Context, group, consumer string, minIdle time.Duration, count int64) ([]repository.Entry, error) {
	return nil, nil
}

// Pending reports nothing; Kafka tracks a group cursor, not per-entry claims.
func (l *KafkaLog) Pending(ctx context.Context, group string, count int64) ([]repository.PendingInfo, error) {
	return nil, nil
}

func (l *KafkaLog) DeadLetter(ctx context.Context, entry repository.Entry) error {
	data, err := json.Marshal(entry.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal dead-letter entry: %w", err)
	}
	err = l.deadWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.ID),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to dead-letter entry %s: %w", entry.ID, err)
	}
	return nil
}

// Len is not cheaply answerable for a Kafka topic; callers that size
// retention use the Redis backend.
func (l *KafkaLog) Len(ctx context.Context) (int64, error) {
	return 0, nil
}

// Close shuts down the underlying writers and reader.
func (l *KafkaLog) Close() error {
	if err := l.writer.Close(); err != nil {
		return err
	}
	if err := l.deadWriter.Close(); err != nil {
		return err
	}
	return l.reader.Close()
}
