// Package memory provides in-memory implementations of the repository
// interfaces with the same semantics as the Redis-backed ones. They back the
// test suite and redis-less demo runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis-developer/beats-by-redis/internal/domain/repository"
)

type pendingEntry struct {
	entry       repository.Entry
	consumer    string
	deliveredAt time.Time
	deliveries  int64
}

type group struct {
	cursor  int64 // last delivered sequence number
	pending map[string]*pendingEntry
}

// Log is an in-memory append log with consumer-group semantics: strictly
// increasing IDs, per-group cursors, per-entry pending bookkeeping with
// claim/ack, length-capped retention and a dead-letter side list.
type Log struct {
	mu     sync.Mutex
	notify chan struct{}

	seq     int64
	first   int64 // sequence number of entries[0]
	entries []repository.Entry
	maxLen  int64
	groups  map[string]*group
	dead    []repository.Entry
}

func NewLog(maxLen int64) *Log {
	return &Log{
		notify: make(chan struct{}),
		first:  1,
		maxLen: maxLen,
		groups: make(map[string]*group),
	}
}

var _ repository.EventLog = (*Log)(nil)

func (l *Log) Append(ctx context.Context, fields map[string]string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	entry := repository.Entry{ID: fmt.Sprintf("%d-0", l.seq), Fields: copied}
	l.entries = append(l.entries, entry)

	// Bounded retention: oldest entries fall off once the cap is exceeded,
	// even if some group never acknowledged them.
	if l.maxLen > 0 && int64(len(l.entries)) > l.maxLen {
		drop := int64(len(l.entries)) - l.maxLen
		l.entries = l.entries[drop:]
		l.first += drop
	}

	close(l.notify)
	l.notify = make(chan struct{})

	return entry.ID, nil
}

func (l *Log) CreateGroup(ctx context.Context, name, start string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.groups[name]; exists {
		return nil
	}
	g := &group{pending: make(map[string]*pendingEntry)}
	if start == "$" {
		g.cursor = l.seq
	}
	l.groups[name] = g
	return nil
}

func (l *Log) ReadGroup(ctx context.Context, groupName, consumer string, count int64, block time.Duration) ([]repository.Entry, error) {
	deadline := time.Now().Add(block)

	for {
		l.mu.Lock()
		g, ok := l.groups[groupName]
		if !ok {
			l.mu.Unlock()
			return nil, fmt.Errorf("consumer group %s does not exist", groupName)
		}
		batch := l.deliverLocked(g, consumer, count)
		notify := l.notify
		l.mu.Unlock()

		if len(batch) > 0 {
			return batch, nil
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-notify:
			timer.Stop()
		case <-timer.C:
			return nil, nil
		}
	}
}

func (l *Log) deliverLocked(g *group, consumer string, count int64) []repository.Entry {
	var batch []repository.Entry
	now := time.Now()
	for i := range l.entries {
		if int64(len(batch)) >= count {
			break
		}
		seq := l.first + int64(i)
		if seq <= g.cursor {
			continue
		}
		entry := l.entries[i]
		g.pending[entry.ID] = &pendingEntry{
			entry:       entry,
			consumer:    consumer,
			deliveredAt: now,
			deliveries:  1,
		}
		g.cursor = seq
		batch = append(batch, entry)
	}
	return batch
}

func (l *Log) Ack(ctx context.Context, groupName string, ids ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.groups[groupName]
	if !ok {
		return fmt.Errorf("consumer group %s does not exist", groupName)
	}
	for _, id := range ids {
		delete(g.pending, id) // idempotent
	}
	return nil
}

func (l *Log) Claim(ctx context.Context, groupName, consumer string, minIdle time.Duration, count int64) ([]repository.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.groups[groupName]
	if !ok {
		return nil, fmt.Errorf("consumer group %s does not exist", groupName)
	}

	now := time.Now()
	var claimed []repository.Entry
	for _, p := range g.pending {
		if int64(len(claimed)) >= count {
			break
		}
		if now.Sub(p.deliveredAt) < minIdle {
			continue
		}
		p.consumer = consumer
		p.deliveredAt = now
		p.deliveries++
		claimed = append(claimed, p.entry)
	}
	return claimed, nil
}

func (l *Log) Pending(ctx context.Context, groupName string, count int64) ([]repository.PendingInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.groups[groupName]
	if !ok {
		return nil, fmt.Errorf("consumer group %s does not exist", groupName)
	}

	now := time.Now()
	var infos []repository.PendingInfo
	for id, p := range g.pending {
		if int64(len(infos)) >= count {
			break
		}
		infos = append(infos, repository.PendingInfo{
			ID:         id,
			Consumer:   p.consumer,
			Idle:       now.Sub(p.deliveredAt),
			Deliveries: p.deliveries,
		})
	}
	return infos, nil
}

func (l *Log) DeadLetter(ctx context.Context, entry repository.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dead = append(l.dead, entry)
	return nil
}

// DeadLetters returns the dead-lettered entries. Test helper.
func (l *Log) DeadLetters() []repository.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]repository.Entry(nil), l.dead...)
}

func (l *Log) Len(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.entries)), nil
}
