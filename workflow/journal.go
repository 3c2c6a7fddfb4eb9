package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/divs-identity/divs-agent/interfaces"
)

// Journal remembers, per request, the requester payload whose pointer write
// was confirmed on-chain. A retried approval that finds an entry matching the
// on-chain pointer only has to submit the status change.
type Journal interface {
	Record(ctx context.Context, id interfaces.RequestID, cid interfaces.ContentID) error
	// Lookup returns the zero ContentID when nothing is recorded.
	Lookup(ctx context.Context, id interfaces.RequestID) (interfaces.ContentID, error)
	Clear(ctx context.Context, id interfaces.RequestID) error
}

type MemoryJournal struct {
	mu      sync.RWMutex
	entries map[interfaces.RequestID]interfaces.ContentID
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{entries: make(map[interfaces.RequestID]interfaces.ContentID)}
}

func (j *MemoryJournal) Record(ctx context.Context, id interfaces.RequestID, cid interfaces.ContentID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[id] = cid
	return nil
}

func (j *MemoryJournal) Lookup(ctx context.Context, id interfaces.RequestID) (interfaces.ContentID, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.entries[id], nil
}

func (j *MemoryJournal) Clear(ctx context.Context, id interfaces.RequestID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.entries, id)
	return nil
}

const (
	journalKeyPrefix = "divs:journal:"

	// DefaultJournalTTL keeps entries long enough for an operator to retry.
	DefaultJournalTTL = 7 * 24 * time.Hour
)

// RedisJournal is a Journal shared between agent instances.
type RedisJournal struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisJournal(client *redis.Client, ttl time.Duration) *RedisJournal {
	if ttl <= 0 {
		ttl = DefaultJournalTTL
	}
	return &RedisJournal{client: client, ttl: ttl}
}

func (j *RedisJournal) Record(ctx context.Context, id interfaces.RequestID, cid interfaces.ContentID) error {
	if err := j.client.Set(ctx, journalKeyPrefix+id.String(), cid.String(), j.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record approval journal: %w", err)
	}
	return nil
}

func (j *RedisJournal) Lookup(ctx context.Context, id interfaces.RequestID) (interfaces.ContentID, error) {
	value, err := j.client.Get(ctx, journalKeyPrefix+id.String()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read approval journal: %w", err)
	}
	return interfaces.ContentID(value), nil
}

func (j *RedisJournal) Clear(ctx context.Context, id interfaces.RequestID) error {
	return j.client.Del(ctx, journalKeyPrefix+id.String()).Err()
}

// NewRedisClient connects to url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
