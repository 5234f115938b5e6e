// Package idgen issues the human-readable identifiers used across the blood
// bank: a two-letter prefix, the UTC date as YYMMDD and a zero-padded daily
// sequence, e.g. BU2303010007. The domain core never generates identifiers
// itself; API handlers call a Generator and pass the result in.
package idgen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Prefix string

const (
	Donor       Prefix = "DN"
	BloodUnit   Prefix = "BU"
	Recipient   Prefix = "RC"
	Request     Prefix = "BR"
	Transfusion Prefix = "TX"
)

// Sequencer hands out monotonically increasing numbers per key.
type Sequencer interface {
	Next(ctx context.Context, key string) (int64, error)
}

type Generator struct {
	seq   Sequencer
	now   func() time.Time
	width int
}

func New(seq Sequencer) *Generator {
	return &Generator{seq: seq, now: time.Now, width: 4}
}

// Next returns the next identifier for prefix on today's date.
func (g *Generator) Next(ctx context.Context, p Prefix) (string, error) {
	day := g.now().UTC().Format("060102")
	n, err := g.seq.Next(ctx, fmt.Sprintf("idgen:%s:%s", p, day))
	if err != nil {
		return "", fmt.Errorf("next %s sequence: %w", p, err)
	}
	return fmt.Sprintf("%s%s%0*d", p, day, g.width, n), nil
}

// RedisSequencer keeps counters in Redis so several API instances share them.
type RedisSequencer struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisSequencer(client redis.Cmdable) *RedisSequencer {
	// A day's counter is never read again after the day rolls over.
	return &RedisSequencer{client: client, ttl: 48 * time.Hour}
}

func (s *RedisSequencer) Next(ctx context.Context, key string) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// MemorySequencer is a process-local Sequencer for development and tests.
type MemorySequencer struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{counters: make(map[string]int64)}
}

func (s *MemorySequencer) Next(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}

// Connect opens a Redis client from a redis:// URL and verifies it answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
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
