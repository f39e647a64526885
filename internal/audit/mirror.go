package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultMirrorList is the Redis list records are pushed onto.
const DefaultMirrorList = "axiom:audit"

// Mirror receives a copy of every signed record. Failures are reported in
// Entry.MirrorErr and never abort SignAndLog.
type Mirror interface {
	Publish(ctx context.Context, r Record) error
}

// RedisMirrorConfig holds Redis connection parameters.
type RedisMirrorConfig struct {
	Address  string
	Password string
	DB       int
	List     string
}

// RedisMirror LPUSHes record JSON onto a Redis list so that external
// consumers can replay the audit stream.
type RedisMirror struct {
	client *redis.Client
	list   string
}

// NewRedisMirror connects to Redis and checks the connection.
func NewRedisMirror(ctx context.Context, cfg RedisMirrorConfig) (*RedisMirror, error) {
	if cfg.Address == "" {
		return nil, errors.New("audit: redis address is empty")
	}
	list := cfg.List
	if list == "" {
		list = DefaultMirrorList
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("audit: connect redis: %w", err)
	}
	return &RedisMirror{client: client, list: list}, nil
}

// Publish pushes r onto the mirror list.
func (m *RedisMirror) Publish(ctx context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := m.client.LPush(ctx, m.list, data).Err(); err != nil {
		return fmt.Errorf("redis lpush %s: %w", m.list, err)
	}
	return nil
}

// Close releases the Redis connection.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
