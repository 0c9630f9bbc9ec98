package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/timetable"
)

const (
	layoutKeyPrefix = "wiiks:layout:"      // wiiks:layout:{owner}:{group}:{policy}:{row}:{active}
	groupIndexKey   = "wiiks:layout-keys:" // set of layout keys per group
	DefaultTTL      = 10 * time.Minute
)

// LayoutKey identifies one computed week layout.
type LayoutKey struct {
	OwnerID         string
	GroupID         string
	Policy          timetable.Policy
	RowHeightPx     float64
	ActiveHoursOnly bool
}

func (k LayoutKey) String() string {
	return layoutKeyPrefix + k.OwnerID + ":" + k.GroupID + ":" + string(k.Policy) + ":" +
		strconv.FormatFloat(k.RowHeightPx, 'f', -1, 64) + ":" + strconv.FormatBool(k.ActiveHoursOnly)
}

func groupIndex(ownerID, groupID string) string {
	return groupIndexKey + ownerID + ":" + groupID
}

// LayoutStore caches encoded timetables and can drop every entry of a group.
// Payloads are opaque to the store.
type LayoutStore interface {
	Invalidator
	Get(ctx context.Context, key LayoutKey) ([]byte, error)
	Set(ctx context.Context, key LayoutKey, payload []byte) error
}

// ErrMiss is returned by Get when nothing is cached under the key.
var ErrMiss = errors.New("layout not cached")

// NoopLayoutStore never caches anything.
type NoopLayoutStore struct{ NoopInvalidator }

func (NoopLayoutStore) Get(context.Context, LayoutKey) ([]byte, error) {
	return nil, ErrMiss
}

func (NoopLayoutStore) Set(context.Context, LayoutKey, []byte) error { return nil }

// RedisLayoutStore keeps encoded timetables in Redis. Each group keeps a
// set of its layout keys so invalidation does not need SCAN.
type RedisLayoutStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLayoutStore(client *redis.Client, ttl time.Duration) *RedisLayoutStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLayoutStore{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (s *RedisLayoutStore) Get(ctx context.Context, key LayoutKey) ([]byte, error) {
	data, err := s.client.Get(ctx, key.String()).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get layout: %w", err)
	}
	return data, nil
}

func (s *RedisLayoutStore) Set(ctx context.Context, key LayoutKey, data []byte) error {
	index := groupIndex(key.OwnerID, key.GroupID)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key.String(), data, s.ttl)
	pipe.SAdd(ctx, index, key.String())
	pipe.Expire(ctx, index, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store layout: %w", err)
	}
	return nil
}

func (s *RedisLayoutStore) InvalidateGroup(ctx context.Context, ownerID, groupID string) error {
	index := groupIndex(ownerID, groupID)
	keys, err := s.client.SMembers(ctx, index).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("list cached layouts: %w", err)
	}
	keys = append(keys, index)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("drop cached layouts: %w", err)
	}
	return nil
}
