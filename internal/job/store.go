package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for unknown job IDs.
var ErrNotFound = errors.New("job not found")

// Store persists job status records.
type Store interface {
	Put(ctx context.Context, j Job) error
	Get(ctx context.Context, id string) (Job, error)
}

// MemoryStore keeps records in process, evicting the oldest once full.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[string]Job
	order []string
	limit int
}

// NewMemoryStore keeps at most limit jobs; limit <= 0 means 1000.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryStore{jobs: make(map[string]Job), limit: limit}
}

func (s *MemoryStore) Put(_ context.Context, j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		s.order = append(s.order, j.ID)
		if len(s.order) > s.limit {
			delete(s.jobs, s.order[0])
			s.order = s.order[1:]
		}
	}
	s.jobs[j.ID] = j
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j, nil
}

const DefaultKeyPrefix = "prospector:job:"

// RedisStore stores job records in Redis with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects using a redis:// URL.
func NewRedisStore(redisURL, prefix string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("job store: invalid redis URL: %w", err)
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: redis.NewClient(opts), prefix: prefix, ttl: ttl}, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Put(ctx context.Context, j Job) error {
	payload, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+j.ID, payload, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (Job, error) {
	val, err := s.client.Get(ctx, s.prefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Job{}, err
	}

	var j Job
	if err := json.Unmarshal([]byte(val), &j); err != nil {
		return Job{}, err
	}
	return j, nil
}
