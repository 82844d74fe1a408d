package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dealfinder/models"
)

const (
	jobKeyPrefix    = "dealfinder:job:"
	resultKeyPrefix = "dealfinder:result:"
	activeSetKey    = "dealfinder:jobs:active"
	maxTxRetries    = 5
)

// RedisStore shares jobs between instances. Job keys get a TTL of the
// retention window once they reach a terminal state, so Redis does the
// eviction and processing jobs are never dropped.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = time.Hour
	}
	return &RedisStore{client: client, retention: retention}
}

func jobKey(id string) string    { return jobKeyPrefix + id }
func resultKey(id string) string { return resultKeyPrefix + id }

func (s *RedisStore) Create(ctx context.Context, job models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, jobKey(job.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	if !ok {
		return ErrExists
	}
	return s.client.SAdd(ctx, activeSetKey, job.ID).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (models.Job, error) {
	return s.get(ctx, s.client, id)
}

// getter is satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c getter, id string) (models.Job, error) {
	data, err := c.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Job{}, ErrNotFound
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("get job %s: %w", id, err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return models.Job{}, fmt.Errorf("decode job %s: %w", id, err)
	}
	return job, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(*models.Job)) (models.Job, error) {
	var updated models.Job

	txf := func(tx *redis.Tx) error {
		job, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := applyUpdate(job, fn)
		if err != nil {
			updated = job
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, jobKey(id), data, redis.KeepTTL)
			if next.IsTerminal() {
				pipe.Expire(ctx, jobKey(id), s.retention)
				pipe.SRem(ctx, activeSetKey, id)
			}
			return nil
		})
		if err == nil {
			updated = next
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, jobKey(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return updated, err
	}
	return updated, fmt.Errorf("update job %s: too much contention", id)
}

func (s *RedisStore) SaveResult(ctx context.Context, id string, payload *models.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, resultKey(id), data, s.retention).Err(); err != nil {
		return fmt.Errorf("save result %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Result(ctx context.Context, id string) (*models.Payload, error) {
	data, err := s.client.Get(ctx, resultKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result %s: %w", id, err)
	}

	var payload models.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", id, err)
	}
	return &payload, nil
}

// Sweep drops active-set members whose job key no longer exists. Job keys
// themselves expire on their own.
func (s *RedisStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.client.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, id := range ids {
		n, err := s.client.Exists(ctx, jobKey(id)).Result()
		if err != nil {
			return pruned, err
		}
		if n == 0 {
			if err := s.client.SRem(ctx, activeSetKey, id).Err(); err != nil {
				return pruned, fmt.Errorf("prune job %s: %w", id, err)
			}
			pruned++
		}
	}
	return pruned, nil
}

func (s *RedisStore) Active(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, activeSetKey).Result()
	return int(n), err
}
