package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"dealfinder/models"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour), mr, client
}

func TestNewRedisClient_Pings(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	client.Close()

	if _, err := NewRedisClient(context.Background(), "not a url"); err == nil {
		t.Fatal("expected error for a bad url")
	}
}

func TestRedisStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s, mr, _ := newRedisStore(t)
	now := time.Now()

	if err := s.Create(ctx, newJob("a", now)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.Create(ctx, newJob("a", now)); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	job, err := s.Update(ctx, "a", func(j *models.Job) { j.SetProgress(40, "fetching", now) })
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if job.Progress != 40 || job.Message != "fetching" {
		t.Fatalf("unexpected job after update %+v", job)
	}

	job, _ = s.Update(ctx, "a", func(j *models.Job) { j.Progress = 10 })
	if job.Progress != 40 {
		t.Fatalf("progress regressed to %d", job.Progress)
	}
	if ttl := mr.TTL(jobKey("a")); ttl != 0 {
		t.Fatalf("processing job should not expire, ttl %s", ttl)
	}
	if n, _ := s.Active(ctx); n != 1 {
		t.Fatalf("expected 1 active job, got %d", n)
	}

	if err := s.SaveResult(ctx, "a", &models.Payload{JobID: "a", Source: models.ResultCacheOnly}); err != nil {
		t.Fatalf("save result failed: %v", err)
	}
	if _, err := s.Update(ctx, "a", func(j *models.Job) { j.Complete("done", now) }); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if ttl := mr.TTL(jobKey("a")); ttl != time.Hour {
		t.Fatalf("terminal job ttl = %s, want 1h", ttl)
	}

	if _, err := s.Update(ctx, "a", func(j *models.Job) { j.Fail("late", now) }); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != models.JobStatusCompleted || got.Error != "" || got.Progress != 100 {
		t.Fatalf("terminal job was mutated: %+v", got)
	}
	if n, _ := s.Active(ctx); n != 0 {
		t.Fatalf("expected no active jobs, got %d", n)
	}

	payload, err := s.Result(ctx, "a")
	if err != nil {
		t.Fatalf("result failed: %v", err)
	}
	if payload.JobID != "a" || payload.Source != models.ResultCacheOnly {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestRedisStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newRedisStore(t)

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Result(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for result, got %v", err)
	}
	if _, err := s.Update(ctx, "missing", func(j *models.Job) {}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestRedisStore_TerminalJobsExpire(t *testing.T) {
	ctx := context.Background()
	s, mr, _ := newRedisStore(t)
	now := time.Now()

	s.Create(ctx, newJob("done", now))
	s.SaveResult(ctx, "done", &models.Payload{JobID: "done"})
	s.Update(ctx, "done", func(j *models.Job) { j.Complete("done", now) })

	s.Create(ctx, newJob("running", now))

	mr.FastForward(time.Hour + time.Second)

	if _, err := s.Get(ctx, "done"); !errors.Is(err, ErrNotFound) {
		t.Fatal("terminal job should expire after the retention window")
	}
	if _, err := s.Result(ctx, "done"); !errors.Is(err, ErrNotFound) {
		t.Fatal("result should expire with its job")
	}
	if _, err := s.Get(ctx, "running"); err != nil {
		t.Fatalf("processing jobs must never expire: %v", err)
	}

	s.Create(ctx, newJob("late", now))
	s.Update(ctx, "late", func(j *models.Job) { j.Complete("done", now) })
	if _, err := s.Get(ctx, "late"); err != nil {
		t.Fatal("recent terminal job should survive")
	}
}

func TestRedisStore_SweepPrunesVanishedActiveJobs(t *testing.T) {
	ctx := context.Background()
	s, mr, _ := newRedisStore(t)
	now := time.Now()

	s.Create(ctx, newJob("kept", now))
	s.Create(ctx, newJob("gone", now))
	mr.Del(jobKey("gone"))

	n, err := s.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned id, got %d", n)
	}
	if active, _ := s.Active(ctx); active != 1 {
		t.Fatalf("expected 1 active job, got %d", active)
	}
	if ok, _ := mr.IsMember(activeSetKey, "kept"); !ok {
		t.Fatal("live job should stay in the active set")
	}
}

func TestRedisStore_UpdateRetriesOnConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	s, _, client := newRedisStore(t)
	now := time.Now()
	s.Create(ctx, newJob("a", now))

	calls := 0
	job, err := s.Update(ctx, "a", func(j *models.Job) {
		calls++
		if calls == 1 {
			// another instance writes the job between WATCH and EXEC
			other := *j
			other.Message = "from elsewhere"
			data, _ := json.Marshal(other)
			client.Set(ctx, jobKey("a"), data, redis.KeepTTL)
		}
		j.SetProgress(50, "", now)
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected the transaction to retry once, fn ran %d times", calls)
	}
	if job.Progress != 50 || job.Message != "from elsewhere" {
		t.Fatalf("update should apply on top of the concurrent write, got %+v", job)
	}

	got, _ := s.Get(ctx, "a")
	if got.Progress != 50 || got.Message != "from elsewhere" {
		t.Fatalf("stored job = %+v", got)
	}
}
