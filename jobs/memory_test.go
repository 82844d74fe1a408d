package jobs

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"dealfinder/models"
)

func newJob(id string, now time.Time) models.Job {
	return models.NewJob(id, models.SearchRequest{Neighborhood: "soho", UndervaluationThreshold: 15, Source: models.SourceSmartSearch}, now)
}

func TestNewID_Format(t *testing.T) {
	now := time.UnixMilli(1753463034172)
	id := NewID(now)

	if !regexp.MustCompile(`^smart_1753463034172_[0-9a-f]{9}$`).MatchString(id) {
		t.Fatalf("unexpected id format %s", id)
	}
	if NewID(now) == id {
		t.Fatal("ids should not repeat")
	}
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
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
	if job.Progress != 40 {
		t.Fatalf("expected progress 40, got %d", job.Progress)
	}

	// progress can never move backwards, even if a mutator tries
	job, _ = s.Update(ctx, "a", func(j *models.Job) { j.Progress = 10 })
	if job.Progress != 40 {
		t.Fatalf("progress regressed to %d", job.Progress)
	}

	if n, _ := s.Active(ctx); n != 1 {
		t.Fatalf("expected 1 active job, got %d", n)
	}

	if _, err := s.Update(ctx, "a", func(j *models.Job) { j.Complete("done", now) }); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if _, err := s.Update(ctx, "a", func(j *models.Job) { j.Fail("late", now) }); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	got, _ := s.Get(ctx, "a")
	if got.Status != models.JobStatusCompleted || got.Error != "" {
		t.Fatalf("terminal job was mutated: %+v", got)
	}
	if n, _ := s.Active(ctx); n != 0 {
		t.Fatalf("expected no active jobs, got %d", n)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Result(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for result, got %v", err)
	}
	if err := s.SaveResult(ctx, "missing", &models.Payload{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound saving result, got %v", err)
	}
}

func TestMemoryStore_SweepEvictsOnlyOldTerminalJobs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now()

	s.Create(ctx, newJob("old-done", old))
	s.Update(ctx, "old-done", func(j *models.Job) { j.Complete("done", old) })
	s.SaveResult(ctx, "old-done", &models.Payload{JobID: "old-done"})

	s.Create(ctx, newJob("old-running", old))

	s.Create(ctx, newJob("new-done", recent))
	s.Update(ctx, "new-done", func(j *models.Job) { j.Complete("done", recent) })

	n, err := s.Sweep(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := s.Get(ctx, "old-done"); !errors.Is(err, ErrNotFound) {
		t.Fatal("old terminal job should be gone")
	}
	if _, err := s.Result(ctx, "old-done"); !errors.Is(err, ErrNotFound) {
		t.Fatal("result should be evicted with its job")
	}
	if _, err := s.Get(ctx, "old-running"); err != nil {
		t.Fatal("processing jobs must never be evicted")
	}
	if _, err := s.Get(ctx, "new-done"); err != nil {
		t.Fatal("recent job should survive")
	}
}

func TestMemoryStore_ConcurrentJobs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("job-%d", i)
			s.Create(ctx, newJob(id, now))
			for p := 10; p <= 90; p += 10 {
				s.Update(ctx, id, func(j *models.Job) { j.SetProgress(p, "", now) })
			}
			s.Update(ctx, id, func(j *models.Job) { j.Complete("done", now) })
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		job, err := s.Get(ctx, fmt.Sprintf("job-%d", i))
		if err != nil {
			t.Fatalf("job %d missing: %v", i, err)
		}
		if job.Status != models.JobStatusCompleted || job.Progress != 100 {
			t.Fatalf("job %d ended as %s/%d", i, job.Status, job.Progress)
		}
	}
}
