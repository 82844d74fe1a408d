package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"dealfinder/jobs"
	"dealfinder/models"
)

func seed(t *testing.T, store jobs.Store, id string, at time.Time, finish bool) {
	t.Helper()
	ctx := context.Background()
	if err := store.Create(ctx, models.NewJob(id, models.SearchRequest{Neighborhood: "soho"}, at)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if finish {
		if _, err := store.Update(ctx, id, func(j *models.Job) { j.Complete("done", at) }); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
}

func TestRetentionWorker_Sweep(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := jobs.NewMemoryStore()
	seed(t, store, "old-done", now.Add(-2*time.Hour), true)
	seed(t, store, "old-running", now.Add(-2*time.Hour), false)
	seed(t, store, "new-done", now.Add(-time.Minute), true)

	w := NewRetentionWorker(store, time.Hour)
	w.now = func() time.Time { return now }

	var lines []string
	w.SetLogger(func(source, message string) { lines = append(lines, message) })

	if n := w.Sweep(context.Background()); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if _, err := store.Get(context.Background(), "old-done"); err != jobs.ErrNotFound {
		t.Errorf("old-done should be gone, got %v", err)
	}
	for _, id := range []string{"old-running", "new-done"} {
		if _, err := store.Get(context.Background(), id); err != nil {
			t.Errorf("%s should survive: %v", id, err)
		}
	}
	if len(lines) != 1 {
		t.Errorf("log lines = %v", lines)
	}
}

func TestRetentionWorker_TriggerRunsSweep(t *testing.T) {
	store := jobs.NewMemoryStore()
	seed(t, store, "old-done", time.Now().Add(-2*time.Hour), true)

	w := NewRetentionWorker(store, time.Hour)
	var mu sync.Mutex
	done := make(chan struct{})
	w.SetLogger(func(source, message string) {
		mu.Lock()
		defer mu.Unlock()
		select {
		case <-done:
		default:
			close(done)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, 0)
	w.Trigger()
	w.Trigger()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("trigger did not cause a sweep")
	}
}
