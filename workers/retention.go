package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"dealfinder/jobs"
)

// RetentionWorker evicts finished jobs and their results once they are
// older than the retention window. Processing jobs are never evicted.
type RetentionWorker struct {
	store     jobs.Store
	retention time.Duration
	now       func() time.Time
	triggerCh chan struct{}
	logFunc   LogFunc
}

// NewRetentionWorker creates a new retention worker
func NewRetentionWorker(store jobs.Store, retention time.Duration) *RetentionWorker {
	return &RetentionWorker{
		store:     store,
		retention: retention,
		now:       time.Now,
		triggerCh: make(chan struct{}, 1),
		logFunc:   NoOpLogger,
	}
}

func (w *RetentionWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to sweep immediately
func (w *RetentionWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run sweeps on every tick and on every trigger until ctx is done. A zero
// interval disables the ticker and only triggers cause a sweep.
func (w *RetentionWorker) Run(ctx context.Context, interval time.Duration) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Retention worker stopping")
			return
		case <-tick:
			w.Sweep(ctx)
		case <-w.triggerCh:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one eviction pass and returns the number of jobs removed
func (w *RetentionWorker) Sweep(ctx context.Context) int {
	cutoff := w.now().Add(-w.retention)
	n, err := w.store.Sweep(ctx, cutoff)
	if err != nil {
		log.Printf("Retention: sweep error: %v", err)
		return 0
	}
	if n > 0 {
		msg := fmt.Sprintf("evicted %d jobs finished before %s", n, cutoff.Format(time.RFC3339))
		log.Printf("Retention: %s", msg)
		w.logFunc("retention", msg)
	}
	return n
}
