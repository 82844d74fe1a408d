package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealfinder/models"
)

var (
	ErrNotFound = errors.New("job not found")
	ErrTerminal = errors.New("job already finished")
	ErrExists   = errors.New("job already exists")
)

// Store is the job registry. Each job is written by the goroutine that
// drives it; implementations must still be safe for concurrent use
// across different ids.
type Store interface {
	Create(ctx context.Context, job models.Job) error
	Get(ctx context.Context, id string) (models.Job, error)
	// Update applies fn to a processing job. Terminal jobs are rejected
	// with ErrTerminal and progress never moves backwards.
	Update(ctx context.Context, id string, fn func(*models.Job)) (models.Job, error)
	SaveResult(ctx context.Context, id string, payload *models.Payload) error
	Result(ctx context.Context, id string) (*models.Payload, error)
	// Sweep evicts terminal jobs last updated before cutoff
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	Active(ctx context.Context) (int, error)
}

// NewID returns smart_<unix millis>_<9 random chars>
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("smart_%d_%s", now.UnixMilli(), suffix)
}

// applyUpdate runs fn against a copy of job and enforces the lifecycle
// rules shared by every backend.
func applyUpdate(job models.Job, fn func(*models.Job)) (models.Job, error) {
	if job.IsTerminal() {
		return job, ErrTerminal
	}
	next := job
	fn(&next)
	next.ID = job.ID
	if next.Progress < job.Progress {
		next.Progress = job.Progress
	}
	if next.Status == "" {
		next.Status = job.Status
	}
	return next, nil
}
