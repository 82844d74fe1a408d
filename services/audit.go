package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"dealfinder/models"
)

// Recorder writes one fetch record per job. It never fails the job: store
// errors are logged and swallowed.
type Recorder struct {
	store Store
	now   func() time.Time
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Handle identifies an open fetch record. Persisted is false when the
// record could not be written, in which case Close does nothing.
type Handle struct {
	ID        string
	Persisted bool
	record    models.FetchRecord
}

// Outcome is what a finished job reports to its fetch record
type Outcome struct {
	Failed           bool
	Error            string
	UsedCacheOnly    bool
	CacheHits        int
	ProviderCalls    int
	Fetched          int
	Analyzed         int
	TotalFound       int
	Saved            int
	ThresholdUsed    int
	ThresholdLowered bool
	Usage            models.Usage
}

func (r *Recorder) Open(ctx context.Context, jobID string, req models.SearchRequest) Handle {
	h := Handle{
		ID: uuid.NewString(),
		record: models.FetchRecord{
			JobID:         jobID,
			Source:        req.Source,
			Request:       req,
			Neighborhood:  req.Neighborhood,
			PropertyType:  req.PropertyType,
			Status:        models.FetchStatusProcessing,
			ThresholdUsed: req.UndervaluationThreshold,
		},
	}
	h.record.ID = h.ID
	if r == nil || r.store == nil {
		return h
	}
	h.record.StartedAt = r.now()

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := r.store.CreateFetchRecord(ctx, &h.record); err != nil {
		log.Printf("Warning: failed to create fetch record for %s: %v", jobID, err)
		return h
	}
	h.ID = h.record.ID
	h.Persisted = true
	return h
}

func (r *Recorder) Close(ctx context.Context, h Handle, o Outcome) {
	if r == nil || r.store == nil || !h.Persisted {
		return
	}
	rec := h.record
	now := r.now()
	rec.CompletedAt = &now
	rec.ProcessingDurationMS = now.Sub(rec.StartedAt).Milliseconds()
	rec.Status = models.FetchStatusCompleted
	if o.Failed {
		rec.Status = models.FetchStatusFailed
		rec.ErrorMessage = o.Error
	}
	rec.UsedCacheOnly = o.UsedCacheOnly
	rec.CacheHits = o.CacheHits
	rec.CachePropertiesReturned = o.CacheHits
	rec.ProviderCalls = o.ProviderCalls
	rec.PropertiesFetched = o.Fetched
	rec.PropertiesAnalyzed = o.Analyzed
	rec.TotalPropertiesFound = o.TotalFound
	rec.QualifyingSaved = o.Saved
	if o.ThresholdUsed > 0 {
		rec.ThresholdUsed = o.ThresholdUsed
	}
	rec.ThresholdLowered = o.ThresholdLowered
	rec.QualifierCalls = o.Usage.Calls
	rec.QualifierTokens = o.Usage.Tokens
	rec.QualifierCostUSD = o.Usage.CostUSD

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := r.store.UpdateFetchRecord(ctx, &rec); err != nil {
		log.Printf("Warning: failed to update fetch record %s: %v", h.ID, err)
	}
}
