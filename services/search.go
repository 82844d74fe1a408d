package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"dealfinder/config"
	"dealfinder/jobs"
	"dealfinder/models"
)

// SearchService accepts search requests and drives each one to completion
// on its own goroutine.
type SearchService struct {
	jobs      jobs.Store
	store     Store
	cache     *CacheLookup
	fallback  *FallbackEngine
	recorder  *Recorder
	formatter *Formatter
	cfg       config.SearchConfig
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewSearchService creates a new SearchService. store may be nil, in which
// case every search misses the cache and nothing is persisted.
func NewSearchService(jobStore jobs.Store, store Store, provider ListingProvider, qualifier Qualifier, cfg config.SearchConfig, providerTimeout time.Duration) *SearchService {
	return &SearchService{
		jobs:      jobStore,
		store:     store,
		cache:     NewCacheLookup(store, cfg.CacheMaxAge()),
		fallback:  NewFallbackEngine(provider, qualifier, store, cfg.RelaxationSteps, cfg.ProviderPageCap, providerTimeout, cfg.Boroughs),
		recorder:  NewRecorder(store),
		formatter: NewFormatter(cfg.ExcerptLen),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Submit validates req, registers a processing job and starts it. The
// returned id is valid immediately.
func (s *SearchService) Submit(ctx context.Context, req models.SearchRequest) (string, error) {
	return s.start(ctx, req, s.cfg.MaxResultsCap)
}

// Trigger runs the same search with the tighter result cap used by
// scheduled callers.
func (s *SearchService) Trigger(ctx context.Context, req models.SearchRequest) (string, error) {
	req.Source = models.SourceTrigger
	return s.start(ctx, req, s.cfg.TriggerMaxResultsCap)
}

func (s *SearchService) start(ctx context.Context, req models.SearchRequest, maxCap int) (string, error) {
	req.Normalize(s.cfg.DefaultThreshold, maxCap)
	if err := req.Validate(); err != nil {
		return "", err
	}

	now := s.now()
	job := models.NewJob(jobs.NewID(now), req, now)
	if err := s.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	log.Printf("[%s] Search started: %s %s, threshold %d%%, max %d",
		job.ID, req.Neighborhood, req.PropertyType, req.UndervaluationThreshold, req.MaxResults)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(context.Background(), job.ID, req)
	}()
	return job.ID, nil
}

func (s *SearchService) Status(ctx context.Context, id string) (models.Job, error) {
	return s.jobs.Get(ctx, id)
}

// Result returns the payload of a completed job, or jobs.ErrNotFound while
// the job is still running or after it has been evicted.
func (s *SearchService) Result(ctx context.Context, id string) (*models.Payload, error) {
	return s.jobs.Result(ctx, id)
}

func (s *SearchService) Active(ctx context.Context) (int, error) {
	return s.jobs.Active(ctx)
}

// CacheStats aggregates fetch records. Stores without stats support report
// zeros.
func (s *SearchService) CacheStats(ctx context.Context) (models.CacheStats, error) {
	stats, ok := s.store.(StatsStore)
	if !ok || stats == nil {
		return models.CacheStats{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return stats.CacheStats(ctx)
}

// Wait blocks until every started job has finished
func (s *SearchService) Wait() {
	s.wg.Wait()
}

func (s *SearchService) run(ctx context.Context, id string, req models.SearchRequest) {
	started := s.now()
	var handle Handle
	opened := false

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("internal error: %v", r)
			log.Printf("[%s] Search panicked: %v", id, r)
			s.fail(ctx, id, msg)
			if opened {
				s.recorder.Close(ctx, handle, Outcome{Failed: true, Error: msg})
			}
		}
	}()

	handle = s.recorder.Open(ctx, id, req)
	opened = true

	s.progress(ctx, id, 20, "Checking cache for existing matches...")
	cached := s.cache.Lookup(ctx, req)
	s.update(ctx, id, func(j *models.Job) { j.CacheHits = len(cached) })

	if len(cached) >= req.MaxResults {
		payload := s.payload(id, req, models.ResultCacheOnly, cached, cached, nil, started)
		payload.Summary.ThresholdUsed = req.UndervaluationThreshold
		s.finish(ctx, id, payload, fmt.Sprintf("Found %d properties from cache (instant results!)", len(cached)))
		s.recorder.Close(ctx, handle, Outcome{
			UsedCacheOnly: true,
			CacheHits:     len(cached),
			TotalFound:    len(cached),
			ThresholdUsed: req.UndervaluationThreshold,
		})
		return
	}

	s.progress(ctx, id, 40, fmt.Sprintf("Found %d cached properties, fetching more from StreetEasy...", len(cached)))
	fb, err := s.fallback.Run(ctx, req, handle.ID, func(p int, msg string) {
		s.progress(ctx, id, p, msg)
	})
	if err != nil {
		log.Printf("[%s] Search failed: %v", id, err)
		s.fail(ctx, id, err.Error())
		s.recorder.Close(ctx, handle, Outcome{Failed: true, Error: err.Error(), CacheHits: len(cached)})
		return
	}

	outcome := Outcome{
		CacheHits:        len(cached),
		ProviderCalls:    fb.ProviderCalls,
		Fetched:          fb.Fetched,
		Analyzed:         fb.Analyzed,
		Saved:            fb.Saved,
		ThresholdUsed:    fb.ThresholdUsed,
		ThresholdLowered: fb.ThresholdLowered,
		Usage:            fb.Usage,
	}

	if len(cached) == 0 && len(fb.Properties) == 0 {
		payload := s.payload(id, req, models.ResultNoResults, nil, nil, nil, started)
		payload.Summary.ThresholdUsed = req.UndervaluationThreshold
		payload.Summary.ProviderCalls = fb.ProviderCalls
		payload.Summary.QualifierCalls = fb.Usage.Calls
		payload.Summary.QualifierCostUSD = fb.Usage.CostUSD
		s.finish(ctx, id, payload, "No properties found matching criteria")
		s.recorder.Close(ctx, handle, outcome)
		return
	}

	s.progress(ctx, id, 90, "Combining cached and new results...")
	combined := Combine(cached, fb.Properties, req.MaxResults)
	s.update(ctx, id, func(j *models.Job) {
		j.ThresholdUsed = fb.ThresholdUsed
		j.ThresholdLowered = fb.ThresholdLowered
	})

	payload := s.payload(id, req, models.ResultCacheAndFresh, combined, cached, fb.Properties, started)
	payload.Summary.ThresholdUsed = fb.ThresholdUsed
	payload.Summary.ThresholdLowered = fb.ThresholdLowered
	payload.Summary.ProviderCalls = fb.ProviderCalls
	payload.Summary.QualifierCalls = fb.Usage.Calls
	payload.Summary.QualifierCostUSD = fb.Usage.CostUSD

	outcome.TotalFound = len(combined)
	s.finish(ctx, id, payload, fmt.Sprintf("Found %d total properties (%d cached + %d new)", len(combined), len(cached), len(fb.Properties)))
	s.recorder.Close(ctx, handle, outcome)
}

func (s *SearchService) payload(id string, req models.SearchRequest, source string, props, cached, fresh []models.QualifiedProperty, started time.Time) *models.Payload {
	now := s.now()
	if props == nil {
		props = []models.QualifiedProperty{}
	}
	if cached == nil {
		cached = []models.QualifiedProperty{}
	}
	if fresh == nil {
		fresh = []models.QualifiedProperty{}
	}
	return &models.Payload{
		JobID:        id,
		Type:         req.Source,
		Source:       source,
		Parameters:   req,
		Properties:   props,
		Presented:    s.formatter.Present(props),
		Media:        MediaSummaryFor(props),
		Cached:       cached,
		NewlyScraped: fresh,
		Summary: models.Summary{
			TotalFound:       len(props),
			CacheHits:        len(cached),
			NewlyScraped:     len(fresh),
			ProcessingTimeMS: now.Sub(started).Milliseconds(),
		},
		CompletedAt: now,
	}
}

// finish stores the payload before marking the job completed, so a
// completed job always has a result.
func (s *SearchService) finish(ctx context.Context, id string, payload *models.Payload, message string) {
	if err := s.jobs.SaveResult(ctx, id, payload); err != nil {
		log.Printf("[%s] Failed to save result: %v", id, err)
		s.fail(ctx, id, fmt.Sprintf("save result: %v", err))
		return
	}
	s.update(ctx, id, func(j *models.Job) { j.Complete(message, s.now()) })
	log.Printf("[%s] %s", id, message)
}

func (s *SearchService) fail(ctx context.Context, id, msg string) {
	s.update(ctx, id, func(j *models.Job) { j.Fail(msg, s.now()) })
}

func (s *SearchService) progress(ctx context.Context, id string, p int, message string) {
	s.update(ctx, id, func(j *models.Job) { j.SetProgress(p, message, s.now()) })
}

func (s *SearchService) update(ctx context.Context, id string, fn func(*models.Job)) {
	if _, err := s.jobs.Update(ctx, id, fn); err != nil {
		log.Printf("Warning: [%s] job update failed: %v", id, err)
	}
}
