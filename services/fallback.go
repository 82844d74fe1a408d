package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"dealfinder/models"
)

const (
	progressFallbackStart = 40
	progressFallbackEnd   = 89
)

// Thresholds returns the sequence of discount thresholds to try: the
// requested value, then the requested value lowered by each relaxation step
// in turn. A step that would take the threshold below 1 is skipped and the
// next, smaller step is tried from the same value, so the result is
// strictly descending and never below 1.
func Thresholds(requested int, steps []int) []int {
	out := []int{requested}
	current := requested
	for _, step := range steps {
		if step <= 0 || current-step < 1 {
			continue
		}
		current -= step
		out = append(out, current)
	}
	return out
}

// Attempt records what happened at one threshold
type Attempt struct {
	Threshold int    `json:"threshold"`
	Fetched   int    `json:"fetched"`
	Qualified int    `json:"qualified"`
	Error     string `json:"error,omitempty"`
}

type FallbackResult struct {
	Properties       []models.QualifiedProperty
	ThresholdUsed    int
	ThresholdLowered bool
	ProviderCalls    int
	Fetched          int
	Analyzed         int
	Saved            int
	Usage            models.Usage
	Attempts         []Attempt
}

// ProgressFunc receives progress updates from a running search
type ProgressFunc func(progress int, message string)

// FallbackEngine searches the listings provider, relaxing the discount
// threshold until some listing qualifies.
type FallbackEngine struct {
	provider        ListingProvider
	qualifier       Qualifier
	store           Store
	steps           []int
	pageCap         int
	providerTimeout time.Duration
	boroughs        Boroughs
}

func NewFallbackEngine(provider ListingProvider, qualifier Qualifier, store Store, steps []int, pageCap int, providerTimeout time.Duration, boroughs Boroughs) *FallbackEngine {
	if pageCap <= 0 {
		pageCap = 20
	}
	return &FallbackEngine{
		provider:        provider,
		qualifier:       qualifier,
		store:           store,
		steps:           steps,
		pageCap:         pageCap,
		providerTimeout: providerTimeout,
		boroughs:        boroughs,
	}
}

// PageLimit is the provider page size used for a request
func (e *FallbackEngine) PageLimit(maxResults int) int {
	limit := maxResults * 4
	if limit > e.pageCap {
		limit = e.pageCap
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// Run tries each threshold in order and stops at the first one that yields
// qualifying properties. Provider and store failures are logged and never
// end the search; only ctx cancellation does.
func (e *FallbackEngine) Run(ctx context.Context, req models.SearchRequest, fetchID string, progress ProgressFunc) (FallbackResult, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	requested := req.UndervaluationThreshold
	res := FallbackResult{ThresholdUsed: requested}
	thresholds := Thresholds(requested, e.steps)
	query := req.Query(e.PageLimit(req.MaxResults))
	span := progressFallbackEnd - progressFallbackStart

	for i, threshold := range thresholds {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		base := progressFallbackStart + i*span/len(thresholds)
		progress(base, fmt.Sprintf("Searching StreetEasy at %d%% threshold...", threshold))

		attempt := Attempt{Threshold: threshold}
		listings, err := e.search(ctx, query)
		res.ProviderCalls++
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Printf("Warning: provider search failed at %d%% for %s: %v", threshold, req.Neighborhood, err)
			attempt.Error = err.Error()
			res.Attempts = append(res.Attempts, attempt)
			continue
		}
		attempt.Fetched = len(listings)
		res.Fetched += len(listings)
		if len(listings) == 0 {
			log.Printf("Fallback: no listings for %s at %d%%", req.Neighborhood, threshold)
			res.Attempts = append(res.Attempts, attempt)
			continue
		}

		progress(base+span/len(thresholds)/2, fmt.Sprintf("Analyzing %d listings at %d%% threshold...", len(listings), threshold))
		qr, err := e.qualifier.Qualify(ctx, listings, req.Context(), threshold)
		res.Analyzed += qr.Analyzed
		res.Usage.Add(qr.Usage)
		if err != nil {
			attempt.Error = err.Error()
			res.Attempts = append(res.Attempts, attempt)
			return res, fmt.Errorf("qualify at %d%%: %w", threshold, err)
		}
		attempt.Qualified = len(qr.Properties)
		res.Attempts = append(res.Attempts, attempt)
		if len(qr.Properties) == 0 {
			continue
		}

		props := make([]models.QualifiedProperty, 0, len(qr.Properties))
		for _, p := range qr.Properties {
			e.enrich(&p, req)
			props = append(props, p)
		}
		res.Properties, res.Saved = e.save(ctx, fetchID, props)
		res.ThresholdUsed = threshold
		res.ThresholdLowered = threshold < requested
		if res.ThresholdLowered {
			log.Printf("Fallback: threshold lowered from %d%% to %d%% for %s", requested, threshold, req.Neighborhood)
		}
		return res, nil
	}

	log.Printf("Fallback: nothing qualified for %s after %d thresholds", req.Neighborhood, len(thresholds))
	return res, nil
}

func (e *FallbackEngine) search(ctx context.Context, q models.ListingQuery) ([]models.CandidateListing, error) {
	if e.providerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.providerTimeout)
		defer cancel()
	}
	return e.provider.Search(ctx, q)
}

func (e *FallbackEngine) enrich(p *models.QualifiedProperty, req models.SearchRequest) {
	if p.Neighborhood == "" {
		p.Neighborhood = req.Neighborhood
	}
	p.Borough = e.boroughs.Lookup(p.Neighborhood)
	ApplyMedia(p)
}

// save persists the properties and returns the stored copies with the
// number stored. On failure the unsaved copies are returned with 0.
func (e *FallbackEngine) save(ctx context.Context, fetchID string, props []models.QualifiedProperty) ([]models.QualifiedProperty, int) {
	if e.store == nil {
		return props, 0
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	saved, err := e.store.SaveQualified(ctx, fetchID, props)
	if err != nil {
		log.Printf("Warning: failed to save %d qualified properties: %v", len(props), err)
		return props, 0
	}
	if len(saved) == 0 {
		return props, 0
	}
	return saved, len(saved)
}
