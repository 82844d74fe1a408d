package services

import (
	"context"
	"log"
	"time"

	"dealfinder/models"
)

const storeTimeout = 10 * time.Second

// CacheLookup serves previously qualified properties from the store
type CacheLookup struct {
	store  Store
	maxAge time.Duration
	now    func() time.Time
}

// NewCacheLookup creates a CacheLookup. A nil store always misses.
func NewCacheLookup(store Store, maxAge time.Duration) *CacheLookup {
	return &CacheLookup{store: store, maxAge: maxAge, now: time.Now}
}

// Lookup returns up to req.MaxResults cached properties tagged with cache
// provenance. Store failures degrade to an empty result.
func (c *CacheLookup) Lookup(ctx context.Context, req models.SearchRequest) []models.QualifiedProperty {
	if c == nil || c.store == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var since time.Time
	if c.maxAge > 0 {
		since = c.now().Add(-c.maxAge)
	}

	props, err := c.store.FindQualified(ctx, req.CacheQuery(since))
	if err != nil {
		log.Printf("Warning: cache lookup failed for %s: %v", req.Neighborhood, err)
		return nil
	}

	out := make([]models.QualifiedProperty, 0, len(props))
	for _, p := range props {
		// every returned property satisfies discount >= threshold
		if p.DiscountPercent < float64(req.UndervaluationThreshold) {
			continue
		}
		p.Source = models.ProvenanceCache
		p.IsCached = true
		out = append(out, p)
		if len(out) == req.MaxResults {
			break
		}
	}

	log.Printf("Cache: %d properties for %s (%s, >= %d%%)", len(out), req.Neighborhood, req.PropertyType, req.UndervaluationThreshold)
	return out
}
