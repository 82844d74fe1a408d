package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"dealfinder/models"
	"dealfinder/qualify"
)

type fakeProvider struct {
	mu       sync.Mutex
	queries  []models.ListingQuery
	listings []models.CandidateListing
	errs     []error // consumed one per call
	panics   bool
}

func (p *fakeProvider) Search(ctx context.Context, q models.ListingQuery) ([]models.CandidateListing, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panics {
		panic("provider exploded")
	}
	p.queries = append(p.queries, q)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return p.listings, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queries)
}

// fakeQualifier assigns each listing a fixed discount by id
type fakeQualifier struct {
	mu         sync.Mutex
	discounts  map[string]float64
	thresholds []int
}

func (q *fakeQualifier) Qualify(ctx context.Context, listings []models.CandidateListing, sc models.SearchContext, threshold int) (qualify.Result, error) {
	q.mu.Lock()
	q.thresholds = append(q.thresholds, threshold)
	q.mu.Unlock()

	res := qualify.Result{Analyzed: len(listings), Usage: models.Usage{Calls: 1, Tokens: 1000, CostUSD: qualify.Cost(1000)}}
	for _, l := range listings {
		d := q.discounts[l.ID]
		if d < float64(threshold) {
			continue
		}
		v := models.Verdict{DiscountPercent: d, Qualifies: true, Score: 80, Grade: "B+", Reasoning: "Below comparable units"}
		res.Properties = append(res.Properties, models.NewQualifiedProperty(l, v, sc.PropertyType))
	}
	return res, nil
}

type fakeStore struct {
	mu        sync.Mutex
	cached    []models.QualifiedProperty
	findErr   error
	saveErr   error
	createErr error
	updateErr error
	queries   []models.CacheQuery
	saved     []models.QualifiedProperty
	created   []models.FetchRecord
	updated   []models.FetchRecord
}

func (s *fakeStore) FindQualified(ctx context.Context, q models.CacheQuery) ([]models.QualifiedProperty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.findErr != nil {
		return nil, s.findErr
	}
	return append([]models.QualifiedProperty(nil), s.cached...), nil
}

func (s *fakeStore) SaveQualified(ctx context.Context, fetchRecordID string, props []models.QualifiedProperty) ([]models.QualifiedProperty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	out := make([]models.QualifiedProperty, len(props))
	for i, p := range props {
		p.ID = fmt.Sprintf("saved-%d", len(s.saved)+1)
		p.FetchJobID = fetchRecordID
		s.saved = append(s.saved, p)
		out[i] = p
	}
	return out, nil
}

func (s *fakeStore) CreateFetchRecord(ctx context.Context, rec *models.FetchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, *rec)
	return nil
}

func (s *fakeStore) UpdateFetchRecord(ctx context.Context, rec *models.FetchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = append(s.updated, *rec)
	return nil
}

func (s *fakeStore) CacheStats(ctx context.Context) (models.CacheStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := models.CacheStats{TotalRequests: len(s.updated)}
	for _, r := range s.updated {
		if r.UsedCacheOnly {
			stats.CacheOnlyRequests++
		}
	}
	if stats.TotalRequests > 0 {
		stats.CacheHitRate = float64(stats.CacheOnlyRequests) / float64(stats.TotalRequests)
	}
	return stats, nil
}

var errBoom = errors.New("boom")

func candidate(id string, price int) models.CandidateListing {
	return models.CandidateListing{
		ID:           id,
		Address:      id + " Spring St",
		Neighborhood: "soho",
		Price:        price,
		Bedrooms:     1,
		Bathrooms:    1,
		Images:       []string{"http://photos.streeteasy.com/small/" + id + ".jpg"},
	}
}

func cachedProperty(id string, discount float64) models.QualifiedProperty {
	rent := 3000
	return models.QualifiedProperty{
		ListingID:       id,
		PropertyType:    models.PropertyTypeRental,
		Address:         id + " Prince St",
		Neighborhood:    "soho",
		DiscountPercent: discount,
		MonthlyRent:     &rent,
		Grade:           "B",
		Source:          models.ProvenanceFresh,
	}
}

func ids(props []models.QualifiedProperty) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.ListingID
	}
	return out
}
