package qualify

import (
	"context"
	"log"
	"time"

	"dealfinder/identity"
	"dealfinder/models"
)

const (
	DefaultBatchSize = 10
	// USD per million tokens
	costPerMillionTokens = 1.25
)

// Result is what one qualification pass produced
type Result struct {
	Properties []models.QualifiedProperty
	Analyzed   int
	Usage      models.Usage
}

// Qualifier splits listings into batches, scores them one batch at a time
// and keeps the listings whose discount meets the threshold.
type Qualifier struct {
	assessor    Assessor
	batchSize   int
	batchDelay  time.Duration
	callTimeout time.Duration
}

func NewQualifier(assessor Assessor, batchSize int, batchDelay, callTimeout time.Duration) *Qualifier {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Qualifier{
		assessor:    assessor,
		batchSize:   batchSize,
		batchDelay:  batchDelay,
		callTimeout: callTimeout,
	}
}

// Qualify never fails on a bad batch: the batch is logged, counted as a
// call and contributes nothing. Only ctx cancellation ends it early.
func (q *Qualifier) Qualify(ctx context.Context, listings []models.CandidateListing, sc models.SearchContext, threshold int) (Result, error) {
	var res Result
	pacer := NewFixedDelay(q.batchDelay)

	for start := 0; start < len(listings); start += q.batchSize {
		end := start + q.batchSize
		if end > len(listings) {
			end = len(listings)
		}
		batch := listings[start:end]

		if err := pacer.Wait(ctx); err != nil {
			return res, err
		}

		assessment, err := q.assess(ctx, batch, sc, threshold)
		res.Usage.Calls++
		res.Usage.Tokens += assessment.Tokens
		res.Analyzed += len(batch)
		if err != nil {
			log.Printf("Qualifier: batch %d-%d failed: %v", start+1, end, err)
			continue
		}

		for i, l := range batch {
			v := assessment.Verdicts[i]
			if v.DiscountPercent < float64(threshold) {
				continue
			}
			l.ID = identity.ListingID(&l)
			res.Properties = append(res.Properties, models.NewQualifiedProperty(l, v, sc.PropertyType))
		}
	}

	res.Usage.CostUSD = Cost(res.Usage.Tokens)
	log.Printf("Qualifier: %d/%d listings at >= %d%% (%d calls, %d tokens)",
		len(res.Properties), res.Analyzed, threshold, res.Usage.Calls, res.Usage.Tokens)
	return res, nil
}

func (q *Qualifier) assess(ctx context.Context, batch []models.CandidateListing, sc models.SearchContext, threshold int) (Assessment, error) {
	if q.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.callTimeout)
		defer cancel()
	}
	a, err := q.assessor.Assess(ctx, batch, sc, threshold)
	if err == nil && len(a.Verdicts) != len(batch) {
		return a, ErrMalformedVerdicts
	}
	return a, err
}

// Cost converts a token count to USD
func Cost(tokens int) float64 {
	return float64(tokens) / 1_000_000 * costPerMillionTokens
}
