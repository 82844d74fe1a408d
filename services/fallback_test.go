package services

import (
	"context"
	"reflect"
	"testing"

	"dealfinder/models"
)

func TestThresholds(t *testing.T) {
	steps := []int{5, 4, 3, 2, 1}
	tests := []struct {
		requested int
		want      []int
	}{
		{15, []int{15, 10, 6, 3, 1}},
		{25, []int{25, 20, 16, 13, 11, 10}},
		{6, []int{6, 1}},
		{5, []int{5, 1}},
		{4, []int{4, 1}},
		{3, []int{3, 1}},
		{2, []int{2, 1}},
		{1, []int{1}},
	}
	for _, tt := range tests {
		got := Thresholds(tt.requested, steps)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Thresholds(%d) = %v, want %v", tt.requested, got, tt.want)
		}
		for i := 1; i < len(got); i++ {
			if got[i] >= got[i-1] || got[i] < 1 {
				t.Errorf("Thresholds(%d) not strictly descending and >= 1: %v", tt.requested, got)
			}
		}
	}
}

func rentalRequest(threshold, max int) models.SearchRequest {
	req := models.SearchRequest{Neighborhood: "soho", UndervaluationThreshold: threshold, MaxResults: max}
	req.Normalize(15, 10)
	return req
}

func TestFallback_StopsAtFirstQualifyingThreshold(t *testing.T) {
	provider := &fakeProvider{listings: []models.CandidateListing{candidate("A", 3000), candidate("B", 4000)}}
	qualifier := &fakeQualifier{discounts: map[string]float64{"A": 11, "B": 7}}
	store := &fakeStore{}
	engine := NewFallbackEngine(provider, qualifier, store, []int{5, 4, 3, 2, 1}, 20, 0, Boroughs{"soho": "Manhattan"})

	var progress []int
	res, err := engine.Run(context.Background(), rentalRequest(15, 1), "fetch-1", func(p int, _ string) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !reflect.DeepEqual(qualifier.thresholds, []int{15, 10}) {
		t.Errorf("qualified at %v, want [15 10]", qualifier.thresholds)
	}
	if res.ThresholdUsed != 10 || !res.ThresholdLowered {
		t.Errorf("used %d lowered %v, want 10 true", res.ThresholdUsed, res.ThresholdLowered)
	}
	if res.ProviderCalls != 2 {
		t.Errorf("provider calls = %d, want 2", res.ProviderCalls)
	}
	if len(res.Properties) != 1 || res.Properties[0].ListingID != "A" {
		t.Fatalf("properties = %v, want [A]", ids(res.Properties))
	}
	p := res.Properties[0]
	if p.ID != "saved-1" || p.FetchJobID != "fetch-1" {
		t.Errorf("expected stored copy, got id %q fetch %q", p.ID, p.FetchJobID)
	}
	if p.Borough != "Manhattan" {
		t.Errorf("borough = %q", p.Borough)
	}
	if p.PrimaryImage == nil || *p.PrimaryImage != "https://photos.streeteasy.com/large/A.jpg" {
		t.Errorf("primary image = %v", p.PrimaryImage)
	}
	if res.Saved != 1 {
		t.Errorf("saved = %d, want 1", res.Saved)
	}
	if len(res.Attempts) != 2 || res.Attempts[0].Qualified != 0 || res.Attempts[1].Qualified != 1 {
		t.Errorf("attempts = %+v", res.Attempts)
	}
	for _, v := range progress {
		if v < 40 || v > 89 {
			t.Errorf("progress %d outside 40..89", v)
		}
	}
}

func TestFallback_NeverSendsThresholdToProvider(t *testing.T) {
	provider := &fakeProvider{}
	engine := NewFallbackEngine(provider, &fakeQualifier{}, nil, []int{5}, 20, 0, nil)

	req := rentalRequest(20, 10)
	if _, err := engine.Run(context.Background(), req, "", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(provider.queries) != 2 {
		t.Fatalf("provider calls = %d, want 2", len(provider.queries))
	}
	if !reflect.DeepEqual(provider.queries[0], provider.queries[1]) {
		t.Errorf("queries differ between thresholds: %+v vs %+v", provider.queries[0], provider.queries[1])
	}
	if provider.queries[0].Limit != 20 || provider.queries[0].Offset != 0 {
		t.Errorf("page limit %d offset %d, want 20 0", provider.queries[0].Limit, provider.queries[0].Offset)
	}
}

func TestFallback_PageLimit(t *testing.T) {
	engine := NewFallbackEngine(nil, nil, nil, nil, 20, 0, nil)
	for max, want := range map[int]int{1: 4, 3: 12, 5: 20, 10: 20} {
		if got := engine.PageLimit(max); got != want {
			t.Errorf("PageLimit(%d) = %d, want %d", max, got, want)
		}
	}
}

func TestFallback_ProviderErrorMovesToNextThreshold(t *testing.T) {
	provider := &fakeProvider{
		listings: []models.CandidateListing{candidate("A", 3000)},
		errs:     []error{errBoom},
	}
	qualifier := &fakeQualifier{discounts: map[string]float64{"A": 20}}
	engine := NewFallbackEngine(provider, qualifier, nil, []int{5, 4, 3, 2, 1}, 20, 0, nil)

	res, err := engine.Run(context.Background(), rentalRequest(15, 1), "", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ProviderCalls != 2 {
		t.Errorf("provider calls = %d, want 2", res.ProviderCalls)
	}
	if res.ThresholdUsed != 10 || len(res.Properties) != 1 {
		t.Errorf("used %d with %d properties, want 10 with 1", res.ThresholdUsed, len(res.Properties))
	}
	if res.Attempts[0].Error == "" {
		t.Error("expected first attempt to record the provider error")
	}
	if res.Properties[0].Borough != "Unknown" {
		t.Errorf("borough = %q, want Unknown", res.Properties[0].Borough)
	}
}

func TestFallback_NothingQualifies(t *testing.T) {
	provider := &fakeProvider{listings: []models.CandidateListing{candidate("A", 3000)}}
	qualifier := &fakeQualifier{discounts: map[string]float64{"A": 0.5}}
	engine := NewFallbackEngine(provider, qualifier, &fakeStore{}, []int{5, 4, 3, 2, 1}, 20, 0, nil)

	res, err := engine.Run(context.Background(), rentalRequest(15, 1), "", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Properties) != 0 {
		t.Errorf("expected no properties, got %v", ids(res.Properties))
	}
	if res.ThresholdUsed != 15 || res.ThresholdLowered {
		t.Errorf("used %d lowered %v, want 15 false", res.ThresholdUsed, res.ThresholdLowered)
	}
	if res.ProviderCalls != 5 || res.Usage.Calls != 5 {
		t.Errorf("provider calls %d qualifier calls %d, want 5 5", res.ProviderCalls, res.Usage.Calls)
	}
}

func TestFallback_SaveFailureKeepsUnsavedCopies(t *testing.T) {
	provider := &fakeProvider{listings: []models.CandidateListing{candidate("A", 3000)}}
	qualifier := &fakeQualifier{discounts: map[string]float64{"A": 30}}
	store := &fakeStore{saveErr: errBoom}
	engine := NewFallbackEngine(provider, qualifier, store, []int{5}, 20, 0, nil)

	res, err := engine.Run(context.Background(), rentalRequest(15, 1), "fetch-1", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Properties) != 1 || res.Properties[0].ID != "" {
		t.Fatalf("expected one unsaved property, got %+v", res.Properties)
	}
	if res.Saved != 0 {
		t.Errorf("saved = %d, want 0", res.Saved)
	}
	if res.ThresholdLowered {
		t.Error("threshold should not be lowered")
	}
}

func TestFallback_ThresholdUsedBoundsDiscount(t *testing.T) {
	provider := &fakeProvider{listings: []models.CandidateListing{candidate("A", 3000), candidate("B", 3000), candidate("C", 3000)}}
	qualifier := &fakeQualifier{discounts: map[string]float64{"A": 3, "B": 4, "C": 2}}
	engine := NewFallbackEngine(provider, qualifier, nil, []int{5, 4, 3, 2, 1}, 20, 0, nil)

	res, err := engine.Run(context.Background(), rentalRequest(15, 5), "", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ThresholdUsed != 3 {
		t.Fatalf("threshold used = %d, want 3", res.ThresholdUsed)
	}
	for _, p := range res.Properties {
		if p.DiscountPercent < float64(res.ThresholdUsed) {
			t.Errorf("%s discount %v below threshold %d", p.ListingID, p.DiscountPercent, res.ThresholdUsed)
		}
	}
	if len(res.Properties) != 2 {
		t.Errorf("properties = %v, want A and B", ids(res.Properties))
	}
}
