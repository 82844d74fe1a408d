package services

import (
	"sort"

	"dealfinder/models"
)

// Combine merges cached and freshly qualified properties. Cached entries win
// on listing id collisions. The merged list is ordered by discount, highest
// first, with ties kept in insertion order, and truncated to max.
func Combine(cached, fresh []models.QualifiedProperty, max int) []models.QualifiedProperty {
	out := make([]models.QualifiedProperty, 0, len(cached)+len(fresh))
	seen := make(map[string]bool, len(cached))

	for _, p := range cached {
		if p.ListingID != "" {
			seen[p.ListingID] = true
		}
		out = append(out, p)
	}
	for _, p := range fresh {
		if p.ListingID != "" && seen[p.ListingID] {
			continue
		}
		seen[p.ListingID] = true
		p.Source = models.ProvenanceFresh
		p.IsCached = false
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DiscountPercent > out[j].DiscountPercent
	})

	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
