package services

import "dealfinder/models"

const unknownBorough = "Unknown"

// Boroughs maps normalized neighborhood names to their borough
type Boroughs map[string]string

func (b Boroughs) Lookup(neighborhood string) string {
	if borough, ok := b[models.NormalizeNeighborhood(neighborhood)]; ok && borough != "" {
		return borough
	}
	return unknownBorough
}
