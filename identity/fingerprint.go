package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"dealfinder/models"
)

var (
	streetReplacements = []struct{ full, abbrev string }{
		{"street", "st"},
		{"avenue", "ave"},
		{"boulevard", "blvd"},
		{"place", "pl"},
		{"road", "rd"},
		{"drive", "dr"},
		{"lane", "ln"},
		{"terrace", "ter"},
		{"parkway", "pkwy"},
		{"square", "sq"},
		{"apartment", "apt"},
		{"unit", "apt"},
		{"north", "n"},
		{"south", "s"},
		{"east", "e"},
		{"west", "w"},
	}
	nonAlnumRegex = regexp.MustCompile(`[^a-z0-9\s]`)
)

// ListingID returns the provider id when present, otherwise a stable id
// derived from the listing's address and layout so repeat fetches of the
// same unit dedupe against each other.
func ListingID(l *models.CandidateListing) string {
	if id := strings.TrimSpace(l.ID); id != "" {
		return id
	}
	return "generated_" + Fingerprint(l)
}

func Fingerprint(l *models.CandidateListing) string {
	input := fmt.Sprintf("%s|%s|%g|%g|%d",
		NormalizeAddress(l.Address),
		models.NormalizeNeighborhood(l.Neighborhood),
		l.Bedrooms,
		l.Bathrooms,
		l.Price,
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}

func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	words := strings.Fields(addr)
	for i, w := range words {
		for _, r := range streetReplacements {
			if w == r.full {
				words[i] = r.abbrev
				break
			}
		}
	}
	return strings.Join(words, " ")
}
