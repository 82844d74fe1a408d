package identity

import (
	"strings"
	"testing"

	"dealfinder/models"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"123 West 4th Street, Apt. 5B", "123 w 4th st apt 5b"},
		{"  10   Spring  St ", "10 spring st"},
		{"45 Eastern Parkway Unit 2", "45 eastern pkwy apt 2"},
	}
	for _, tt := range tests {
		if got := NormalizeAddress(tt.in); got != tt.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListingID_PrefersProviderID(t *testing.T) {
	l := &models.CandidateListing{ID: "4411", Address: "10 Spring St"}
	if got := ListingID(l); got != "4411" {
		t.Fatalf("expected provider id, got %s", got)
	}
}

func TestListingID_StableFallback(t *testing.T) {
	a := &models.CandidateListing{Address: "10 Spring Street", Neighborhood: "SoHo", Bedrooms: 1, Price: 3500}
	b := &models.CandidateListing{Address: "10 spring st.", Neighborhood: "soho", Bedrooms: 1, Price: 3500}
	c := &models.CandidateListing{Address: "12 Spring St", Neighborhood: "soho", Bedrooms: 1, Price: 3500}

	idA, idB, idC := ListingID(a), ListingID(b), ListingID(c)
	if !strings.HasPrefix(idA, "generated_") {
		t.Fatalf("expected generated prefix, got %s", idA)
	}
	if idA != idB {
		t.Fatalf("equivalent addresses should match: %s vs %s", idA, idB)
	}
	if idA == idC {
		t.Fatal("different addresses should not collide")
	}
}
