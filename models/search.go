package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type PropertyType string

const (
	PropertyTypeRental PropertyType = "rental"
	PropertyTypeSale   PropertyType = "sale"
)

// Request sources recorded on each job and fetch record
const (
	SourceSmartSearch = "smart_search"
	SourceTrigger     = "full_search_trigger"
)

const (
	DefaultThreshold  = 15
	DefaultMaxResults = 1
	MaxResultsCap     = 10
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// SearchRequest is the normalized intent behind a single search job.
// Once a job starts it is passed by value and never modified.
type SearchRequest struct {
	Neighborhood            string       `json:"neighborhood"`
	PropertyType            PropertyType `json:"propertyType"`
	Bedrooms                *int         `json:"bedrooms,omitempty"`
	Bathrooms               *float64     `json:"bathrooms,omitempty"`
	MinPrice                *int         `json:"minPrice,omitempty"`
	MaxPrice                *int         `json:"maxPrice,omitempty"`
	Doorman                 bool         `json:"doorman"`
	Elevator                bool         `json:"elevator"`
	Laundry                 bool         `json:"laundry"`
	PrivateOutdoorSpace     bool         `json:"privateOutdoorSpace"`
	WasherDryer             bool         `json:"washerDryer"`
	Dishwasher              bool         `json:"dishwasher"`
	UndervaluationThreshold int          `json:"undervaluationThreshold"`
	MaxResults              int          `json:"maxResults"`
	NoFee                   bool         `json:"noFee"`
	PropertyTypes           []string     `json:"propertyTypes,omitempty"`
	Source                  string       `json:"source,omitempty"`
}

// ValidationError is returned for requests rejected before a job exists
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NormalizeNeighborhood lowercases and hyphenates a neighborhood name.
func NormalizeNeighborhood(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRegex.ReplaceAllString(s, "-")
}

// Normalize fills defaults and canonicalizes fields. maxCap bounds
// MaxResults; values <= 0 fall back to MaxResultsCap.
func (r *SearchRequest) Normalize(defaultThreshold, maxCap int) {
	if defaultThreshold <= 0 {
		defaultThreshold = DefaultThreshold
	}
	if maxCap <= 0 {
		maxCap = MaxResultsCap
	}

	r.Neighborhood = NormalizeNeighborhood(r.Neighborhood)
	r.PropertyType = PropertyType(strings.ToLower(strings.TrimSpace(string(r.PropertyType))))
	if r.PropertyType == "" {
		r.PropertyType = PropertyTypeRental
	}
	if r.UndervaluationThreshold == 0 {
		r.UndervaluationThreshold = defaultThreshold
	}
	if r.MaxResults <= 0 {
		r.MaxResults = DefaultMaxResults
	}
	if r.MaxResults > maxCap {
		r.MaxResults = maxCap
	}
	if r.PropertyType != PropertyTypeRental {
		r.NoFee = false
	}
	if r.PropertyType != PropertyTypeSale {
		r.PropertyTypes = nil
	}
	for i, t := range r.PropertyTypes {
		r.PropertyTypes[i] = strings.ToLower(strings.TrimSpace(t))
	}
	if r.Source == "" {
		r.Source = SourceSmartSearch
	}
}

// Validate checks a normalized request.
func (r *SearchRequest) Validate() error {
	if r.Neighborhood == "" {
		return &ValidationError{Field: "neighborhood", Message: "is required"}
	}
	if r.PropertyType != PropertyTypeRental && r.PropertyType != PropertyTypeSale {
		return &ValidationError{Field: "propertyType", Message: fmt.Sprintf("must be rental or sale, got %q", r.PropertyType)}
	}
	if r.UndervaluationThreshold < 1 || r.UndervaluationThreshold > 99 {
		return &ValidationError{Field: "undervaluationThreshold", Message: "must be between 1 and 99"}
	}
	if r.Bedrooms != nil && *r.Bedrooms < 0 {
		return &ValidationError{Field: "bedrooms", Message: "must not be negative"}
	}
	if r.Bathrooms != nil && *r.Bathrooms < 0 {
		return &ValidationError{Field: "bathrooms", Message: "must not be negative"}
	}
	if r.MinPrice != nil && *r.MinPrice < 0 {
		return &ValidationError{Field: "minPrice", Message: "must not be negative"}
	}
	if r.MaxPrice != nil && *r.MaxPrice < 0 {
		return &ValidationError{Field: "maxPrice", Message: "must not be negative"}
	}
	if r.MinPrice != nil && r.MaxPrice != nil && *r.MinPrice > *r.MaxPrice {
		return &ValidationError{Field: "maxPrice", Message: "must not be below minPrice"}
	}
	return nil
}

// Amenities returns the provider amenity codes selected by the request
func (r *SearchRequest) Amenities() []string {
	var out []string
	if r.Doorman {
		out = append(out, "doorman")
	}
	if r.Elevator {
		out = append(out, "elevator")
	}
	if r.Laundry {
		out = append(out, "laundry")
	}
	if r.PrivateOutdoorSpace {
		out = append(out, "private_outdoor_space")
	}
	if r.WasherDryer {
		out = append(out, "washer_dryer")
	}
	if r.Dishwasher {
		out = append(out, "dishwasher")
	}
	return out
}

// ListingQuery holds the structural filters sent to a listings provider.
// The discount threshold is never part of it.
type ListingQuery struct {
	Neighborhood string
	PropertyType PropertyType
	MinPrice     *int
	MaxPrice     *int
	Bedrooms     *int
	MinBaths     *float64
	Amenities    []string
	NoFee        bool
	Subtypes     []string
	Limit        int
	Offset       int
}

// Query builds the provider query for this request with the given page limit
func (r *SearchRequest) Query(limit int) ListingQuery {
	return ListingQuery{
		Neighborhood: r.Neighborhood,
		PropertyType: r.PropertyType,
		MinPrice:     r.MinPrice,
		MaxPrice:     r.MaxPrice,
		Bedrooms:     r.Bedrooms,
		MinBaths:     r.Bathrooms,
		Amenities:    r.Amenities(),
		NoFee:        r.NoFee && r.PropertyType == PropertyTypeRental,
		Subtypes:     append([]string(nil), r.PropertyTypes...),
		Limit:        limit,
		Offset:       0,
	}
}

// SearchContext is what the qualifier needs to know about the search
type SearchContext struct {
	Neighborhood string
	PropertyType PropertyType
}

func (r *SearchRequest) Context() SearchContext {
	return SearchContext{Neighborhood: r.Neighborhood, PropertyType: r.PropertyType}
}

// CacheQuery asks the store for previously qualified properties that
// satisfy a request: same neighborhood and type, discount at or above the
// threshold, created after Since and matching the structural filters.
type CacheQuery struct {
	Neighborhood string
	PropertyType PropertyType
	MinDiscount  int
	MinPrice     *int
	MaxPrice     *int
	Bedrooms     *int
	MinBaths     *float64
	NoFee        bool
	Since        time.Time
	Limit        int
}

func (r *SearchRequest) CacheQuery(since time.Time) CacheQuery {
	return CacheQuery{
		Neighborhood: r.Neighborhood,
		PropertyType: r.PropertyType,
		MinDiscount:  r.UndervaluationThreshold,
		MinPrice:     r.MinPrice,
		MaxPrice:     r.MaxPrice,
		Bedrooms:     r.Bedrooms,
		MinBaths:     r.Bathrooms,
		NoFee:        r.NoFee && r.PropertyType == PropertyTypeRental,
		Since:        since,
		Limit:        r.MaxResults,
	}
}
