package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dealfinder/config"
	"dealfinder/models"
)

var (
	ErrMissingAPIKey      = errors.New("RAPIDAPI_KEY not set")
	ErrUnexpectedResponse = errors.New("unexpected streeteasy response")
)

// StreetEasyClient searches rental and sale listings through the
// StreetEasy RapidAPI proxy.
type StreetEasyClient struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewStreetEasyClient(cfg config.ProviderConfig, client *http.Client) *StreetEasyClient {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &StreetEasyClient{cfg: cfg, client: client}
}

func (c *StreetEasyClient) Search(ctx context.Context, q models.ListingQuery) ([]models.CandidateListing, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	endpoint := fmt.Sprintf("%s/%s/search?%s", strings.TrimRight(c.cfg.BaseURL, "/"), searchPath(q.PropertyType), BuildParams(q).Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-RapidAPI-Key", c.cfg.APIKey)
	req.Header.Set("X-RapidAPI-Host", c.cfg.Host)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("streeteasy API error %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	listings, err := ParseSearchResponse(body)
	if err != nil {
		return nil, err
	}

	log.Printf("StreetEasy: %d listings for %s (%s)", len(listings), q.Neighborhood, q.PropertyType)
	return listings, nil
}

func searchPath(pt models.PropertyType) string {
	if pt == models.PropertyTypeSale {
		return "sales"
	}
	return "rentals"
}

// BuildParams translates a ListingQuery into provider query parameters.
// Unset filters are left out entirely.
func BuildParams(q models.ListingQuery) url.Values {
	v := url.Values{}
	v.Set("areas", q.Neighborhood)
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("offset", strconv.Itoa(q.Offset))

	if q.MinPrice != nil && *q.MinPrice > 0 {
		v.Set("minPrice", strconv.Itoa(*q.MinPrice))
	}
	if q.MaxPrice != nil && *q.MaxPrice > 0 {
		v.Set("maxPrice", strconv.Itoa(*q.MaxPrice))
	}
	if q.Bedrooms != nil {
		v.Set("minBeds", strconv.Itoa(*q.Bedrooms))
		v.Set("maxBeds", strconv.Itoa(*q.Bedrooms))
	}
	if q.MinBaths != nil && *q.MinBaths > 0 {
		baths := strconv.FormatFloat(*q.MinBaths, 'f', -1, 64)
		// rentals and sales spell this differently
		if q.PropertyType == models.PropertyTypeRental {
			v.Set("minBath", baths)
		} else {
			v.Set("minBaths", baths)
		}
	}
	if q.NoFee && q.PropertyType == models.PropertyTypeRental {
		v.Set("noFee", "true")
	}
	if len(q.Amenities) > 0 {
		v.Set("amenities", strings.Join(q.Amenities, ","))
	}
	if q.PropertyType == models.PropertyTypeSale && len(q.Subtypes) > 0 {
		v.Set("types", strings.Join(q.Subtypes, ","))
	}
	return v
}

type searchResponse struct {
	Results *[]streetEasyListing `json:"results"`
}

type streetEasyListing struct {
	ID           flexString `json:"id"`
	Address      string     `json:"address"`
	Neighborhood string     `json:"neighborhood"`
	Zipcode      string     `json:"zipcode"`
	Price        float64    `json:"price"`
	Bedrooms     float64    `json:"bedrooms"`
	Bathrooms    float64    `json:"bathrooms"`
	SqFt         *int       `json:"sqft"`
	Description  string     `json:"description"`
	Amenities    []string   `json:"amenities"`
	Images       []string   `json:"images"`
	URL          string     `json:"url"`
	BuiltIn      *int       `json:"built_in"`
	DaysOnMarket *int       `json:"days_on_market"`
	NoFee        bool       `json:"no_fee"`
	Doorman      bool       `json:"doorman"`
	Elevator     bool       `json:"elevator"`
	PetsAllowed  bool       `json:"pets_allowed"`
	Laundry      bool       `json:"laundry"`
	Gym          bool       `json:"gym"`
	Rooftop      bool       `json:"roof_deck"`
	Type         string     `json:"type"`
	MonthlyHOA   *float64   `json:"monthly_hoa"`
	MonthlyTax   *float64   `json:"monthly_tax"`
}

// ParseSearchResponse decodes a search response body. The body must be an
// object with a "results" array; anything else is ErrUnexpectedResponse.
func ParseSearchResponse(body []byte) ([]models.CandidateListing, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if resp.Results == nil {
		return nil, fmt.Errorf("%w: missing results array", ErrUnexpectedResponse)
	}

	listings := make([]models.CandidateListing, 0, len(*resp.Results))
	for _, r := range *resp.Results {
		listings = append(listings, r.toCandidate())
	}
	return listings, nil
}

func (r streetEasyListing) toCandidate() models.CandidateListing {
	amenities := r.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	return models.CandidateListing{
		ID:           string(r.ID),
		Address:      strings.TrimSpace(r.Address),
		Neighborhood: r.Neighborhood,
		Zipcode:      r.Zipcode,
		Price:        int(r.Price),
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		SqFt:         r.SqFt,
		Description:  CleanDescription(r.Description),
		Amenities:    amenities,
		Images:       r.Images,
		URL:          r.URL,
		BuiltIn:      r.BuiltIn,
		DaysOnMarket: r.DaysOnMarket,
		NoFee:        r.NoFee,
		Doorman:      r.Doorman || hasAmenity(amenities, "doorman"),
		Elevator:     r.Elevator || hasAmenity(amenities, "elevator"),
		PetsOK:       r.PetsAllowed || hasAmenity(amenities, "pets"),
		Laundry:      r.Laundry || hasAmenity(amenities, "laundry"),
		Gym:          r.Gym || hasAmenity(amenities, "gym"),
		Rooftop:      r.Rooftop || hasAmenity(amenities, "roof"),
		Subtype:      r.Type,
		MonthlyHOA:   roundPtr(r.MonthlyHOA),
		MonthlyTax:   roundPtr(r.MonthlyTax),
	}
}

// flexString accepts ids sent either as JSON strings or numbers
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func hasAmenity(amenities []string, needle string) bool {
	for _, a := range amenities {
		if strings.Contains(strings.ToLower(a), needle) {
			return true
		}
	}
	return false
}

func roundPtr(f *float64) *int {
	if f == nil {
		return nil
	}
	v := int(*f + 0.5)
	return &v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
