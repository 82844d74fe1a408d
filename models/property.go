package models

import (
	"math"
	"time"
)

type Provenance string

const (
	ProvenanceCache Provenance = "cache"
	ProvenanceFresh Provenance = "fresh"
)

const PropertyStatusActive = "active"

// Verdict is the scorer's assessment of one listing, keyed by its 1-based
// position in the batch it was sent with.
type Verdict struct {
	Index           int     `json:"propertyIndex"`
	DiscountPercent float64 `json:"percentBelowMarket"`
	Qualifies       bool    `json:"isUndervalued"`
	Reasoning       string  `json:"reasoning"`
	Score           float64 `json:"score"`
	Grade           string  `json:"grade"`
}

// FailedVerdict stands in for a missing or malformed verdict
func FailedVerdict(index int) Verdict {
	return Verdict{Index: index, Reasoning: "Analysis failed", Grade: "F"}
}

// QualifiedProperty is a candidate listing that passed qualification, or a
// cached copy of one. Discount is always >= the threshold used to produce it.
type QualifiedProperty struct {
	ID           string       `json:"id,omitempty" db:"id"`
	FetchJobID   string       `json:"fetch_job_id,omitempty" db:"fetch_job_id"`
	ListingID    string       `json:"listing_id" db:"listing_id"`
	PropertyType PropertyType `json:"listing_type" db:"listing_type"`
	Address      string       `json:"address" db:"address"`
	Neighborhood string       `json:"neighborhood" db:"neighborhood"`
	Borough      string       `json:"borough" db:"borough"`
	Zipcode      string       `json:"zipcode" db:"zipcode"`
	Bedrooms     float64      `json:"bedrooms" db:"bedrooms"`
	Bathrooms    float64      `json:"bathrooms" db:"bathrooms"`
	SqFt         *int         `json:"sqft" db:"sqft"`

	DiscountPercent float64 `json:"discount_percent" db:"discount_percent"`
	Score           int     `json:"score" db:"score"`
	Grade           string  `json:"grade" db:"grade"`
	Reasoning       string  `json:"reasoning" db:"reasoning"`
	Description     string  `json:"description" db:"description"`

	Amenities    []string `json:"amenities" db:"amenities"`
	Images       []string `json:"images" db:"images"`
	ImageCount   int      `json:"image_count" db:"image_count"`
	PrimaryImage *string  `json:"primary_image" db:"primary_image"`

	ListingURL   string `json:"listing_url" db:"listing_url"`
	BuiltIn      *int   `json:"built_in" db:"built_in"`
	DaysOnMarket int    `json:"days_on_market" db:"days_on_market"`
	Status       string `json:"status" db:"status"`

	// Rentals
	MonthlyRent             *int `json:"monthly_rent,omitempty" db:"monthly_rent"`
	PotentialMonthlySavings *int `json:"potential_monthly_savings,omitempty" db:"potential_monthly_savings"`
	AnnualSavings           *int `json:"annual_savings,omitempty" db:"annual_savings"`
	NoFee                   bool `json:"no_fee" db:"no_fee"`
	Doorman                 bool `json:"doorman_building" db:"doorman_building"`
	Elevator                bool `json:"elevator_building" db:"elevator_building"`
	PetsOK                  bool `json:"pet_friendly" db:"pet_friendly"`
	Laundry                 bool `json:"laundry_available" db:"laundry_available"`
	Gym                     bool `json:"gym_available" db:"gym_available"`
	Rooftop                 bool `json:"rooftop_access" db:"rooftop_access"`

	// Sales
	Price                *int   `json:"price,omitempty" db:"price"`
	PotentialSavings     *int   `json:"potential_savings,omitempty" db:"potential_savings"`
	EstimatedMarketPrice *int   `json:"estimated_market_price,omitempty" db:"estimated_market_price"`
	MonthlyHOA           *int   `json:"monthly_hoa,omitempty" db:"monthly_hoa"`
	MonthlyTax           *int   `json:"monthly_tax,omitempty" db:"monthly_tax"`
	Subtype              string `json:"property_type,omitempty" db:"property_type"`

	Source    Provenance `json:"source"`
	IsCached  bool       `json:"isCached"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// NewQualifiedProperty merges a listing with its verdict and derives the
// type-specific economics. Borough and images are filled in later.
func NewQualifiedProperty(l CandidateListing, v Verdict, pt PropertyType) QualifiedProperty {
	p := QualifiedProperty{
		ListingID:       l.ID,
		PropertyType:    pt,
		Address:         l.Address,
		Neighborhood:    l.Neighborhood,
		Zipcode:         l.Zipcode,
		Bedrooms:        l.Bedrooms,
		Bathrooms:       l.Bathrooms,
		SqFt:            l.SqFt,
		DiscountPercent: v.DiscountPercent,
		Score:           clampScore(v.Score),
		Grade:           v.Grade,
		Reasoning:       v.Reasoning,
		Description:     l.Description,
		Amenities:       l.Amenities,
		Images:          l.Images,
		ListingURL:      l.URL,
		BuiltIn:         l.BuiltIn,
		Status:          PropertyStatusActive,
		Source:          ProvenanceFresh,
	}
	if p.Grade == "" {
		p.Grade = "F"
	}
	if l.DaysOnMarket != nil {
		p.DaysOnMarket = *l.DaysOnMarket
	}

	price := float64(l.Price)
	saved := price * v.DiscountPercent / 100

	switch pt {
	case PropertyTypeRental:
		p.MonthlyRent = intPtr(l.Price)
		p.PotentialMonthlySavings = intPtr(int(math.Round(saved)))
		p.AnnualSavings = intPtr(int(math.Round(saved * 12)))
		p.NoFee = l.NoFee
		p.Doorman = l.Doorman
		p.Elevator = l.Elevator
		p.PetsOK = l.PetsOK
		p.Laundry = l.Laundry
		p.Gym = l.Gym
		p.Rooftop = l.Rooftop
	case PropertyTypeSale:
		p.Price = intPtr(l.Price)
		p.PotentialSavings = intPtr(int(math.Round(saved)))
		if v.DiscountPercent < 100 {
			p.EstimatedMarketPrice = intPtr(int(math.Round(price / (1 - v.DiscountPercent/100))))
		}
		p.MonthlyHOA = l.MonthlyHOA
		p.MonthlyTax = l.MonthlyTax
		p.Subtype = l.Subtype
		if p.Subtype == "" {
			p.Subtype = "unknown"
		}
	}
	return p
}

// AskingPrice is the monthly rent for rentals and the sale price otherwise
func (p *QualifiedProperty) AskingPrice() *int {
	if p.MonthlyRent != nil {
		return p.MonthlyRent
	}
	return p.Price
}

// Savings is the monthly saving for rentals and the total saving for sales
func (p *QualifiedProperty) Savings() *int {
	if p.PotentialMonthlySavings != nil {
		return p.PotentialMonthlySavings
	}
	return p.PotentialSavings
}

func (p *QualifiedProperty) IsRental() bool {
	return p.MonthlyRent != nil || p.PropertyType == PropertyTypeRental
}

func clampScore(s float64) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return int(math.Round(s))
}

func intPtr(v int) *int {
	return &v
}
