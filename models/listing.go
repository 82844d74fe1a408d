package models

// CandidateListing is a raw listing returned by the provider. It only
// outlives the qualification pass when it qualifies.
type CandidateListing struct {
	ID           string   `json:"id"`
	Address      string   `json:"address"`
	Neighborhood string   `json:"neighborhood"`
	Zipcode      string   `json:"zipcode"`
	Price        int      `json:"price"`
	Bedrooms     float64  `json:"bedrooms"`
	Bathrooms    float64  `json:"bathrooms"`
	SqFt         *int     `json:"sqft"`
	Description  string   `json:"description"`
	Amenities    []string `json:"amenities"`
	Images       []string `json:"images"`
	URL          string   `json:"url"`
	BuiltIn      *int     `json:"built_in"`
	DaysOnMarket *int     `json:"days_on_market"`
	NoFee        bool     `json:"no_fee"`

	Doorman  bool `json:"doorman_building"`
	Elevator bool `json:"elevator_building"`
	PetsOK   bool `json:"pet_friendly"`
	Laundry  bool `json:"laundry_available"`
	Gym      bool `json:"gym_available"`
	Rooftop  bool `json:"rooftop_access"`

	// Sales only
	Subtype    string `json:"property_type"`
	MonthlyHOA *int   `json:"monthly_hoa"`
	MonthlyTax *int   `json:"monthly_tax"`
}
