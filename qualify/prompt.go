package qualify

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"dealfinder/models"
)

const descriptionLimit = 300

// BuildPrompt renders the analyst prompt for one batch. Listings are
// numbered from 1 and verdicts refer back to those numbers.
func BuildPrompt(batch []models.CandidateListing, sc models.SearchContext, threshold int) string {
	priceLabel := "Sale Price"
	if sc.PropertyType == models.PropertyTypeRental {
		priceLabel = "Monthly Rent"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert NYC real estate analyst. Analyze these %s properties in %s for undervaluation potential.\n\n", sc.PropertyType, sc.Neighborhood)
	b.WriteString("PROPERTIES TO ANALYZE:\n")

	for i, l := range batch {
		fmt.Fprintf(&b, "\nProperty %d:\n", i+1)
		fmt.Fprintf(&b, "- Address: %s\n", orDefault(l.Address, "Not listed"))
		if l.Price > 0 {
			fmt.Fprintf(&b, "- %s: $%s\n", priceLabel, humanize.Comma(int64(l.Price)))
		} else {
			fmt.Fprintf(&b, "- %s: Not listed\n", priceLabel)
		}
		fmt.Fprintf(&b, "- Layout: %sBR/%sBA\n", layoutValue(l.Bedrooms), layoutValue(l.Bathrooms))
		if l.SqFt != nil && *l.SqFt > 0 {
			fmt.Fprintf(&b, "- Square Feet: %d\n", *l.SqFt)
		} else {
			b.WriteString("- Square Feet: Not listed\n")
		}
		fmt.Fprintf(&b, "- Description: %s\n", orDefault(excerpt(l.Description, descriptionLimit), "None"))
		if len(l.Amenities) > 0 {
			fmt.Fprintf(&b, "- Amenities: %s\n", strings.Join(l.Amenities, ", "))
		} else {
			b.WriteString("- Amenities: None listed\n")
		}
		fmt.Fprintf(&b, "- Building Year: %s\n", optionalInt(l.BuiltIn))
		fmt.Fprintf(&b, "- Days on Market: %s\n", optionalInt(l.DaysOnMarket))
	}

	fmt.Fprintf(&b, `
ANALYSIS REQUIREMENTS:
- Evaluate each property against typical %[1]s market rates
- Consider location, amenities, condition, and comparable properties
- Provide detailed reasoning for valuation assessment
- Calculate precise discount percentage vs market value
- Only mark as undervalued if discount is %[2]d%% or greater
- Assign numerical score (0-100) and letter grade (A+ to F)

CRITICAL: You MUST respond with ONLY a valid JSON array. No explanatory text before or after. Start with [ and end with ].

RESPONSE FORMAT (JSON Array):
[
  {
    "propertyIndex": 1,
    "percentBelowMarket": 20,
    "isUndervalued": true,
    "reasoning": "This 2BR rental at $3,200/month is 20%% below the $4,000 market rate for similar properties in %[1]s.",
    "score": 85,
    "grade": "A-"
  }
]

Return ONLY the JSON array. No other text.`, sc.Neighborhood, threshold)

	return b.String()
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func layoutValue(f float64) string {
	if f <= 0 {
		return "N/A"
	}
	return humanize.Ftoa(f)
}

func optionalInt(v *int) string {
	if v == nil || *v == 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%d", *v)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
