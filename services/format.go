package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"dealfinder/models"
)

const defaultExcerptLen = 150

// Formatter derives presentation fields from qualified properties. All
// output is a pure function of its input.
type Formatter struct {
	excerptLen int
}

func NewFormatter(excerptLen int) *Formatter {
	if excerptLen <= 0 {
		excerptLen = defaultExcerptLen
	}
	return &Formatter{excerptLen: excerptLen}
}

func (f *Formatter) Present(props []models.QualifiedProperty) []models.PresentedProperty {
	out := make([]models.PresentedProperty, 0, len(props))
	for _, p := range props {
		out = append(out, models.PresentedProperty{
			QualifiedProperty: p,
			Presentation: models.Presentation{
				PrimaryImage: p.PrimaryImage,
				ImageCount:   p.ImageCount,
				Images:       ImageAssets(&p),
				Message:      f.Message(&p),
			},
		})
	}
	return out
}

// Message renders the outbound alert for one property. A segment whose
// source value is missing is left out rather than rendered empty.
func (f *Formatter) Message(p *models.QualifiedProperty) string {
	blocks := []string{"🏠 *UNDERVALUED PROPERTY ALERT*"}

	var where []string
	if p.Address != "" {
		where = append(where, fmt.Sprintf("📍 **%s**", p.Address))
	}
	if p.Neighborhood != "" {
		if p.Borough != "" {
			where = append(where, fmt.Sprintf("🏘️ %s, %s", p.Neighborhood, p.Borough))
		} else {
			where = append(where, "🏘️ "+p.Neighborhood)
		}
	}
	if len(where) > 0 {
		blocks = append(blocks, strings.Join(where, "\n"))
	}

	var money []string
	if price := priceText(p); price != "" {
		money = append(money, fmt.Sprintf("💰 **%s**", price))
	}
	money = append(money, fmt.Sprintf("📉 %s%% below market", percent(p.DiscountPercent)))
	if s := p.Savings(); s != nil && *s > 0 {
		period := "total"
		if p.IsRental() {
			period = "per month"
		}
		money = append(money, fmt.Sprintf("💵 Save $%s %s", humanize.Comma(int64(*s)), period))
	}
	blocks = append(blocks, strings.Join(money, "\n"))

	var unit []string
	line := "🏠 " + layout(p)
	if p.SqFt != nil && *p.SqFt > 0 {
		line += fmt.Sprintf(" | %s sqft", humanize.Comma(int64(*p.SqFt)))
	}
	unit = append(unit, line)
	if p.Grade != "" {
		unit = append(unit, fmt.Sprintf("📊 Score: %d/100 (%s)", p.Score, p.Grade))
	}
	blocks = append(blocks, strings.Join(unit, "\n"))

	if amenities := keyAmenities(p); len(amenities) > 0 {
		blocks = append(blocks, "✨ "+strings.Join(amenities, " • "))
	}

	if r := strings.TrimSpace(p.Reasoning); r != "" {
		blocks = append(blocks, fmt.Sprintf("🧠 *AI Analysis:*\n\"%s\"", excerpt(r, f.excerptLen)))
	}

	if p.ListingURL != "" {
		blocks = append(blocks, fmt.Sprintf("🔗 [View Full Listing](%s)", p.ListingURL))
	}

	return strings.Join(blocks, "\n\n")
}

func keyAmenities(p *models.QualifiedProperty) []string {
	var out []string
	if p.NoFee {
		out = append(out, "No Fee")
	}
	if p.Doorman {
		out = append(out, "Doorman")
	}
	if p.Elevator {
		out = append(out, "Elevator")
	}
	if p.PetsOK {
		out = append(out, "Pet Friendly")
	}
	if p.Gym {
		out = append(out, "Gym")
	}
	return out
}

func priceText(p *models.QualifiedProperty) string {
	price := p.AskingPrice()
	if price == nil || *price <= 0 {
		return ""
	}
	text := "$" + humanize.Comma(int64(*price))
	if p.IsRental() {
		text += "/month"
	}
	return text
}

func layout(p *models.QualifiedProperty) string {
	return fmt.Sprintf("%sBR/%sBA", percent(p.Bedrooms), percent(p.Bathrooms))
}

func percent(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
