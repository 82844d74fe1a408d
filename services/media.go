package services

import (
	"fmt"
	"strings"

	"dealfinder/models"
)

const maxImages = 10

var streetEasyResolution = strings.NewReplacer(
	"/small/", "/large/",
	"/medium/", "/large/",
	"_sm.", "_lg.",
	"_md.", "_lg.",
)

// NormalizeImageURL upgrades StreetEasy thumbnails to their large variant
// and forces https.
func NormalizeImageURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if strings.Contains(u, "streeteasy.com") {
		u = streetEasyResolution.Replace(u)
	}
	if strings.HasPrefix(u, "http://") {
		u = "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// NormalizeImages normalizes, drops empties and caps the list at 10
func NormalizeImages(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if u := NormalizeImageURL(r); u != "" {
			out = append(out, u)
		}
		if len(out) == maxImages {
			break
		}
	}
	return out
}

// ApplyMedia sets the normalized image list, count and primary image
func ApplyMedia(p *models.QualifiedProperty) {
	p.Images = NormalizeImages(p.Images)
	p.ImageCount = len(p.Images)
	p.PrimaryImage = nil
	if len(p.Images) > 0 {
		primary := p.Images[0]
		p.PrimaryImage = &primary
	}
}

// ImageAssets builds caption and alt text for each image. The primary
// image carries the headline details.
func ImageAssets(p *models.QualifiedProperty) []models.ImageAsset {
	assets := make([]models.ImageAsset, 0, len(p.Images))
	for i, u := range p.Images {
		asset := models.ImageAsset{
			URL:       u,
			AltText:   fmt.Sprintf("%s - Photo %d", p.Address, i+1),
			IsPrimary: i == 0,
		}
		if i == 0 {
			asset.Caption = primaryCaption(p)
		} else {
			asset.Caption = fmt.Sprintf("📸 %s - Photo %d", p.Address, i+1)
		}
		assets = append(assets, asset)
	}
	return assets
}

func primaryCaption(p *models.QualifiedProperty) string {
	lines := []string{fmt.Sprintf("🏠 %s in %s", layout(p), p.Neighborhood)}
	if price := priceText(p); price != "" {
		lines = append(lines, fmt.Sprintf("💰 %s (%s%% below market)", price, percent(p.DiscountPercent)))
	}
	if p.Address != "" {
		lines = append(lines, "📍 "+p.Address)
	}
	return strings.Join(lines, "\n")
}

// MediaSummaryFor totals the images across a result set
func MediaSummaryFor(props []models.QualifiedProperty) models.MediaSummary {
	summary := models.MediaSummary{
		PrimaryImages:   []string{},
		ReadyForPosting: []models.QualifiedProperty{},
	}
	for _, p := range props {
		summary.TotalImages += p.ImageCount
		if p.ImageCount > 0 {
			summary.HasImages = true
		}
		if p.PrimaryImage != nil {
			summary.PrimaryImages = append(summary.PrimaryImages, *p.PrimaryImage)
			if p.ImageCount > 0 {
				summary.ReadyForPosting = append(summary.ReadyForPosting, p)
			}
		}
	}
	return summary
}
