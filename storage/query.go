package storage

import (
	"fmt"
	"strings"
	"time"

	"dealfinder/models"
)

const propertyColumns = `id, fetch_job_id, listing_id, listing_type, address, neighborhood, borough, zipcode,
	bedrooms, bathrooms, sqft, discount_percent, score, grade, reasoning, description,
	amenities, images, image_count, primary_image, listing_url, built_in, days_on_market, status,
	monthly_rent, potential_monthly_savings, annual_savings, no_fee, doorman_building, elevator_building,
	pet_friendly, laundry_available, gym_available, rooftop_access,
	price, potential_savings, estimated_market_price, monthly_hoa, monthly_tax, property_type, created_at`

const propertyColumnCount = 41

// onConflictRefresh keeps one row per listing and refreshes it with the
// latest analysis.
const onConflictRefresh = `
	ON CONFLICT (listing_type, listing_id) DO UPDATE SET
		fetch_job_id = excluded.fetch_job_id,
		discount_percent = excluded.discount_percent,
		score = excluded.score,
		grade = excluded.grade,
		reasoning = excluded.reasoning,
		description = excluded.description,
		images = excluded.images,
		image_count = excluded.image_count,
		primary_image = excluded.primary_image,
		borough = excluded.borough,
		monthly_rent = excluded.monthly_rent,
		potential_monthly_savings = excluded.potential_monthly_savings,
		annual_savings = excluded.annual_savings,
		price = excluded.price,
		potential_savings = excluded.potential_savings,
		estimated_market_price = excluded.estimated_market_price,
		days_on_market = excluded.days_on_market,
		status = excluded.status,
		created_at = excluded.created_at`

const fetchColumns = `id, job_id, source, request, neighborhood, property_type, status, started_at`

const fetchUpdate = `UPDATE fetch_jobs SET
		status = %[1]s, completed_at = %[2]s, processing_duration_ms = %[3]s, used_cache_only = %[4]s,
		cache_hits = %[5]s, cache_properties_returned = %[6]s, streeteasy_api_calls = %[7]s,
		properties_fetched = %[8]s, properties_analyzed = %[9]s, total_properties_found = %[10]s,
		qualifying_properties_saved = %[11]s, threshold_used = %[12]s, threshold_lowered = %[13]s,
		claude_api_calls = %[14]s, claude_tokens_used = %[15]s, claude_cost_usd = %[16]s,
		error_message = %[17]s
	WHERE id = %[18]s`

type placeholder func(n int) string

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

func question(int) string { return "?" }

func placeholders(ph placeholder, from, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = ph(from + i)
	}
	return strings.Join(parts, ", ")
}

// findQuery builds the cache lookup. Rows are ordered by discount, highest
// first, then by recency.
func findQuery(q models.CacheQuery, ph placeholder, since any) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, ph(len(args))))
	}

	conds = append(conds, "status = 'active'")
	add("neighborhood = %s", q.Neighborhood)
	add("listing_type = %s", string(q.PropertyType))
	add("discount_percent >= %s", q.MinDiscount)
	if !q.Since.IsZero() {
		add("created_at >= %s", since)
	}
	if q.MinPrice != nil {
		add("COALESCE(monthly_rent, price) >= %s", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		add("COALESCE(monthly_rent, price) <= %s", *q.MaxPrice)
	}
	if q.Bedrooms != nil {
		add("bedrooms = %s", *q.Bedrooms)
	}
	if q.MinBaths != nil {
		add("bathrooms >= %s", *q.MinBaths)
	}
	if q.NoFee {
		conds = append(conds, "no_fee")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = models.MaxResultsCap
	}
	args = append(args, limit)

	query := "SELECT " + propertyColumns + " FROM undervalued_properties WHERE " +
		strings.Join(conds, " AND ") +
		" ORDER BY discount_percent DESC, created_at DESC LIMIT " + ph(len(args))
	return query, args
}

func insertPropertyQuery(ph placeholder) string {
	return "INSERT INTO undervalued_properties (" + propertyColumns + ") VALUES (" +
		placeholders(ph, 1, propertyColumnCount) + ")" + onConflictRefresh + " RETURNING id, created_at"
}

// propertyValues returns the insert arguments in propertyColumns order.
// list and ts convert the array and time columns for the target driver.
func propertyValues(p *models.QualifiedProperty, list func([]string) any, ts func(time.Time) any) []any {
	return []any{
		p.ID, p.FetchJobID, p.ListingID, string(p.PropertyType), p.Address, p.Neighborhood, p.Borough, p.Zipcode,
		p.Bedrooms, p.Bathrooms, p.SqFt, p.DiscountPercent, p.Score, p.Grade, p.Reasoning, p.Description,
		list(p.Amenities), list(p.Images), p.ImageCount, p.PrimaryImage, p.ListingURL, p.BuiltIn, p.DaysOnMarket, p.Status,
		p.MonthlyRent, p.PotentialMonthlySavings, p.AnnualSavings, p.NoFee, p.Doorman, p.Elevator,
		p.PetsOK, p.Laundry, p.Gym, p.Rooftop,
		p.Price, p.PotentialSavings, p.EstimatedMarketPrice, p.MonthlyHOA, p.MonthlyTax, p.Subtype, ts(p.CreatedAt),
	}
}

// propertyDest returns scan destinations in propertyColumns order
func propertyDest(p *models.QualifiedProperty, amenities, images, created any) []any {
	return []any{
		&p.ID, &p.FetchJobID, &p.ListingID, &p.PropertyType, &p.Address, &p.Neighborhood, &p.Borough, &p.Zipcode,
		&p.Bedrooms, &p.Bathrooms, &p.SqFt, &p.DiscountPercent, &p.Score, &p.Grade, &p.Reasoning, &p.Description,
		amenities, images, &p.ImageCount, &p.PrimaryImage, &p.ListingURL, &p.BuiltIn, &p.DaysOnMarket, &p.Status,
		&p.MonthlyRent, &p.PotentialMonthlySavings, &p.AnnualSavings, &p.NoFee, &p.Doorman, &p.Elevator,
		&p.PetsOK, &p.Laundry, &p.Gym, &p.Rooftop,
		&p.Price, &p.PotentialSavings, &p.EstimatedMarketPrice, &p.MonthlyHOA, &p.MonthlyTax, &p.Subtype, created,
	}
}

func fetchUpdateQuery(ph placeholder) string {
	args := make([]any, 18)
	for i := range args {
		args[i] = ph(i + 1)
	}
	return fmt.Sprintf(fetchUpdate, args...)
}

func fetchUpdateValues(rec *models.FetchRecord, ts func(time.Time) any) []any {
	var completed any
	if rec.CompletedAt != nil {
		completed = ts(*rec.CompletedAt)
	}
	return []any{
		string(rec.Status), completed, rec.ProcessingDurationMS, rec.UsedCacheOnly,
		rec.CacheHits, rec.CachePropertiesReturned, rec.ProviderCalls,
		rec.PropertiesFetched, rec.PropertiesAnalyzed, rec.TotalPropertiesFound,
		rec.QualifyingSaved, rec.ThresholdUsed, rec.ThresholdLowered,
		rec.QualifierCalls, rec.QualifierTokens, rec.QualifierCostUSD,
		rec.ErrorMessage, rec.ID,
	}
}

// stamp fills the id and creation time of a property about to be saved
func stamp(p *models.QualifiedProperty, fetchRecordID string, now time.Time, newID func() string) {
	if p.ID == "" {
		p.ID = newID()
	}
	p.FetchJobID = fetchRecordID
	if p.Status == "" {
		p.Status = models.PropertyStatusActive
	}
	p.CreatedAt = now
}
