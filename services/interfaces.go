package services

import (
	"context"

	"dealfinder/models"
	"dealfinder/qualify"
)

// ListingProvider searches an external listings source. Only structural
// filters are sent; discount thresholds are applied after qualification.
type ListingProvider interface {
	Search(ctx context.Context, q models.ListingQuery) ([]models.CandidateListing, error)
}

// Qualifier scores candidate listings and keeps those at or above threshold
type Qualifier interface {
	Qualify(ctx context.Context, listings []models.CandidateListing, sc models.SearchContext, threshold int) (qualify.Result, error)
}

// Store is the persistence contract: the qualified-property cache plus the
// fetch-record audit log.
type Store interface {
	FindQualified(ctx context.Context, q models.CacheQuery) ([]models.QualifiedProperty, error)
	SaveQualified(ctx context.Context, fetchRecordID string, props []models.QualifiedProperty) ([]models.QualifiedProperty, error)
	CreateFetchRecord(ctx context.Context, rec *models.FetchRecord) error
	UpdateFetchRecord(ctx context.Context, rec *models.FetchRecord) error
}

// StatsStore is implemented by stores that can aggregate fetch records
type StatsStore interface {
	CacheStats(ctx context.Context) (models.CacheStats, error)
}
