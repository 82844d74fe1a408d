package models

import "time"

type FetchStatus string

const (
	FetchStatusProcessing FetchStatus = "processing"
	FetchStatusCompleted  FetchStatus = "completed"
	FetchStatusFailed     FetchStatus = "failed"
)

// FetchRecord is the audit row written once at job start and updated
// once when the job reaches a terminal state.
type FetchRecord struct {
	ID                      string        `json:"id" db:"id"`
	JobID                   string        `json:"job_id" db:"job_id"`
	Source                  string        `json:"source" db:"source"`
	Request                 SearchRequest `json:"request" db:"request"`
	Neighborhood            string        `json:"neighborhood" db:"neighborhood"`
	PropertyType            PropertyType  `json:"property_type" db:"property_type"`
	Status                  FetchStatus   `json:"status" db:"status"`
	StartedAt               time.Time     `json:"started_at" db:"started_at"`
	CompletedAt             *time.Time    `json:"completed_at" db:"completed_at"`
	ProcessingDurationMS    int64         `json:"processing_duration_ms" db:"processing_duration_ms"`
	UsedCacheOnly           bool          `json:"used_cache_only" db:"used_cache_only"`
	CacheHits               int           `json:"cache_hits" db:"cache_hits"`
	CachePropertiesReturned int           `json:"cache_properties_returned" db:"cache_properties_returned"`
	ProviderCalls           int           `json:"streeteasy_api_calls" db:"streeteasy_api_calls"`
	PropertiesFetched       int           `json:"properties_fetched" db:"properties_fetched"`
	PropertiesAnalyzed      int           `json:"properties_analyzed" db:"properties_analyzed"`
	TotalPropertiesFound    int           `json:"total_properties_found" db:"total_properties_found"`
	QualifyingSaved         int           `json:"qualifying_properties_saved" db:"qualifying_properties_saved"`
	ThresholdUsed           int           `json:"threshold_used" db:"threshold_used"`
	ThresholdLowered        bool          `json:"threshold_lowered" db:"threshold_lowered"`
	QualifierCalls          int           `json:"claude_api_calls" db:"claude_api_calls"`
	QualifierTokens         int           `json:"claude_tokens_used" db:"claude_tokens_used"`
	QualifierCostUSD        float64       `json:"claude_cost_usd" db:"claude_cost_usd"`
	ErrorMessage            string        `json:"error_message,omitempty" db:"error_message"`
}

// CacheStats aggregates fetch records for the stats endpoint
type CacheStats struct {
	TotalRequests       int     `json:"total_requests"`
	CacheOnlyRequests   int     `json:"cache_only_requests"`
	CacheHitRate        float64 `json:"cache_hit_rate"`
	AvgProcessingTimeMS float64 `json:"avg_processing_time_ms"`
}
