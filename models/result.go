package models

import "time"

// Payload sources
const (
	ResultCacheOnly     = "cache_only"
	ResultNoResults     = "no_results"
	ResultCacheAndFresh = "cache_and_fresh"
)

// Usage counts calls made to the qualification service and what they cost
type Usage struct {
	Calls   int     `json:"calls"`
	Tokens  int     `json:"tokens"`
	CostUSD float64 `json:"costUsd"`
}

func (u *Usage) Add(o Usage) {
	u.Calls += o.Calls
	u.Tokens += o.Tokens
	u.CostUSD += o.CostUSD
}

type ImageAsset struct {
	URL       string `json:"url"`
	Caption   string `json:"caption"`
	AltText   string `json:"altText"`
	IsPrimary bool   `json:"isPrimary"`
}

// Presentation holds the fields derived purely from a QualifiedProperty
type Presentation struct {
	PrimaryImage *string      `json:"primaryImage"`
	ImageCount   int          `json:"imageCount"`
	Images       []ImageAsset `json:"images"`
	Message      string       `json:"dmMessage"`
}

type PresentedProperty struct {
	QualifiedProperty
	Presentation Presentation `json:"instagram"`
}

type MediaSummary struct {
	HasImages       bool                `json:"hasImages"`
	TotalImages     int                 `json:"totalImages"`
	PrimaryImages   []string            `json:"primaryImages"`
	ReadyForPosting []QualifiedProperty `json:"readyForPosting"`
}

type Summary struct {
	TotalFound       int     `json:"totalFound"`
	CacheHits        int     `json:"cacheHits"`
	NewlyScraped     int     `json:"newlyScraped"`
	ThresholdUsed    int     `json:"thresholdUsed"`
	ThresholdLowered bool    `json:"thresholdLowered"`
	ProcessingTimeMS int64   `json:"processingTimeMs"`
	ProviderCalls    int     `json:"streetEasyApiCalls"`
	QualifierCalls   int     `json:"claudeApiCalls"`
	QualifierCostUSD float64 `json:"claudeCostUsd"`
}

// Payload is the final result of a completed job
type Payload struct {
	JobID        string              `json:"jobId"`
	Type         string              `json:"type"`
	Source       string              `json:"source"`
	Parameters   SearchRequest       `json:"parameters"`
	Properties   []QualifiedProperty `json:"properties"`
	Presented    []PresentedProperty `json:"instagramReady"`
	Media        MediaSummary        `json:"instagramSummary"`
	Cached       []QualifiedProperty `json:"cached"`
	NewlyScraped []QualifiedProperty `json:"newlyScraped"`
	Summary      Summary             `json:"summary"`
	CompletedAt  time.Time           `json:"completedAt"`
}
