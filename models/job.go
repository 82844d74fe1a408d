package models

import "time"

type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job tracks the lifecycle of one search request
type Job struct {
	ID                string        `json:"jobId"`
	Type              string        `json:"type"`
	Status            JobStatus     `json:"status"`
	Progress          int           `json:"progress"`
	StartTime         time.Time     `json:"startTime"`
	LastUpdate        time.Time     `json:"lastUpdate"`
	Message           string        `json:"message"`
	Request           SearchRequest `json:"parameters"`
	CacheHits         int           `json:"cacheHits"`
	OriginalThreshold int           `json:"originalThreshold"`
	ThresholdUsed     int           `json:"thresholdUsed,omitempty"`
	ThresholdLowered  bool          `json:"thresholdLowered"`
	Error             string        `json:"error,omitempty"`
}

func NewJob(id string, req SearchRequest, now time.Time) Job {
	return Job{
		ID:                id,
		Type:              req.Source,
		Status:            JobStatusProcessing,
		StartTime:         now,
		LastUpdate:        now,
		Message:           "Starting smart cache-first search...",
		Request:           req,
		OriginalThreshold: req.UndervaluationThreshold,
	}
}

func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// SetProgress moves progress forward; lower values are ignored.
func (j *Job) SetProgress(p int, message string, now time.Time) {
	if p > 100 {
		p = 100
	}
	if p > j.Progress {
		j.Progress = p
	}
	if message != "" {
		j.Message = message
	}
	j.LastUpdate = now
}

func (j *Job) Complete(message string, now time.Time) {
	j.Status = JobStatusCompleted
	j.SetProgress(100, message, now)
}

func (j *Job) Fail(errMsg string, now time.Time) {
	j.Status = JobStatusFailed
	j.Error = errMsg
	j.Message = "Search failed"
	j.LastUpdate = now
}
