package httputil

import (
	"net/http"
	"time"

	"dealfinder/config"
)

// Clients holds one HTTP client per external collaborator. Each carries
// the collaborator's per-call timeout as a hard ceiling.
type Clients struct {
	Provider  *http.Client // listings provider (RapidAPI)
	Qualifier *http.Client // scoring service (Anthropic)
}

func NewClients(cfg *config.Config) *Clients {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 90 * time.Second

	return &Clients{
		Provider:  &http.Client{Timeout: orDefault(cfg.Provider.Timeout, 30*time.Second), Transport: transport},
		Qualifier: &http.Client{Timeout: orDefault(cfg.Qualifier.Timeout, 60*time.Second), Transport: transport},
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
