package qualify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"dealfinder/config"
	"dealfinder/models"
)

const assumedTokens = 1500

var ErrMissingAPIKey = errors.New("ANTHROPIC_API_KEY not set")

// Assessor scores one batch of listings in a single call
type Assessor interface {
	Assess(ctx context.Context, batch []models.CandidateListing, sc models.SearchContext, threshold int) (Assessment, error)
}

type Assessment struct {
	Verdicts []models.Verdict
	Tokens   int
}

// AnthropicClient calls the Anthropic Messages API
type AnthropicClient struct {
	cfg    config.QualifierConfig
	client anthropic.Client
}

// NewAnthropicClient builds a client on httpClient. Retries are off: a
// failed batch is counted and skipped by the Qualifier instead.
func NewAnthropicClient(cfg config.QualifierConfig, httpClient *http.Client) *AnthropicClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{cfg: cfg, client: anthropic.NewClient(opts...)}
}

func (c *AnthropicClient) Assess(ctx context.Context, batch []models.CandidateListing, sc models.SearchContext, threshold int) (Assessment, error) {
	if c.cfg.APIKey == "" {
		return Assessment{}, ErrMissingAPIKey
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.cfg.Model),
		MaxTokens:   int64(c.cfg.MaxTokens),
		Temperature: anthropic.Float(c.cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(batch, sc, threshold))),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return Assessment{}, fmt.Errorf("anthropic API error %d: %w", apiErr.StatusCode, err)
		}
		return Assessment{}, err
	}

	tokens := int(msg.Usage.InputTokens + msg.Usage.OutputTokens)
	if tokens == 0 {
		tokens = assumedTokens
	}

	text, ok := firstText(msg.Content)
	if !ok {
		return Assessment{Tokens: tokens}, fmt.Errorf("%w: empty content", ErrMalformedVerdicts)
	}

	verdicts, err := ParseVerdicts(text, len(batch))
	if err != nil {
		return Assessment{Tokens: tokens}, err
	}
	return Assessment{Verdicts: verdicts, Tokens: tokens}, nil
}

func firstText(blocks []anthropic.ContentBlockUnion) (string, bool) {
	for _, b := range blocks {
		if b.Type == "text" {
			return b.Text, true
		}
	}
	return "", false
}
