package estimator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aznelite89/travel-budget-estimator/core/models"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
)

const (
	maxAttempts  = 2
	defaultModel = "claude-sonnet-4-5-20250929"
)

// ClaudeConfig holds the settings of the Claude estimator
type ClaudeConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	BufferRates map[models.BudgetStyle]float64
}

// completeFunc sends one system+user prompt and returns the reply text
type completeFunc func(ctx context.Context, system, prompt string) (string, error)

// ClaudeEstimator asks Claude for a TravelBudgetEstimateV1 report
type ClaudeEstimator struct {
	config     ClaudeConfig
	complete   completeFunc
	normalizer Normalizer
	logger     arbor.ILogger
}

// NewClaudeEstimator creates an estimator backed by the Anthropic API
func NewClaudeEstimator(cfg ClaudeConfig, logger arbor.ILogger) (*ClaudeEstimator, error) {
	if cfg.APIKey == "" {
		return nil, fail(KindConfig, "anthropic API key is not set")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	e := newClaudeEstimator(cfg, nil, logger)
	e.complete = func(ctx context.Context, system, prompt string) (string, error) {
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(cfg.Model),
			MaxTokens: int64(cfg.MaxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
			System: []anthropic.TextBlockParam{
				{Text: system},
			},
		}
		if cfg.Temperature > 0 {
			params.Temperature = anthropic.Float(cfg.Temperature)
		}

		resp, err := client.Messages.New(ctx, params)
		if err != nil {
			return "", err
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		return text.String(), nil
	}
	return e, nil
}

func newClaudeEstimator(cfg ClaudeConfig, complete completeFunc, logger arbor.ILogger) *ClaudeEstimator {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &ClaudeEstimator{
		config:     cfg,
		complete:   complete,
		normalizer: Normalizer{BufferRates: cfg.BufferRates},
		logger:     logger,
	}
}

// Estimate produces a normalized, validated report. A reply that cannot be
// parsed is requested once more; API and schema failures are not retried.
func (e *ClaudeEstimator) Estimate(ctx context.Context, req models.EstimateRequest) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	system := systemPrompt()
	prompt := buildPrompt(req, e.normalizer.bufferRate(req.BudgetStyle))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		reply, err := e.complete(ctx, system, prompt)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fail(KindTimeout, "estimate did not finish within %s", e.config.Timeout)
			}
			return nil, &Failure{Kind: KindAPI, Err: err}
		}

		e.logger.Debug().
			Int("attempt", attempt).
			Int("reply_length", len(reply)).
			Dur("duration", time.Since(start)).
			Msg("Received estimator reply")

		doc, err := ExtractJSON(reply)
		if err != nil {
			lastErr = err
			e.logger.Warn().
				Int("attempt", attempt).
				Str("reply_preview", preview(reply, 2000)).
				Err(err).
				Msg("Failed to parse estimator reply")
			continue
		}

		return e.finish(doc, req)
	}

	return nil, lastErr
}

func (e *ClaudeEstimator) finish(doc map[string]interface{}, req models.EstimateRequest) (json.RawMessage, error) {
	doc = e.normalizer.Normalize(doc, req)
	report, err := DecodeReport(doc)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fail(KindSchema, "failed to encode report: %w", err)
	}
	return raw, nil
}

func systemPrompt() string {
	return "You are a travel budget analyst. You estimate realistic trip costs " +
		"and answer with a single JSON object and nothing else."
}

func buildPrompt(req models.EstimateRequest, bufferRate float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Estimate the budget for the trip %q.\n", req.TripTitle)
	fmt.Fprintf(&b, "Origin: %s\nDestination: %s\n", req.Origin, req.Destination)
	fmt.Fprintf(&b, "Dates: %s to %s\n", req.StartDate, req.EndDate)
	fmt.Fprintf(&b, "Travelers: %d\nCurrency: %s\nBudget style: %s\n", req.Travelers, req.Currency, req.BudgetStyle)
	fmt.Fprintf(&b, "Use a contingency buffer rate of %.2f.\n\n", bufferRate)
	b.WriteString("Reply with JSON of this shape, all amounts in the trip currency:\n")
	b.WriteString(`{
  "meta": {"trip_title": "", "origin": "", "destination": "", "start_date": "", "end_date": "", "days": 0, "nights": 0, "travelers": 1, "currency": "", "budget_style": ""},
  "assumptions": {"meals_per_day": 3, "local_transport_days_ratio": 0.8, "activity_days_ratio": 0.6, "notes": []},
  "estimates": {
`)
	for i, c := range Categories {
		sep := ","
		if i == len(Categories)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, `    %q: {"low": 0, "base": 0, "high": 0, "line_items": [{"name": "", "amount": 0}], "assumptions": [], "confidence": 0.0}%s`+"\n", c, sep)
	}
	b.WriteString(`  },
  "totals": {"low": 0, "base": 0, "high": 0, "per_person_base": 0},
  "contingency": {"buffer_rate_used": 0, "base_subtotal": 0, "buffer_amount": 0, "total_with_buffer": 0},
  "validation": {"validated": true, "issues": [], "recommendations": [], "confidence": 0.0}
}
`)
	b.WriteString("Each category must satisfy low <= base <= high. Confidences are between 0 and 1.\n")
	return b.String()
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
