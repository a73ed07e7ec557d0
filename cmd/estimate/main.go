// Command estimate runs a single budget estimate without the job server and
// writes the report to a file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aznelite89/travel-budget-estimator/config"
	"github.com/aznelite89/travel-budget-estimator/core/estimator"
	"github.com/aznelite89/travel-budget-estimator/core/models"
	"github.com/aznelite89/travel-budget-estimator/core/request"
)

var (
	tripTitle   = flag.String("trip-title", "", "Trip title (required)")
	origin      = flag.String("origin", "", "Origin city or airport (required)")
	destination = flag.String("destination", "", "Destination city or airport (required)")
	startDate   = flag.String("start-date", "", "Start date, YYYY-MM-DD (required)")
	endDate     = flag.String("end-date", "", "End date, YYYY-MM-DD (required)")
	travelers   = flag.Int("travelers", 0, "Number of travelers (required)")
	currency    = flag.String("currency", models.DefaultCurrency, "Currency code")
	budgetStyle = flag.String("budget-style", string(models.DefaultBudgetStyle), "budget, midrange or luxury")
	outPath     = flag.String("out", "outputs/budget.json", "Output file path")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg)

	req := models.EstimateRequest{
		TripTitle:   *tripTitle,
		Origin:      *origin,
		Destination: *destination,
		StartDate:   *startDate,
		EndDate:     *endDate,
		Travelers:   *travelers,
		Currency:    *currency,
		BudgetStyle: models.BudgetStyle(*budgetStyle),
	}
	request.ApplyDefaults(&req)
	if err := request.Validate(req); err != nil {
		fmt.Fprintf(os.Stderr, "invalid request: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	est, err := estimator.NewClaudeEstimator(estimator.ClaudeConfig{
		APIKey:      cfg.Estimator.APIKey,
		Model:       cfg.Estimator.Model,
		MaxTokens:   cfg.Estimator.MaxTokens,
		Temperature: cfg.Estimator.Temperature,
		Timeout:     cfg.Estimator.Timeout,
		BufferRates: cfg.Estimator.BufferRates(),
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize estimator")
	}

	result, err := est.Estimate(context.Background(), req)
	if err != nil {
		logger.Fatal().Err(err).Msg("Estimate failed")
	}

	var pretty map[string]interface{}
	if err := json.Unmarshal(result, &pretty); err != nil {
		logger.Fatal().Err(err).Msg("Estimator returned invalid JSON")
	}
	data, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to encode report")
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create output directory")
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write report")
	}
	fmt.Println(*outPath)
}
