package request

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aznelite89/travel-budget-estimator/core/models"
)

func TestParseEstimateRequestJSON(t *testing.T) {
	body := []byte(`{
		"trip_title": " Tokyo spring ",
		"origin": "KUL",
		"destination": "NRT",
		"start_date": "2026-04-01",
		"end_date": "2026-04-08",
		"travelers": 2
	}`)

	req, err := ParseEstimateRequest(body, "application/json")
	require.NoError(t, err)
	assert.Equal(t, " Tokyo spring ", req.TripTitle)
	assert.Equal(t, "MYR", req.Currency)
	assert.Equal(t, models.BudgetStyleMidrange, req.BudgetStyle)
	assert.Equal(t, 2, req.Travelers)
}

func TestParseEstimateRequestKeepsSubmittedValues(t *testing.T) {
	body := []byte(`{
		"trip_title": "Bali  week",
		"origin": " kul",
		"destination": "DPS",
		"start_date": "2026-06-01",
		"end_date": "2026-06-07",
		"travelers": 4,
		"currency": "usd"
	}`)

	req, err := ParseEstimateRequest(body, "application/json")
	require.NoError(t, err)
	assert.Equal(t, models.EstimateRequest{
		TripTitle:   "Bali  week",
		Origin:      " kul",
		Destination: "DPS",
		StartDate:   "2026-06-01",
		EndDate:     "2026-06-07",
		Travelers:   4,
		Currency:    "usd",
		BudgetStyle: models.BudgetStyleMidrange,
	}, req)
}

func TestParseEstimateRequestYAML(t *testing.T) {
	body := []byte(`
trip_title: Osaka food run
origin: KUL
destination: KIX
start_date: "2026-05-01"
end_date: "2026-05-04"
travelers: 1
currency: JPY
budget_style: luxury
`)

	req, err := ParseEstimateRequest(body, "application/yaml")
	require.NoError(t, err)
	assert.Equal(t, "KIX", req.Destination)
	assert.Equal(t, "JPY", req.Currency)
	assert.Equal(t, models.BudgetStyleLuxury, req.BudgetStyle)
}

func TestParseEstimateRequestRejectsMalformedJSON(t *testing.T) {
	_, err := ParseEstimateRequest([]byte(`{"origin":`), "application/json")
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestValidate(t *testing.T) {
	valid := models.EstimateRequest{
		TripTitle:   "Trip",
		Origin:      "KUL",
		Destination: "NRT",
		StartDate:   "2026-04-01",
		EndDate:     "2026-04-08",
		Travelers:   2,
		Currency:    "MYR",
		BudgetStyle: models.BudgetStyleBudget,
	}

	tests := []struct {
		name   string
		mutate func(r *models.EstimateRequest)
		field  string
	}{
		{"valid", func(r *models.EstimateRequest) {}, ""},
		{"missing origin", func(r *models.EstimateRequest) { r.Origin = "" }, "origin"},
		{"blank destination", func(r *models.EstimateRequest) { r.Destination = "   " }, "destination"},
		{"blank currency", func(r *models.EstimateRequest) { r.Currency = " " }, "currency"},
		{"zero travelers", func(r *models.EstimateRequest) { r.Travelers = 0 }, "travelers"},
		{"bad start date", func(r *models.EstimateRequest) { r.StartDate = "01/04/2026" }, "start_date"},
		{"unknown style", func(r *models.EstimateRequest) { r.BudgetStyle = "backpacker" }, "budget_style"},
		{"end before start", func(r *models.EstimateRequest) { r.EndDate = "2026-03-30" }, "end_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			err := Validate(req)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Contains(t, verr.Fields, tt.field)
			assert.Contains(t, verr.Error(), tt.field)
		})
	}
}

func TestTripLength(t *testing.T) {
	days, nights, err := TripLength(models.EstimateRequest{StartDate: "2026-04-01", EndDate: "2026-04-08"})
	require.NoError(t, err)
	assert.Equal(t, 8, days)
	assert.Equal(t, 7, nights)

	days, nights, err = TripLength(models.EstimateRequest{StartDate: "2026-04-01", EndDate: "2026-04-01"})
	require.NoError(t, err)
	assert.Equal(t, 1, days)
	assert.Equal(t, 0, nights)

	_, _, err = TripLength(models.EstimateRequest{StartDate: "2026-04-02", EndDate: "2026-04-01"})
	assert.Error(t, err)
}
