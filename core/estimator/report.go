package estimator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aznelite89/travel-budget-estimator/core/models"

	"github.com/go-playground/validator/v10"
)

// Report is the TravelBudgetEstimateV1 document stored as a job result
type Report struct {
	Meta        ReportMeta      `json:"meta"`
	Assumptions Assumptions     `json:"assumptions"`
	Estimates   Estimates       `json:"estimates"`
	Totals      Totals          `json:"totals"`
	Contingency Contingency     `json:"contingency"`
	Validation  ValidationBlock `json:"validation"`
}

// ReportMeta echoes the trip the report was produced for
type ReportMeta struct {
	TripTitle   string             `json:"trip_title" validate:"required"`
	Origin      string             `json:"origin" validate:"required"`
	Destination string             `json:"destination" validate:"required"`
	StartDate   string             `json:"start_date" validate:"required"`
	EndDate     string             `json:"end_date" validate:"required"`
	Days        *int               `json:"days,omitempty" validate:"omitempty,gte=0"`
	Nights      *int               `json:"nights,omitempty" validate:"omitempty,gte=0"`
	Travelers   int                `json:"travelers" validate:"gte=1"`
	Currency    string             `json:"currency" validate:"required"`
	BudgetStyle models.BudgetStyle `json:"budget_style" validate:"oneof=budget midrange luxury"`
}

type Assumptions struct {
	MealsPerDay             *float64 `json:"meals_per_day,omitempty" validate:"omitempty,gte=0"`
	LocalTransportDaysRatio *float64 `json:"local_transport_days_ratio,omitempty" validate:"omitempty,gte=0,lte=1"`
	ActivityDaysRatio       *float64 `json:"activity_days_ratio,omitempty" validate:"omitempty,gte=0,lte=1"`
	Notes                   []string `json:"notes"`
}

// Estimates holds one range per budget category
type Estimates struct {
	Flights    CategoryEstimate `json:"flights"`
	Stay       CategoryEstimate `json:"stay"`
	Transport  CategoryEstimate `json:"transport"`
	Food       CategoryEstimate `json:"food"`
	Activities CategoryEstimate `json:"activities"`
	DocsFees   CategoryEstimate `json:"docs_fees"`
}

// CategoryEstimate is a low/base/high range with supporting detail
type CategoryEstimate struct {
	Low         float64    `json:"low" validate:"gte=0"`
	Base        float64    `json:"base" validate:"gte=0,gtefield=Low"`
	High        float64    `json:"high" validate:"gte=0,gtefield=Base"`
	LineItems   []LineItem `json:"line_items" validate:"dive"`
	Assumptions []string   `json:"assumptions"`
	Confidence  float64    `json:"confidence" validate:"gte=0,lte=1"`
}

type LineItem struct {
	Name   string  `json:"name" validate:"required"`
	Amount float64 `json:"amount" validate:"gte=0"`
}

type Totals struct {
	Low           float64 `json:"low" validate:"gte=0"`
	Base          float64 `json:"base" validate:"gte=0"`
	High          float64 `json:"high" validate:"gte=0,gtefield=Base"`
	PerPersonBase float64 `json:"per_person_base" validate:"gte=0"`
}

type Contingency struct {
	BufferRateUsed  float64 `json:"buffer_rate_used" validate:"gte=0,lte=1"`
	BaseSubtotal    float64 `json:"base_subtotal" validate:"gte=0"`
	BufferAmount    float64 `json:"buffer_amount" validate:"gte=0"`
	TotalWithBuffer float64 `json:"total_with_buffer" validate:"gte=0"`
}

type ValidationBlock struct {
	Validated       bool     `json:"validated"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
	Confidence      float64  `json:"confidence" validate:"gte=0,lte=1"`
}

var reportValidator = validator.New()

// DecodeReport strictly decodes a normalized document and validates it.
// Unknown fields are rejected.
func DecodeReport(doc map[string]interface{}) (*Report, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fail(KindSchema, "failed to encode report: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var report Report
	if err := dec.Decode(&report); err != nil {
		return nil, fail(KindSchema, "report does not match schema: %w", err)
	}

	if err := report.Validate(); err != nil {
		return nil, err
	}
	return &report, nil
}

// Validate checks value ranges and ordering constraints
func (r *Report) Validate() error {
	if err := reportValidator.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fail(KindSchema, "%w", err)
		}
		problems := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
		return fail(KindSchema, "invalid report: %s", strings.Join(problems, "; "))
	}
	return nil
}
