package models

// EstimateRequest is the trip description handed to the estimator
type EstimateRequest struct {
	TripTitle   string      `json:"trip_title" yaml:"trip_title" validate:"required,notblank"`
	Origin      string      `json:"origin" yaml:"origin" validate:"required,notblank"`
	Destination string      `json:"destination" yaml:"destination" validate:"required,notblank"`
	StartDate   string      `json:"start_date" yaml:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string      `json:"end_date" yaml:"end_date" validate:"required,datetime=2006-01-02"`
	Travelers   int         `json:"travelers" yaml:"travelers" validate:"gte=1"`
	Currency    string      `json:"currency" yaml:"currency" validate:"required,notblank"`
	BudgetStyle BudgetStyle `json:"budget_style" yaml:"budget_style" validate:"required,oneof=budget midrange luxury"`
}

// BudgetStyle selects the spending level the estimate assumes
type BudgetStyle string

const (
	BudgetStyleBudget   BudgetStyle = "budget"
	BudgetStyleMidrange BudgetStyle = "midrange"
	BudgetStyleLuxury   BudgetStyle = "luxury"
)

const (
	DefaultCurrency    = "MYR"
	DefaultBudgetStyle = BudgetStyleMidrange
)
