// Package estimator is the boundary to the budget estimation backend. The job
// runner treats an Estimator as a black box: it hands over the request and
// stores whatever comes back, result or error.
package estimator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aznelite89/travel-budget-estimator/core/models"
)

// Estimator produces a budget estimate report for a trip
type Estimator interface {
	Estimate(ctx context.Context, req models.EstimateRequest) (json.RawMessage, error)
}

// Func adapts a plain function to the Estimator interface
type Func func(ctx context.Context, req models.EstimateRequest) (json.RawMessage, error)

// Estimate calls f
func (f Func) Estimate(ctx context.Context, req models.EstimateRequest) (json.RawMessage, error) {
	return f(ctx, req)
}

// Failure kinds
const (
	KindAPI     = "APIError"
	KindParse   = "ParseError"
	KindSchema  = "SchemaError"
	KindTimeout = "Timeout"
	KindConfig  = "ConfigError"
)

// Failure is an estimation error tagged with a kind
type Failure struct {
	Kind string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(kind string, format string, args ...interface{}) *Failure {
	return &Failure{Kind: kind, Err: fmt.Errorf(format, args...)}
}
