package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/aznelite89/travel-budget-estimator/core/models"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their wire names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// ValidationError lists the problems found in a submitted request, keyed by field
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+e.Fields[name])
	}
	return "invalid estimate request: " + strings.Join(parts, "; ")
}

// ParseEstimateRequest decodes a submission body. YAML is accepted when the
// content type says so, JSON otherwise. Defaults are applied before validation.
func ParseEstimateRequest(body []byte, contentType string) (models.EstimateRequest, error) {
	var req models.EstimateRequest

	if isYAML(contentType) {
		if err := yaml.Unmarshal(body, &req); err != nil {
			return req, fmt.Errorf("failed to parse YAML: %w", err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(body))
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("failed to parse JSON: %w", err)
		}
	}

	ApplyDefaults(&req)
	if err := Validate(req); err != nil {
		return req, err
	}
	return req, nil
}

// ApplyDefaults fills in currency and budget style when they are omitted.
// Submitted values are kept as sent so the stored request echoes the payload.
func ApplyDefaults(req *models.EstimateRequest) {
	if req.Currency == "" {
		req.Currency = models.DefaultCurrency
	}
	if req.BudgetStyle == "" {
		req.BudgetStyle = models.DefaultBudgetStyle
	}
}

// Validate checks field constraints and that the trip does not end before it starts
func Validate(req models.EstimateRequest) error {
	fields := map[string]string{}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields[fe.Field()] = describe(fe)
		}
	}

	_, startBad := fields["start_date"]
	_, endBad := fields["end_date"]
	if !startBad && !endBad {
		start, _ := time.Parse(dateLayout, req.StartDate)
		end, _ := time.Parse(dateLayout, req.EndDate)
		if end.Before(start) {
			fields["end_date"] = "must not be before start_date"
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// TripLength returns the number of days and nights covered by the request
func TripLength(req models.EstimateRequest) (days, nights int, err error) {
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid start_date: %w", err)
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid end_date: %w", err)
	}
	nights = int(end.Sub(start).Hours() / 24)
	if nights < 0 {
		return 0, 0, fmt.Errorf("end_date is before start_date")
	}
	return nights + 1, nights, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "gte":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "failed " + fe.Tag() + " validation"
}

func isYAML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "yaml")
}
