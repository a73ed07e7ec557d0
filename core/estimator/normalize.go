package estimator

import (
	"fmt"
	"strings"

	"github.com/aznelite89/travel-budget-estimator/core/models"
	"github.com/aznelite89/travel-budget-estimator/core/request"

	"github.com/shopspring/decimal"
)

// Categories lists the estimate keys of a report, in display order
var Categories = []string{"flights", "stay", "transport", "food", "activities", "docs_fees"}

var categoryAliases = map[string]string{
	"flight":          "flights",
	"airfare":         "flights",
	"accommodation":   "stay",
	"accommodations":  "stay",
	"lodging":         "stay",
	"hotel":           "stay",
	"local_transport": "transport",
	"transportation":  "transport",
	"meals":           "food",
	"doc_fees":        "docs_fees",
	"documentation":   "docs_fees",
	"docs_and_fees":   "docs_fees",
	"documents_fees":  "docs_fees",
	"visa":            "docs_fees",
}

const (
	defaultCategoryConfidence   = 0.5
	defaultValidationConfidence = 0.8
	defaultBufferRate           = 0.1
)

// Normalizer reshapes a model-produced document into the report schema
type Normalizer struct {
	// BufferRates maps a budget style to the contingency rate used when the
	// document does not state one
	BufferRates map[models.BudgetStyle]float64
}

func (n Normalizer) bufferRate(style models.BudgetStyle) float64 {
	if rate, ok := n.BufferRates[style]; ok {
		return rate
	}
	return defaultBufferRate
}

// Normalize rewrites doc in place. Meta is always overwritten with the
// submitted request so the report reflects what the user entered.
func (n Normalizer) Normalize(doc map[string]interface{}, req models.EstimateRequest) map[string]interface{} {
	if doc == nil {
		doc = map[string]interface{}{}
	}

	doc["meta"] = normalizeMeta(asMap(doc["meta"]), req)
	doc["assumptions"] = normalizeAssumptions(doc["assumptions"])

	estimates := normalizeEstimates(asMap(doc["estimates"]))
	doc["estimates"] = estimates

	totals := normalizeTotals(asMap(doc["totals"]), estimates, req.Travelers)
	doc["totals"] = totals

	doc["contingency"] = normalizeContingency(asMap(doc["contingency"]), totals, n.bufferRate(req.BudgetStyle))
	doc["validation"] = normalizeValidation(asMap(doc["validation"]))

	return doc
}

func normalizeMeta(meta map[string]interface{}, req models.EstimateRequest) map[string]interface{} {
	if meta == nil {
		meta = map[string]interface{}{}
	}

	delete(meta, "trip_dates")
	if duration := asMap(meta["duration"]); duration != nil {
		if _, ok := meta["days"]; !ok {
			meta["days"] = duration["days"]
		}
		if _, ok := meta["nights"]; !ok {
			meta["nights"] = duration["nights"]
		}
		delete(meta, "duration")
	}
	delete(meta, "party_size")

	meta["trip_title"] = req.TripTitle
	meta["origin"] = req.Origin
	meta["destination"] = req.Destination
	meta["start_date"] = req.StartDate
	meta["end_date"] = req.EndDate
	meta["travelers"] = req.Travelers
	meta["currency"] = req.Currency
	meta["budget_style"] = string(req.BudgetStyle)

	if days, nights, err := request.TripLength(req); err == nil {
		meta["days"] = days
		meta["nights"] = nights
	} else {
		for _, key := range []string{"days", "nights"} {
			if v, ok := toDecimal(meta[key]); ok {
				meta[key] = int(v.IntPart())
			} else {
				delete(meta, key)
			}
		}
	}

	return meta
}

func normalizeAssumptions(v interface{}) map[string]interface{} {
	switch a := v.(type) {
	case []interface{}:
		return map[string]interface{}{"notes": stringList(a)}
	case map[string]interface{}:
		switch notes := a["notes"].(type) {
		case []interface{}:
			a["notes"] = stringList(notes)
		case nil:
			a["notes"] = []string{}
		default:
			a["notes"] = stringList([]interface{}{notes})
		}
		for _, key := range []string{"meals_per_day", "local_transport_days_ratio", "activity_days_ratio"} {
			if raw, ok := a[key]; ok {
				if d, ok := toDecimal(raw); ok {
					a[key] = d.InexactFloat64()
				} else {
					delete(a, key)
				}
			}
		}
		return a
	}
	return map[string]interface{}{"notes": []string{}}
}

// canonicalCategory maps a model-produced category key to a report key
func canonicalCategory(key string) (string, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	if alias, ok := categoryAliases[k]; ok {
		k = alias
	}
	for _, c := range Categories {
		if c == k {
			return k, true
		}
	}
	return "", false
}

func normalizeEstimates(estimates map[string]interface{}) map[string]interface{} {
	normalized := map[string]interface{}{}
	for key, val := range estimates {
		cat := asMap(val)
		if cat == nil {
			continue
		}
		canonical, ok := canonicalCategory(key)
		if !ok {
			continue
		}
		if _, taken := normalized[canonical]; taken && canonical != strings.ToLower(key) {
			continue
		}
		normalized[canonical] = cat
	}

	for _, key := range Categories {
		cat := asMap(normalized[key])
		if cat == nil {
			cat = map[string]interface{}{"low": 0.0, "base": 0.0, "high": 0.0}
		}
		normalized[key] = normalizeCategory(cat)
	}
	return normalized
}

func normalizeCategory(cat map[string]interface{}) map[string]interface{} {
	for _, key := range []string{"low", "base", "high"} {
		cat[key] = money(cat[key])
	}

	items := []interface{}{}
	if list, ok := cat["line_items"].([]interface{}); ok {
		items = list
	}
	lineItems := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		lineItems = append(lineItems, normalizeLineItem(item))
	}
	cat["line_items"] = lineItems

	switch a := cat["assumptions"].(type) {
	case []interface{}:
		cat["assumptions"] = stringList(a)
	case nil:
		cat["assumptions"] = []string{}
	default:
		cat["assumptions"] = stringList([]interface{}{a})
	}

	if d, ok := toDecimal(cat["confidence"]); ok {
		cat["confidence"] = d.InexactFloat64()
	} else {
		cat["confidence"] = defaultCategoryConfidence
	}
	return cat
}

func normalizeLineItem(item interface{}) map[string]interface{} {
	m := asMap(item)
	if m == nil {
		return map[string]interface{}{"name": "Item", "amount": 0.0}
	}

	name := ""
	for _, key := range []string{"name", "item", "label"} {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			name = strings.TrimSpace(s)
			break
		}
	}
	if name == "" {
		name = "Item"
	}

	amount := m["amount"]
	if _, ok := toDecimal(amount); !ok {
		for _, key := range []string{"value", "cost"} {
			if _, ok := toDecimal(m[key]); ok {
				amount = m[key]
				break
			}
		}
	}

	return map[string]interface{}{"name": name, "amount": money(amount)}
}

// normalizeTotals fills totals from the category sums when the model left
// them out, and derives per_person_base from the base total.
func normalizeTotals(totals map[string]interface{}, estimates map[string]interface{}, travelers int) map[string]interface{} {
	if totals == nil {
		totals = map[string]interface{}{}
	}

	for _, key := range []string{"low", "base", "high"} {
		if _, ok := toDecimal(totals[key]); ok {
			totals[key] = money(totals[key])
			continue
		}
		sum := decimal.Zero
		for _, c := range Categories {
			if v, ok := toDecimal(asMap(estimates[c])[key]); ok {
				sum = sum.Add(v)
			}
		}
		totals[key] = sum.Round(2).InexactFloat64()
	}

	if _, ok := toDecimal(totals["per_person_base"]); ok {
		totals["per_person_base"] = money(totals["per_person_base"])
	} else {
		base, _ := toDecimal(totals["base"])
		totals["per_person_base"] = PerPerson(base, travelers).InexactFloat64()
	}
	return totals
}

// PerPerson divides an amount between travelers, rounded to cents
func PerPerson(amount decimal.Decimal, travelers int) decimal.Decimal {
	if travelers < 1 {
		travelers = 1
	}
	return amount.Div(decimal.NewFromInt(int64(travelers))).Round(2)
}

func normalizeContingency(contingency map[string]interface{}, totals map[string]interface{}, rate float64) map[string]interface{} {
	if contingency == nil {
		contingency = map[string]interface{}{}
	}

	base, _ := toDecimal(totals["base"])

	bufferRate, ok := toDecimal(contingency["buffer_rate_used"])
	if !ok {
		bufferRate = decimal.NewFromFloat(rate)
	}
	contingency["buffer_rate_used"] = bufferRate.InexactFloat64()

	subtotal, ok := toDecimal(contingency["base_subtotal"])
	if !ok {
		subtotal = base
	}
	contingency["base_subtotal"] = subtotal.Round(2).InexactFloat64()

	buffer, ok := toDecimal(contingency["buffer_amount"])
	if !ok {
		buffer = subtotal.Mul(bufferRate)
	}
	contingency["buffer_amount"] = buffer.Round(2).InexactFloat64()

	total, ok := toDecimal(contingency["total_with_buffer"])
	if !ok {
		total = subtotal.Add(buffer)
	}
	contingency["total_with_buffer"] = total.Round(2).InexactFloat64()

	return contingency
}

func normalizeValidation(validation map[string]interface{}) map[string]interface{} {
	if validation == nil {
		validation = map[string]interface{}{}
	}
	if _, ok := validation["validated"].(bool); !ok {
		validation["validated"] = true
	}
	if d, ok := toDecimal(validation["confidence"]); ok {
		validation["confidence"] = d.InexactFloat64()
	} else {
		validation["confidence"] = defaultValidationConfidence
	}
	for _, key := range []string{"issues", "recommendations"} {
		if list, ok := validation[key].([]interface{}); ok {
			validation[key] = stringList(list)
		} else {
			validation[key] = []string{}
		}
	}
	return validation
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func stringList(items []interface{}) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(item))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// toDecimal accepts JSON numbers and numeric strings such as "1,250.50"
func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

// money rounds v to cents; unusable values become 0
func money(v interface{}) float64 {
	d, ok := toDecimal(v)
	if !ok {
		return 0
	}
	return d.Round(2).InexactFloat64()
}
