package estimator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"plain", `{"totals": {"base": 100}}`},
		{"fenced", "```json\n{\"totals\": {\"base\": 100}}\n```"},
		{"fenced without language", "```\n{\"totals\": {\"base\": 100}}\n```"},
		{"prose around", "Here is the estimate:\n{\"totals\": {\"base\": 100}}\nLet me know if you need more."},
		{"braces in strings", `Result: {"totals": {"base": 100}, "note": "use } carefully {"} trailing {`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ExtractJSON(tt.reply)
			require.NoError(t, err)
			totals := asMap(doc["totals"])
			require.NotNil(t, totals)
			assert.Equal(t, 100.0, totals["base"])
		})
	}
}

func TestExtractJSONFailures(t *testing.T) {
	for _, reply := range []string{"", "   ", "no json here", "[1, 2, 3]", "{broken"} {
		_, err := ExtractJSON(reply)
		require.Error(t, err, "reply %q", reply)

		var failure *Failure
		require.True(t, errors.As(err, &failure))
		assert.Equal(t, KindParse, failure.Kind)
	}
}

func TestFirstBraceObject(t *testing.T) {
	assert.Equal(t, `{"a": {"b": 1}}`, firstBraceObject(`x {"a": {"b": 1}} y {"c": 2}`))
	assert.Equal(t, `{"a": "\"}"}`, firstBraceObject(`{"a": "\"}"}`))
	assert.Equal(t, "", firstBraceObject(`{"a": 1`))
	assert.Equal(t, "", firstBraceObject(`nothing`))
}
