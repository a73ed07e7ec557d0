package estimator

import (
	"encoding/json"
	"regexp"
	"strings"
)

var greedyObject = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON pulls a single JSON object out of a model reply that may be
// wrapped in markdown fences or surrounded by prose.
func ExtractJSON(text string) (map[string]interface{}, error) {
	text = stripCodeFences(text)
	if text == "" {
		return nil, fail(KindParse, "no content to parse")
	}

	if obj, ok := decodeObject(text); ok {
		return obj, nil
	}
	if candidate := firstBraceObject(text); candidate != "" {
		if obj, ok := decodeObject(candidate); ok {
			return obj, nil
		}
	}
	if m := greedyObject.FindString(text); m != "" {
		if obj, ok := decodeObject(m); ok {
			return obj, nil
		}
	}

	return nil, fail(KindParse, "could not find a valid JSON object in the reply")
}

func decodeObject(s string) (map[string]interface{}, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func stripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	if end := strings.Index(s, "```"); end != -1 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// firstBraceObject returns the first balanced {...} span, ignoring braces
// inside quoted strings
func firstBraceObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	var quote byte

	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case inString:
			if c == quote {
				inString = false
			}
		case c == '"' || c == '\'':
			inString = true
			quote = c
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
