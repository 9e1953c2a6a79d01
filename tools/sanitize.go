package tools

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Models that learned tool calling from Python transcripts sometimes emit
// Python literals inside otherwise-valid JSON arguments. These rewrites run
// only after a strict JSON parse has already failed.
var pythonLiterals = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`\bNone\b`), "null"},
	{regexp.MustCompile(`\bTrue\b`), "true"},
	{regexp.MustCompile(`\bFalse\b`), "false"},
}

// DecodeArguments parses a model-emitted argument string into a map. Empty
// input decodes to an empty map. If strict JSON parsing fails, Python
// literals are normalized and the parse retried once; the returned error
// carries a hint the model can act on.
func DecodeArguments(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(trimmed), &args); err == nil {
		return args, nil
	}

	normalized := trimmed
	for _, lit := range pythonLiterals {
		normalized = lit.pattern.ReplaceAllString(normalized, lit.repl)
	}
	if err := json.Unmarshal([]byte(normalized), &args); err != nil {
		return nil, fmt.Errorf("could not decode tool arguments: %w; ensure arguments are valid JSON and retry", err)
	}
	return args, nil
}

// SanitizeArguments cleans scalar string values in place and returns the map.
// Case-insensitive "none"/"null" become nil, "true"/"false" become booleans,
// and remaining strings are whitespace-trimmed. Non-string values and nested
// structures pass through untouched.
func SanitizeArguments(args map[string]any) map[string]any {
	for key, value := range args {
		s, ok := value.(string)
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "none", "null":
			args[key] = nil
		case "true":
			args[key] = true
		case "false":
			args[key] = false
		default:
			args[key] = strings.TrimSpace(s)
		}
	}
	return args
}
