package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// jsonObjectPattern extracts the first brace-delimited object from judge
// output that arrives wrapped in prose or markdown fences.
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// decodeLooseJSON decodes judge output in two stages: a strict decode first,
// then a decode of the first brace-delimited object found in the raw text.
// Callers treat any returned error as a capability failure and take their
// fallback path.
func decodeLooseJSON(raw string, v any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("empty response")
	}
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	extracted := jsonObjectPattern.FindString(raw)
	if extracted == "" {
		return fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(extracted), v); err != nil {
		return fmt.Errorf("failed to decode extracted JSON: %w", err)
	}
	return nil
}
