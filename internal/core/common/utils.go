package common

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON decodes the first JSON object in a model response into T.
// Leading prose, markdown fences and trailing text are ignored.
func ParseJSON[T any](response string) (T, error) {
	var result T

	start := strings.IndexByte(response, '{')
	if start == -1 {
		return result, fmt.Errorf("no JSON object found in response")
	}

	dec := json.NewDecoder(strings.NewReader(response[start:]))
	if err := dec.Decode(&result); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to unmarshal JSON: %w (data: %s)", err, truncate(response[start:], 200))
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
