// Package strings holds small string-slice helpers shared by configuration
// parsing.
package strings

import (
	"strings"
)

// DedupeAndTrim trims whitespace from each element and drops empties and
// duplicates, preserving first-seen order. Config uses it to normalize
// comma-separated env lists such as the Kafka broker set, where a trailing
// comma or a repeated broker must not produce a bogus connection target.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}
