// Package headers parses "Key: Value" header flags.
package headers

import (
	"fmt"
	"net/http"
	"strings"
)

// Parse converts header lines ("Key: Value") into an http.Header. Repeated
// keys accumulate values; a line without a colon or key is an error.
func Parse(lines []string) (http.Header, error) {
	h := make(http.Header, len(lines))
	for _, line := range lines {
		key, value, ok := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed header %q, want \"Key: Value\"", line)
		}
		h.Add(key, strings.TrimSpace(value))
	}
	return h, nil
}
