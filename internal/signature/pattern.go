package signature

import (
	"fmt"
	"strconv"
	"strings"
)

// wildcard marks a pattern byte that matches anything.
const wildcard int16 = -1

// ParsePattern turns a space-separated hex pattern like "A1 ?? ?? 8B 40" into
// a matchable byte sequence. "??" and "?" are wildcards.
func ParsePattern(pattern string) ([]int16, error) {
	fields := strings.Fields(pattern)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty pattern")
	}

	out := make([]int16, 0, len(fields))
	for _, field := range fields {
		if field == "??" || field == "?" {
			out = append(out, wildcard)
			continue
		}
		val, err := strconv.ParseUint(field, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern byte %q: %w", field, err)
		}
		out = append(out, int16(val))
	}

	return out, nil
}

// ScanPattern returns the index of the first match of pattern in hay, or -1.
// A wildcard-free pattern degenerates to a plain subsequence search.
func ScanPattern(hay []byte, pattern []int16) int {
	if len(hay) == 0 || len(pattern) == 0 || len(pattern) > len(hay) {
		return -1
	}

	for i := 0; i <= len(hay)-len(pattern); i++ {
		match := true

		for j := 0; j < len(pattern); j++ {
			if pattern[j] == wildcard {
				continue
			}
			if int16(hay[i+j]) != pattern[j] {
				match = false
				break
			}
		}

		if match {
			return i
		}
	}

	return -1
}
