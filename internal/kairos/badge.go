package kairos

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeBadge strips whitespace and leading zeros so badges from the
// attendance feed and the directory compare equal despite differing
// padding. An all-zero badge normalizes to "0".
func NormalizeBadge(badge string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(badge), "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

func badgeAsInt(badge string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(badge), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("badge must be numeric: %q", badge)
	}
	return n, nil
}
