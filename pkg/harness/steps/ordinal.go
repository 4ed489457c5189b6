package steps

import (
	"fmt"
	"regexp"
	"strconv"
)

var ordinalRe = regexp.MustCompile(`^([0-9]+)(st|nd|rd|th)$`)

// ParseOrdinal turns "1st", "2nd", "3rd", "4th"... into a 0-based index.
// An empty ordinal is the first element.
func ParseOrdinal(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	m := ordinalRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid ordinal %q", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid ordinal %q", s)
	}
	return n - 1, nil
}
