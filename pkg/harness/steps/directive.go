package steps

import (
	"strings"

	"github.com/thesyncim/confcheck/pkg/harness/element"
)

// Directive changes how one expected value is compared.
type Directive string

const (
	NoDirective Directive = ""
	Ignore      Directive = "ignore:"
	Contains    Directive = "contains:"
	Regex       Directive = "regex:"
)

// ParseDirective splits a leading directive off value. Only the first
// prefix is recognised; the rest of the value is taken literally after
// trimming surrounding spaces.
func ParseDirective(value string) (Directive, string) {
	for _, d := range []Directive{Ignore, Contains, Regex} {
		if rest, ok := strings.CutPrefix(value, string(d)); ok {
			return d, strings.TrimSpace(rest)
		}
	}
	return NoDirective, value
}

// Comparison returns the element comparison for d. Ignore has none.
func (d Directive) Comparison() element.Comparison {
	switch d {
	case Contains:
		return element.Substring
	case Regex:
		return element.Pattern
	}
	return element.Exact
}

// Check compares actual with a possibly prefixed expected value.
func Check(actual, expected, msg string) error {
	d, want := ParseDirective(expected)
	if d == Ignore {
		return nil
	}
	return element.Compare(actual, want, d.Comparison(), false, msg)
}
