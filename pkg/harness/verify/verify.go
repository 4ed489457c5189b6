// Package verify provides the generic assertions used by step handlers.
//
// Every primitive logs what it is about to check at trace level and, when
// the check does not hold, returns an *AssertionError that carries both the
// actual and the expected value so a failed scenario can be triaged from
// the report alone.
package verify

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
)

// AssertionError reports an expectation that was not met.
type AssertionError struct {
	Message  string // caller supplied context, may be empty
	Op       string // human readable comparison, e.g. "equal to"
	Actual   any
	Expected any
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	if e.Message != "" {
		b.WriteString(e.Message)
		b.WriteString("\n\t")
	} else {
		b.WriteString("assertion failed\n\t")
	}
	fmt.Fprintf(&b, "Expected %s: %v\n\tActual: %v", e.Op, format(e.Expected), format(e.Actual))
	return b.String()
}

// IsAssertion reports whether err is (or wraps) an *AssertionError.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

func format(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case []string:
		return "[" + strings.Join(x, ", ") + "]"
	default:
		return fmt.Sprintf("%v", x)
	}
}

func fail(msg, op string, actual, expected any) error {
	return &AssertionError{Message: msg, Op: op, Actual: actual, Expected: expected}
}

// Equal checks that actual and expected are equal.
func Equal(actual, expected any, msg string) error {
	log.Trace().Msgf("Verify %v should be equal to %v", actual, expected)
	if !assert.ObjectsAreEqual(expected, actual) {
		return fail(msg, "equal to", actual, expected)
	}
	return nil
}

// NotEqual checks that actual and expected differ.
func NotEqual(actual, expected any, msg string) error {
	log.Trace().Msgf("Verify %v should not be equal to %v", actual, expected)
	if assert.ObjectsAreEqual(expected, actual) {
		return fail(msg, "not equal to", actual, expected)
	}
	return nil
}

// compile builds a case-insensitive regular expression. A bad pattern is a
// fixture problem, not an unmet expectation, so it is reported as a plain error.
func compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}

// Match checks that actual matches pattern, ignoring case.
func Match(actual, pattern, msg string) error {
	log.Trace().Msgf("Verify text should match to %s", pattern)
	re, err := compile(pattern)
	if err != nil {
		return err
	}
	if !re.MatchString(actual) {
		return fail(msg, "RegEx", actual, pattern)
	}
	return nil
}

// NotMatch checks that actual does not match pattern, ignoring case.
func NotMatch(actual, pattern, msg string) error {
	log.Trace().Msgf("Verify text should not match to %s", pattern)
	re, err := compile(pattern)
	if err != nil {
		return err
	}
	if re.MatchString(actual) {
		return fail(msg, "not RegEx", actual, pattern)
	}
	return nil
}

// GreaterOrEqual checks actual >= expected.
func GreaterOrEqual(actual, expected float64, msg string) error {
	log.Trace().Msgf("Verify %v should be greater than equal to %v", actual, expected)
	if actual < expected {
		return fail(msg, "greater than or equal to", actual, expected)
	}
	return nil
}

// LessOrEqual checks actual <= expected.
func LessOrEqual(actual, expected float64, msg string) error {
	log.Trace().Msgf("Verify %v should be less than equal to %v", actual, expected)
	if actual > expected {
		return fail(msg, "less than or equal to", actual, expected)
	}
	return nil
}

// Less checks actual < expected.
func Less(actual, expected float64, msg string) error {
	log.Trace().Msgf("Verify %v should be less than %v", actual, expected)
	if actual >= expected {
		return fail(msg, "less than", actual, expected)
	}
	return nil
}

// Contains checks that item is a member of items.
func Contains[T comparable](items []T, item T, msg string) error {
	log.Trace().Msgf("Verify array should contain %v", item)
	for _, it := range items {
		if it == item {
			return nil
		}
	}
	return fail(msg, "item", items, item)
}

// NotContains checks that item is not a member of items.
func NotContains[T comparable](items []T, item T, msg string) error {
	log.Trace().Msgf("Verify array should not contain %v", item)
	for _, it := range items {
		if it == item {
			return fail(msg, "no item", items, item)
		}
	}
	return nil
}

// ContainsAll checks that every element of subset is a member of items.
// A failure reports only the absent elements as expected.
func ContainsAll[T comparable](items, subset []T, msg string) error {
	log.Trace().Msgf("Verify array should contain all of %v", subset)
	set := make(map[T]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	var missing []T
	for _, it := range subset {
		if _, ok := set[it]; !ok {
			missing = append(missing, it)
		}
	}
	if len(missing) > 0 {
		return fail(msg, "all items, missing", items, missing)
	}
	return nil
}
