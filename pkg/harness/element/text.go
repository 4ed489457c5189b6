package element

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"github.com/thesyncim/confcheck/pkg/harness/selector"
	"github.com/thesyncim/confcheck/pkg/harness/verify"
)

// Comparison selects how a text or value is compared with the expectation.
type Comparison int

const (
	Exact Comparison = iota
	Substring
	Pattern
)

func (c Comparison) String() string {
	switch c {
	case Substring:
		return "contain"
	case Pattern:
		return "match"
	}
	return "be"
}

// Compare checks actual against expected using c, inverted by negate.
func Compare(actual, expected string, c Comparison, negate bool, msg string) error {
	switch c {
	case Substring:
		if strings.Contains(actual, expected) == !negate {
			return nil
		}
		op := "text containing"
		if negate {
			op = "text not containing"
		}
		return &verify.AssertionError{Message: msg, Op: op, Actual: actual, Expected: expected}
	case Pattern:
		if negate {
			return verify.NotMatch(actual, expected, msg)
		}
		return verify.Match(actual, expected, msg)
	}
	if negate {
		return verify.NotEqual(actual, expected, msg)
	}
	return verify.Equal(actual, expected, msg)
}

// ReadText returns the trimmed text of the index-th element matching t.
func ReadText(ctx context.Context, p Page, t selector.Target, index int) (string, error) {
	el, err := Nth(ctx, p, t, index)
	if err != nil {
		return "", err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read text of %s: %w", t, err)
	}
	return strings.TrimSpace(text), nil
}

// ReadValue returns the form value of the index-th element matching t.
func ReadValue(ctx context.Context, p Page, t selector.Target, index int) (string, error) {
	el, err := Nth(ctx, p, t, index)
	if err != nil {
		return "", err
	}
	v, err := el.Value(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read value of %s: %w", t, err)
	}
	return v, nil
}

func verifyText(ctx context.Context, p Page, t selector.Target, expected string, c Comparison, negate bool, index int) error {
	log.Debug().Str("target", t.String()).Str("expected", expected).Str("comparison", c.String()).Bool("negate", negate).Msg("verify element text")
	actual, err := ReadText(ctx, p, t, index)
	if err != nil {
		return err
	}
	return Compare(actual, expected, c, negate, fmt.Sprintf("text of %s", t))
}

func verifyValue(ctx context.Context, p Page, t selector.Target, expected string, c Comparison, negate bool, index int) error {
	log.Debug().Str("target", t.String()).Str("expected", expected).Str("comparison", c.String()).Bool("negate", negate).Msg("verify element value")
	actual, err := ReadValue(ctx, p, t, index)
	if err != nil {
		return err
	}
	return Compare(actual, expected, c, negate, fmt.Sprintf("value of %s", t))
}

// VerifyText checks the element text equals expected.
func VerifyText(ctx context.Context, p Page, t selector.Target, expected string, negate bool, index int) error {
	return verifyText(ctx, p, t, expected, Exact, negate, index)
}

// VerifyContainsText checks the element text contains expected.
func VerifyContainsText(ctx context.Context, p Page, t selector.Target, expected string, negate bool, index int) error {
	return verifyText(ctx, p, t, expected, Substring, negate, index)
}

// VerifyMatchText checks the element text matches pattern, ignoring case.
func VerifyMatchText(ctx context.Context, p Page, t selector.Target, pattern string, negate bool, index int) error {
	return verifyText(ctx, p, t, pattern, Pattern, negate, index)
}

// VerifyValue checks the element value equals expected.
func VerifyValue(ctx context.Context, p Page, t selector.Target, expected string, negate bool, index int) error {
	return verifyValue(ctx, p, t, expected, Exact, negate, index)
}

// VerifyContainsValue checks the element value contains expected.
func VerifyContainsValue(ctx context.Context, p Page, t selector.Target, expected string, negate bool, index int) error {
	return verifyValue(ctx, p, t, expected, Substring, negate, index)
}

// VerifyMatchValue checks the element value matches pattern, ignoring case.
func VerifyMatchValue(ctx context.Context, p Page, t selector.Target, pattern string, negate bool, index int) error {
	return verifyValue(ctx, p, t, pattern, Pattern, negate, index)
}
