// Package steps maps natural-language step text to handlers.
//
// Patterns are regular expressions evaluated in registration order. Exactly
// one pattern must match any step text: no match is an *UndefinedStepError,
// several matches an *AmbiguousStepError. SelfCheck runs that rule over a
// corpus of step texts so overlaps are caught before a scenario runs.
package steps

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/thesyncim/confcheck/pkg/harness/scenario"
)

// Args are the inputs of one step invocation.
type Args struct {
	// Params holds the capture groups of the pattern; groups that did not
	// participate in the match are empty strings.
	Params []string
	// Table is the step's data table, nil when the step has none.
	Table Table
}

// Handler executes one step.
type Handler func(ctx context.Context, sc *scenario.Context, args Args) error

// Step is one (pattern, handler) binding.
type Step struct {
	Pattern *regexp.Regexp
	Handler Handler
	// Doc is a one line description shown by the steps listing.
	Doc string
}

// UndefinedStepError is returned when no pattern matches a step.
type UndefinedStepError struct {
	Text string
}

func (e *UndefinedStepError) Error() string {
	return fmt.Sprintf("undefined step: %q", e.Text)
}

// AmbiguousStepError is returned when several patterns match a step.
type AmbiguousStepError struct {
	Text     string
	Patterns []string
}

func (e *AmbiguousStepError) Error() string {
	return fmt.Sprintf("ambiguous step %q matches %d patterns:\n\t%s",
		e.Text, len(e.Patterns), strings.Join(e.Patterns, "\n\t"))
}

// Registry is an ordered list of steps.
type Registry struct {
	steps []Step
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a step. It panics on an invalid pattern, since patterns are
// program constants.
func (r *Registry) Register(pattern, doc string, h Handler) {
	r.steps = append(r.steps, Step{Pattern: regexp.MustCompile(pattern), Handler: h, Doc: doc})
}

// Steps returns the registered steps in registration order.
func (r *Registry) Steps() []Step {
	return append([]Step(nil), r.steps...)
}

// Match is a resolved step.
type Match struct {
	Step   Step
	Params []string
}

// Match finds the single step matching text.
func (r *Registry) Match(text string) (Match, error) {
	var (
		found    Match
		patterns []string
	)
	for _, s := range r.steps {
		m := s.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		patterns = append(patterns, s.Pattern.String())
		found = Match{Step: s, Params: m[1:]}
	}
	switch len(patterns) {
	case 0:
		return Match{}, &UndefinedStepError{Text: text}
	case 1:
		return found, nil
	}
	return Match{}, &AmbiguousStepError{Text: text, Patterns: patterns}
}

// Run matches text and invokes its handler.
func (r *Registry) Run(ctx context.Context, sc *scenario.Context, text string, table Table) (Match, error) {
	m, err := r.Match(text)
	if err != nil {
		return m, err
	}
	return m, m.Step.Handler(ctx, sc, Args{Params: m.Params, Table: table})
}

// SelfCheck matches every text of corpus and joins the undefined and
// ambiguous step errors found.
func (r *Registry) SelfCheck(corpus []string) error {
	var errs []error
	seen := make(map[string]struct{}, len(corpus))
	for _, text := range corpus {
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		if _, err := r.Match(text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
