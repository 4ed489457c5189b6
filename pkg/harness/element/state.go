package element

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"github.com/thesyncim/confcheck/pkg/harness/selector"
	"github.com/thesyncim/confcheck/pkg/harness/verify"
)

// State is a boolean UI state an element can be checked for.
type State string

const (
	Displayed State = "displayed"
	Visible   State = "visible"
	Hidden    State = "hidden"
	Enabled   State = "enabled"
	Disabled  State = "disabled"
	Checked   State = "checked"
	Editable  State = "editable"
)

// States lists every supported state.
var States = []State{Displayed, Visible, Hidden, Enabled, Disabled, Checked, Editable}

// ParseState validates a state name.
func ParseState(s string) (State, error) {
	for _, st := range States {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown element state %q", s)
}

// VerifyState checks that the index-th element matching t is in state, or
// is not in it when negate is set. A missing element counts as hidden.
func VerifyState(ctx context.Context, p Page, t selector.Target, state State, negate bool, index int) error {
	log.Debug().Str("target", t.String()).Str("state", string(state)).Bool("negate", negate).Msg("verify element state")

	el, err := Nth(ctx, p, t, index)
	if err != nil {
		if absentOK(state, negate) && verify.IsAssertion(err) {
			return nil
		}
		return err
	}

	got, err := inState(ctx, el, state)
	if err != nil {
		return fmt.Errorf("failed to read %s state of %s: %w", state, t, err)
	}
	want := !negate
	if got != want {
		expected := string(state)
		if negate {
			expected = "not " + expected
		}
		return &verify.AssertionError{
			Message:  fmt.Sprintf("element %s should be %s", t, expected),
			Op:       "state",
			Actual:   describe(state, got),
			Expected: expected,
		}
	}
	return nil
}

// absentOK reports whether a missing element satisfies the expectation.
func absentOK(state State, negate bool) bool {
	switch state {
	case Hidden:
		return !negate
	case Displayed, Visible:
		return negate
	}
	return false
}

func describe(state State, in bool) string {
	if in {
		return string(state)
	}
	return "not " + string(state)
}

func inState(ctx context.Context, el Element, state State) (bool, error) {
	switch state {
	case Displayed:
		return el.Visible(ctx)
	case Visible:
		vis, err := el.Visible(ctx)
		if err != nil || !vis {
			return false, err
		}
		box, err := el.Box(ctx)
		if err != nil {
			return false, err
		}
		return box.Width > 0 && box.Height > 0, nil
	case Hidden:
		vis, err := el.Visible(ctx)
		return !vis, err
	case Enabled:
		dis, err := disabled(ctx, el)
		return !dis, err
	case Disabled:
		return disabled(ctx, el)
	case Checked:
		return checked(ctx, el)
	case Editable:
		return editable(ctx, el)
	}
	return false, fmt.Errorf("unknown element state %q", state)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x == "true"
	}
	return false
}

func disabled(ctx context.Context, el Element) (bool, error) {
	prop, err := el.Property(ctx, "disabled")
	if err != nil {
		return false, err
	}
	if truthy(prop) {
		return true, nil
	}
	aria, _, err := el.Attribute(ctx, "aria-disabled")
	return aria == "true", err
}

func checked(ctx context.Context, el Element) (bool, error) {
	prop, err := el.Property(ctx, "checked")
	if err != nil {
		return false, err
	}
	if truthy(prop) {
		return true, nil
	}
	aria, _, err := el.Attribute(ctx, "aria-checked")
	return aria == "true", err
}

func editable(ctx context.Context, el Element) (bool, error) {
	dis, err := disabled(ctx, el)
	if err != nil || dis {
		return false, err
	}
	ro, err := el.Property(ctx, "readOnly")
	if err != nil || truthy(ro) {
		return false, err
	}
	ce, err := el.Property(ctx, "isContentEditable")
	if err != nil {
		return false, err
	}
	if truthy(ce) {
		return true, nil
	}
	tag, err := el.Property(ctx, "tagName")
	if err != nil {
		return false, err
	}
	name, _ := tag.(string)
	switch strings.ToUpper(name) {
	case "INPUT", "TEXTAREA", "SELECT":
		return true, nil
	}
	return false, nil
}
