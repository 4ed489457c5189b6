package steps

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/thesyncim/confcheck/pkg/harness/element"
	"github.com/thesyncim/confcheck/pkg/harness/scenario"
	"github.com/thesyncim/confcheck/pkg/harness/verify"
)

// appName is the capitalised app name used in expected-data keys.
func appName(sc *scenario.Context) string {
	switch sc.Data.App {
	case scenario.Publisher:
		return "Publisher"
	case scenario.Viewer:
		return "Viewer"
	}
	return sc.Data.App
}

// expectedTable resolves the table a step should verify against.
func expectedTable(defaults Table, mode string, supplied Table) (Table, error) {
	m := Mode(mode)
	if m != Default && supplied == nil {
		return nil, fmt.Errorf("%s values need a data table", mode)
	}
	return Resolve(defaults, supplied, m)
}

// verifyFields checks every row of expected against the live page.
func verifyFields(ctx context.Context, sc *scenario.Context, schema Schema, view string, expected Table, index int) error {
	for _, row := range expected {
		f, ok := schema.Field(row.Key)
		if !ok {
			return &InvalidParameterError{Invalid: []string{row.Key}, Valid: schema.Defaults().Keys()}
		}
		if err := verifyField(ctx, sc, f, view, row.Value, index); err != nil {
			return fmt.Errorf("field %q: %w", row.Key, err)
		}
	}
	return nil
}

func verifyField(ctx context.Context, sc *scenario.Context, f Field, view, expected string, index int) error {
	d, want := ParseDirective(expected)
	if d == Ignore {
		return nil
	}
	target, err := sc.Selector(f.Element(view))
	if err != nil {
		return err
	}
	sc.Log.Debug().Str("field", f.Key).Str("target", target.Name).Str("expected", expected).Msg("verify field")

	switch f.Kind {
	case StateField:
		return sc.Wait(ctx, func(ctx context.Context) error {
			for _, s := range strings.Split(want, "|") {
				state, err := element.ParseState(strings.TrimSpace(s))
				if err != nil {
					return err
				}
				if err := element.VerifyState(ctx, sc.Page, target, state, false, index); err != nil {
					return err
				}
			}
			return nil
		})
	case FeatureField:
		return sc.Wait(ctx, func(ctx context.Context) error {
			return element.VerifyState(ctx, sc.Page, target, element.Checked, want == element.Off, index)
		})
	}

	read := func(ctx context.Context) (string, error) {
		switch f.Kind {
		case ValueField:
			return element.ReadValue(ctx, sc.Page, target, index)
		case StatusField:
			return element.ReadStatus(ctx, sc.Page, target, index)
		case SizeField:
			return element.ReadViewSize(ctx, sc.Page, target, index)
		}
		return element.ReadText(ctx, sc.Page, target, index)
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		actual, err := read(ctx)
		if err != nil {
			return err
		}
		return element.Compare(actual, want, d.Comparison(), false, fmt.Sprintf("%s of %s", f.Key, target))
	})
}

// VerifyStats checks a stats panel against expected. The panel must show at
// least MinStats fields, every field it shows must be known to known, and
// every expected field must be present and match.
func VerifyStats(actual map[string]string, expected, known Table) error {
	if err := verify.GreaterOrEqual(float64(len(actual)), MinStats,
		fmt.Sprintf("Stream Info has less than %d parameters in stats", MinStats)); err != nil {
		return err
	}

	keys := make([]string, 0, len(actual))
	for k := range actual {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := known.Get(k); !ok {
			return &verify.AssertionError{
				Message:  fmt.Sprintf("Stats %q is not expected", k),
				Op:       "one of",
				Actual:   k,
				Expected: known.Keys(),
			}
		}
	}

	for _, row := range expected {
		if d, _ := ParseDirective(row.Value); d == Ignore {
			continue
		}
		got, ok := actual[row.Key]
		if !ok {
			return &verify.AssertionError{
				Message:  fmt.Sprintf("Stats %q not shown", row.Key),
				Op:       "key",
				Actual:   keys,
				Expected: row.Key,
			}
		}
		if err := Check(got, row.Value, fmt.Sprintf("Stats %q not matched", row.Key)); err != nil {
			return err
		}
	}
	return nil
}
