package steps

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/thesyncim/confcheck/pkg/harness/element"
	"github.com/thesyncim/confcheck/pkg/harness/scenario"
	"github.com/thesyncim/confcheck/pkg/harness/selector"
)

// ordinal is an optional `"2nd"` before an element name. It is one capture
// group holding the ordinal alone.
const ordinal = `(?: "([0-9]+(?:st|nd|rd|th))")?`

func registerGeneric(r *Registry) {
	r.Register(`^the (publisher|viewer) opens the app$`,
		"open the publisher or viewer app for the scenario's stream", openApp)
	r.Register(`^the (publisher|viewer) switches to the app$`,
		"make an already opened app current", switchApp)
	r.Register(`^the user switches to the "([^"]*)" page$`,
		"use the selector catalog of another page", switchPage)
	r.Register(`^the user clicks on the`+ordinal+` "([^"]*)"$`,
		"click an element", clickElement)
	r.Register(`^the user selects "([^"]*)" in the "([^"]*)"$`,
		"select an option of a dropdown", selectOption)
	r.Register(`^the`+ordinal+` "([^"]*)" should( not)? be (displayed|visible|hidden|enabled|disabled|checked|editable)$`,
		"verify an element state", elementState)
	r.Register(`^the`+ordinal+` "([^"]*)" (text|value) should( not)? (be|contain|match) "([^"]*)"$`,
		"verify an element text or value", elementText)
	r.Register(`^the "([^"]*)" count should be ([0-9]+)$`,
		"verify how many elements match", elementCount)
	r.Register(`^the user waits for ([0-9]+) seconds?$`,
		"pause the scenario", waitSeconds)
}

// target resolves an element of the current page after checking an app is open.
func target(sc *scenario.Context, name string) (selector.Target, error) {
	if err := sc.RequireApp(); err != nil {
		return selector.Target{}, err
	}
	return sc.Selector(name)
}

// indexedTarget resolves an ordinal and an element name.
func indexedTarget(sc *scenario.Context, ord, name string) (selector.Target, int, error) {
	index, err := ParseOrdinal(ord)
	if err != nil {
		return selector.Target{}, 0, &InvalidParameterError{Invalid: []string{ord}, Valid: []string{"1st", "2nd", "3rd", "4th..."}}
	}
	t, err := target(sc, name)
	return t, index, err
}

func openApp(ctx context.Context, sc *scenario.Context, args Args) error {
	if err := sc.OpenApp(ctx, args.Params[0]); err != nil {
		return err
	}
	header, err := sc.Selector("page header")
	if err != nil {
		return err
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		return element.VerifyState(ctx, sc.Page, header, element.Displayed, false, 0)
	})
}

func switchApp(_ context.Context, sc *scenario.Context, args Args) error {
	return sc.SwitchApp(args.Params[0])
}

func switchPage(_ context.Context, sc *scenario.Context, args Args) error {
	if err := sc.RequireApp(); err != nil {
		return err
	}
	return sc.SwitchPage(args.Params[0])
}

func clickElement(ctx context.Context, sc *scenario.Context, args Args) error {
	t, index, err := indexedTarget(sc, args.Params[0], args.Params[1])
	if err != nil {
		return err
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		return element.Click(ctx, sc.Page, t, index)
	})
}

func selectOption(ctx context.Context, sc *scenario.Context, args Args) error {
	t, err := target(sc, args.Params[1])
	if err != nil {
		return err
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		return element.SelectOption(ctx, sc.Page, t, args.Params[0])
	})
}

func elementState(ctx context.Context, sc *scenario.Context, args Args) error {
	t, index, err := indexedTarget(sc, args.Params[0], args.Params[1])
	if err != nil {
		return err
	}
	negate := args.Params[2] != ""
	state, err := element.ParseState(args.Params[3])
	if err != nil {
		return err
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		return element.VerifyState(ctx, sc.Page, t, state, negate, index)
	})
}

var textVerifiers = map[string]map[string]func(context.Context, element.Page, selector.Target, string, bool, int) error{
	"text": {
		"be":      element.VerifyText,
		"contain": element.VerifyContainsText,
		"match":   element.VerifyMatchText,
	},
	"value": {
		"be":      element.VerifyValue,
		"contain": element.VerifyContainsValue,
		"match":   element.VerifyMatchValue,
	},
}

func elementText(ctx context.Context, sc *scenario.Context, args Args) error {
	t, index, err := indexedTarget(sc, args.Params[0], args.Params[1])
	if err != nil {
		return err
	}
	check := textVerifiers[args.Params[2]][args.Params[4]]
	negate := args.Params[3] != ""
	expected := args.Params[5]
	return sc.Wait(ctx, func(ctx context.Context) error {
		return check(ctx, sc.Page, t, expected, negate, index)
	})
}

func elementCount(ctx context.Context, sc *scenario.Context, args Args) error {
	t, err := target(sc, args.Params[0])
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(args.Params[1])
	if err != nil {
		return err
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		return element.VerifyCount(ctx, sc.Page, t, n)
	})
}

func waitSeconds(ctx context.Context, _ *scenario.Context, args Args) error {
	n, err := strconv.Atoi(args.Params[0])
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-time.After(time.Duration(n) * time.Second):
		return nil
	}
}
