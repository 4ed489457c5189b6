// Package element translates generic intents ("the toggle should be
// checked", "click the go live button") into calls against a live page.
//
// Verifiers never change application state. Click and SelectOption are the
// only mutators and wait for their target to be interactable first. A
// selector that matches nothing, or fewer elements than the requested index,
// is reported as an assertion failure so the retry wrapper can poll for it;
// errors from the driver itself are returned unchanged.
package element

import (
	"context"
	"errors"

	"github.com/thesyncim/confcheck/pkg/harness/selector"
)

// ErrNoPage is returned by steps that need a page before any app was opened.
var ErrNoPage = errors.New("no page open")

// Size is a width/height pair in CSS pixels.
type Size struct {
	Width  float64
	Height float64
}

// Box is an element's bounding box.
type Box struct {
	X, Y          float64
	Width, Height float64
}

// Page is one browser tab as seen by the harness.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Elements returns every element matching the CSS or XPath locator of
	// t, in document order, without waiting. Text filtering is done by Find.
	Elements(ctx context.Context, t selector.Target) ([]Element, error)
	Viewport(ctx context.Context) (Size, error)
	// Eval runs a JavaScript expression and decodes its JSON result into out.
	Eval(ctx context.Context, js string, out any) error
	URL(ctx context.Context) (string, error)
	Close() error
}

// Element is one node on a Page.
type Element interface {
	Text(ctx context.Context) (string, error)
	Value(ctx context.Context) (string, error)
	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	// Property returns a DOM property decoded from JSON (bool, float64, string, nil...).
	Property(ctx context.Context, name string) (any, error)
	Visible(ctx context.Context) (bool, error)
	Box(ctx context.Context) (Box, error)
	Click(ctx context.Context) error
	// Select picks the option of a native <select> whose text is option.
	Select(ctx context.Context, option string) error
	// SetFiles sets the files of an <input type="file"> and fires its
	// change event. Paths must be absolute.
	SetFiles(ctx context.Context, paths []string) error
	WaitInteractable(ctx context.Context) error
}
