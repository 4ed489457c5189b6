// Package testutil provides an in-memory page for exercising the harness
// without a browser.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/thesyncim/confcheck/pkg/harness/element"
	"github.com/thesyncim/confcheck/pkg/harness/selector"
)

var (
	// ErrClosed is returned by every call on a closed page.
	ErrClosed = errors.New("page closed")
	// ErrNotInteractable is returned by WaitInteractable for hidden or disabled elements.
	ErrNotInteractable = errors.New("element not interactable")
)

// Page is a fake element.Page. Elements are registered by locator: the CSS
// selector, or "xpath=" followed by the XPath expression.
type Page struct {
	mu        sync.Mutex
	url       string
	viewport  element.Size
	nodes     map[string][]*Element
	closed    bool
	navigated []string

	// OnNavigate is called with every navigated URL.
	OnNavigate func(url string)
	// EvalFunc answers Eval. Its result is JSON round-tripped into out.
	EvalFunc func(js string) (any, error)
}

// NewPage returns an empty page with a 1280x1024 viewport.
func NewPage() *Page {
	return &Page{
		viewport: element.Size{Width: 1280, Height: 1024},
		nodes:    make(map[string][]*Element),
	}
}

// Set replaces the elements registered under locator.
func (p *Page) Set(locator string, els ...*Element) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(els) == 0 {
		delete(p.nodes, locator)
	} else {
		p.nodes[locator] = els
	}
	return p
}

// SetTarget registers els under the locator of t.
func (p *Page) SetTarget(t selector.Target, els ...*Element) *Page {
	return p.Set(locator(t), els...)
}

// SetViewport changes the reported viewport.
func (p *Page) SetViewport(w, h float64) {
	p.mu.Lock()
	p.viewport = element.Size{Width: w, Height: h}
	p.mu.Unlock()
}

// Navigated returns every URL passed to Navigate, in order.
func (p *Page) Navigated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

func locator(t selector.Target) string {
	if t.CSS != "" {
		return t.CSS
	}
	return "xpath=" + t.XPath
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.url = url
	p.navigated = append(p.navigated, url)
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	return nil
}

func (p *Page) Elements(_ context.Context, t selector.Target) ([]element.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	nodes := p.nodes[locator(t)]
	out := make([]element.Element, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out, nil
}

func (p *Page) Viewport(context.Context) (element.Size, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return element.Size{}, ErrClosed
	}
	return p.viewport, nil
}

func (p *Page) Eval(_ context.Context, js string, out any) error {
	if p.EvalFunc == nil {
		return fmt.Errorf("eval not supported: %s", js)
	}
	v, err := p.EvalFunc(js)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *Page) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Element is a fake element.Element. Setters may be called while a
// verification is polling it.
type Element struct {
	mu      sync.Mutex
	text    string
	value   string
	attrs   map[string]string
	props   map[string]any
	visible bool
	box     element.Box
	options []string
	files   []string
	clicks  int

	// OnClick runs after every click.
	OnClick func()
	// OnFiles runs after the files of the element are set.
	OnFiles func(paths []string)
}

// NewElement returns a visible 100x100 div with text.
func NewElement(text string) *Element {
	return &Element{
		text:    text,
		attrs:   map[string]string{},
		props:   map[string]any{"tagName": "DIV"},
		visible: true,
		box:     element.Box{Width: 100, Height: 100},
	}
}

// NewSelect returns a native <select> offering options, the first selected.
func NewSelect(options ...string) *Element {
	e := NewElement("")
	e.props["tagName"] = "SELECT"
	e.options = options
	if len(options) > 0 {
		e.value = options[0]
	}
	return e
}

// SetText changes the element text.
func (e *Element) SetText(text string) *Element {
	e.mu.Lock()
	e.text = text
	e.mu.Unlock()
	return e
}

// SetValue changes the form value.
func (e *Element) SetValue(v string) *Element {
	e.mu.Lock()
	e.value = v
	e.mu.Unlock()
	return e
}

// SetAttr sets an attribute, making it present.
func (e *Element) SetAttr(name, v string) *Element {
	e.mu.Lock()
	e.attrs[name] = v
	e.mu.Unlock()
	return e
}

// SetProp sets a DOM property such as "disabled" or "checked".
func (e *Element) SetProp(name string, v any) *Element {
	e.mu.Lock()
	e.props[name] = v
	e.mu.Unlock()
	return e
}

// SetVisible shows or hides the element.
func (e *Element) SetVisible(v bool) *Element {
	e.mu.Lock()
	e.visible = v
	e.mu.Unlock()
	return e
}

// SetBox resizes the element at the page origin.
func (e *Element) SetBox(w, h float64) *Element {
	e.mu.Lock()
	e.box = element.Box{Width: w, Height: h}
	e.mu.Unlock()
	return e
}

// Clicks returns how many times the element was clicked.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Files returns the paths last set with SetFiles.
func (e *Element) Files() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.files...)
}

func (e *Element) Text(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, nil
}

func (e *Element) Value(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value, nil
}

func (e *Element) Attribute(_ context.Context, name string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *Element) Property(_ context.Context, name string) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.props[name], nil
}

func (e *Element) Visible(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible, nil
}

func (e *Element) Box(context.Context) (element.Box, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.box, nil
}

func (e *Element) Click(context.Context) error {
	e.mu.Lock()
	e.clicks++
	hook := e.OnClick
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (e *Element) Select(_ context.Context, option string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range e.options {
		if o == option {
			e.value = option
			return nil
		}
	}
	return fmt.Errorf("option %q not found", option)
}

func (e *Element) SetFiles(_ context.Context, paths []string) error {
	e.mu.Lock()
	e.files = append([]string(nil), paths...)
	hook := e.OnFiles
	e.mu.Unlock()
	if hook != nil {
		hook(paths)
	}
	return nil
}

func (e *Element) WaitInteractable(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.visible || e.props["disabled"] == true {
		return ErrNotInteractable
	}
	return nil
}
