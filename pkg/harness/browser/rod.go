package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/thesyncim/confcheck/pkg/harness/element"
	"github.com/thesyncim/confcheck/pkg/harness/selector"
)

// Rod drives Chrome through go-rod.
type Rod struct {
	browser *rod.Browser
	opts    Options
}

// LaunchRod starts Chrome with WebRTC flags:
//   - Fake media streams (no real camera/mic required)
//   - Auto-granted media permissions
//   - No sandbox (for container compatibility)
//   - Autoplay without user gesture
func LaunchRod(opts Options) (*Rod, error) {
	if err := opts.check(); err != nil {
		return nil, err
	}
	l := launcher.New().
		Headless(opts.Headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("use-fake-device-for-media-stream").
		Set("use-fake-ui-for-media-stream").
		Set("autoplay-policy", "no-user-gesture-required")
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}
	return &Rod{browser: browser, opts: opts}, nil
}

// NewPage opens a blank tab sized to the configured viewport.
func (r *Rod) NewPage(context.Context) (element.Page, error) {
	page, err := r.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             int(r.opts.Viewport.Width),
		Height:            int(r.opts.Viewport.Height),
		DeviceScaleFactor: 1,
	})
	if err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}
	return &rodPage{page: page, opts: r.opts}, nil
}

// Close cleans up browser resources.
// Always call this (via defer) to prevent orphaned Chrome processes.
func (r *Rod) Close() error {
	if r.browser != nil {
		return r.browser.Close()
	}
	return nil
}

type rodPage struct {
	page *rod.Page
	opts Options
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if p.opts.Navigation > 0 {
		pg = pg.Timeout(p.opts.Navigation)
		// Cancel timeout so the page can be reused
		defer pg.CancelTimeout()
	}
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) Elements(ctx context.Context, t selector.Target) ([]element.Element, error) {
	var (
		els rod.Elements
		err error
	)
	if t.CSS != "" {
		els, err = p.page.Context(ctx).Elements(t.CSS)
	} else {
		els, err = p.page.Context(ctx).ElementsX(t.XPath)
	}
	if err != nil {
		return nil, err
	}
	out := make([]element.Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el}
	}
	return out, nil
}

func (p *rodPage) Viewport(ctx context.Context) (element.Size, error) {
	var vp struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	err := p.Eval(ctx, "({width: window.innerWidth, height: window.innerHeight})", &vp)
	return element.Size{Width: vp.Width, Height: vp.Height}, err
}

func (p *rodPage) Eval(ctx context.Context, js string, out any) error {
	res, err := p.page.Context(ctx).Eval("() => (" + js + ")")
	if err != nil {
		return fmt.Errorf("eval failed: %w", err)
	}
	if out == nil {
		return nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Value(ctx context.Context) (string, error) {
	v, err := e.el.Context(ctx).Property("value")
	if err != nil {
		return "", err
	}
	if v.Nil() {
		return "", nil
	}
	return v.Str(), nil
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil || v == nil {
		return "", false, err
	}
	return *v, true, nil
}

func (e *rodElement) Property(ctx context.Context, name string) (any, error) {
	v, err := e.el.Context(ctx).Property(name)
	if err != nil {
		return nil, err
	}
	return v.Val(), nil
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}

func (e *rodElement) Box(ctx context.Context) (element.Box, error) {
	res, err := e.el.Context(ctx).Eval(`() => { const r = this.getBoundingClientRect(); return {x: r.x, y: r.y, width: r.width, height: r.height} }`)
	if err != nil {
		return element.Box{}, err
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return element.Box{}, err
	}
	var box struct{ X, Y, Width, Height float64 }
	if err := json.Unmarshal(raw, &box); err != nil {
		return element.Box{}, err
	}
	return element.Box{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Select(ctx context.Context, option string) error {
	return e.el.Context(ctx).Select([]string{option}, true, rod.SelectorTypeText)
}

func (e *rodElement) SetFiles(ctx context.Context, paths []string) error {
	return e.el.Context(ctx).SetFiles(paths)
}

func (e *rodElement) WaitInteractable(ctx context.Context) error {
	_, err := e.el.Context(ctx).WaitInteractable()
	return err
}
