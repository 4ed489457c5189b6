package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/thesyncim/confcheck/pkg/harness/element"
	"github.com/thesyncim/confcheck/pkg/harness/selector"
)

// interactPoll is how often WaitInteractable re-checks an element.
const interactPoll = 100 * time.Millisecond

// Chromedp drives Chrome through chromedp. Every page is a tab context
// derived from one browser context.
type Chromedp struct {
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	opts          Options
}

// LaunchChromedp starts Chrome with the same WebRTC flags as LaunchRod.
func LaunchChromedp(ctx context.Context, opts Options) (*Chromedp, error) {
	if err := opts.check(); err != nil {
		return nil, err
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.NoSandbox,
		chromedp.Flag("use-fake-device-for-media-stream", true),
		chromedp.Flag("use-fake-ui-for-media-stream", true),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		chromedp.WindowSize(int(opts.Viewport.Width), int(opts.Viewport.Height)),
	)
	if opts.Bin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.Bin))
	}

	// The browser outlives the caller's context; Close releases it.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}
	return &Chromedp{
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
		opts:          opts,
	}, nil
}

// NewPage opens a new tab sized to the configured viewport.
//
// The first Run on a tab context attaches the target and its event loop
// lives as long as the context passed to that Run, so it must be tabCtx
// itself. ctx only bounds how long NewPage waits.
func (c *Chromedp) NewPage(ctx context.Context) (element.Page, error) {
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	p := &chromedpPage{tabCtx: tabCtx, cancel: cancel, opts: c.opts}
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tabCtx, chromedp.EmulateViewport(int64(c.opts.Viewport.Width), int64(c.opts.Viewport.Height)))
	if !stop() {
		err = errors.Join(err, ctx.Err())
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return p, nil
}

// Close stops the browser process.
func (c *Chromedp) Close() error {
	err := chromedp.Cancel(c.browserCtx)
	c.cancelBrowser()
	c.cancelAlloc()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type chromedpPage struct {
	tabCtx context.Context
	cancel context.CancelFunc
	opts   Options
}

// run executes actions on the attached tab, aborting when ctx is done.
// Only valid after NewPage has attached the target.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	if p.opts.Navigation > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Navigation)
		defer cancel()
	}
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromedpPage) Elements(ctx context.Context, t selector.Target) ([]element.Element, error) {
	var nodes []*cdp.Node
	var q chromedp.QueryAction
	if t.CSS != "" {
		q = chromedp.Nodes(t.CSS, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))
	} else {
		q = chromedp.Nodes(t.XPath, &nodes, chromedp.BySearch, chromedp.AtLeast(0))
	}
	if err := p.run(ctx, q); err != nil {
		return nil, err
	}
	out := make([]element.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &chromedpElement{page: p, node: n}
	}
	return out, nil
}

func (p *chromedpPage) Viewport(ctx context.Context) (element.Size, error) {
	var vp struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	err := p.Eval(ctx, "({width: window.innerWidth, height: window.innerHeight})", &vp)
	return element.Size{Width: vp.Width, Height: vp.Height}, err
}

func (p *chromedpPage) Eval(ctx context.Context, js string, out any) error {
	var raw []byte
	err := p.run(ctx, chromedp.Evaluate(js, &raw, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
	if err != nil {
		return fmt.Errorf("eval failed: %w", err)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (p *chromedpPage) URL(ctx context.Context) (string, error) {
	var url string
	err := p.run(ctx, chromedp.Location(&url))
	return url, err
}

func (p *chromedpPage) Close() error {
	err := chromedp.Cancel(p.tabCtx)
	p.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type chromedpElement struct {
	page *chromedpPage
	node *cdp.Node
}

// call runs fn with this bound to the element and decodes the result.
func (e *chromedpElement) call(ctx context.Context, fn string, out any) error {
	return e.page.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
		if err != nil {
			return err
		}
		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if out == nil || len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(res.Value), out)
	}))
}

func (e *chromedpElement) Text(ctx context.Context) (string, error) {
	var s string
	err := e.call(ctx, `function() { return this.innerText ?? this.textContent ?? "" }`, &s)
	return s, err
}

func (e *chromedpElement) Value(ctx context.Context) (string, error) {
	var s string
	err := e.call(ctx, `function() { return this.value == null ? "" : String(this.value) }`, &s)
	return s, err
}

func (e *chromedpElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	quoted, _ := json.Marshal(name)
	var v *string
	if err := e.call(ctx, fmt.Sprintf(`function() { return this.getAttribute(%s) }`, quoted), &v); err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *chromedpElement) Property(ctx context.Context, name string) (any, error) {
	quoted, _ := json.Marshal(name)
	var v any
	err := e.call(ctx, fmt.Sprintf(`function() { return this[%s] }`, quoted), &v)
	return v, err
}

func (e *chromedpElement) Visible(ctx context.Context) (bool, error) {
	var v bool
	err := e.call(ctx, `function() {
		const s = getComputedStyle(this);
		const r = this.getBoundingClientRect();
		return s.display !== "none" && s.visibility !== "hidden" && (r.width > 0 || r.height > 0);
	}`, &v)
	return v, err
}

func (e *chromedpElement) Box(ctx context.Context) (element.Box, error) {
	var box struct{ X, Y, Width, Height float64 }
	err := e.call(ctx, `function() { const r = this.getBoundingClientRect(); return {x: r.x, y: r.y, width: r.width, height: r.height} }`, &box)
	return element.Box{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, err
}

func (e *chromedpElement) Click(ctx context.Context) error {
	return e.page.run(ctx, chromedp.MouseClickNode(e.node))
}

func (e *chromedpElement) Select(ctx context.Context, option string) error {
	quoted, _ := json.Marshal(option)
	var found bool
	err := e.call(ctx, fmt.Sprintf(`function() {
		const opt = Array.from(this.options).find(o => o.text.trim() === %s);
		if (!opt) return false;
		this.value = opt.value;
		this.dispatchEvent(new Event("input", {bubbles: true}));
		this.dispatchEvent(new Event("change", {bubbles: true}));
		return true;
	}`, quoted), &found)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("option %q not found", option)
	}
	return nil
}

func (e *chromedpElement) SetFiles(ctx context.Context, paths []string) error {
	return e.page.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return dom.SetFileInputFiles(paths).WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
	}))
}

func (e *chromedpElement) WaitInteractable(ctx context.Context) error {
	for {
		var ok bool
		err := e.call(ctx, `function() {
			this.scrollIntoView({block: "center"});
			const r = this.getBoundingClientRect();
			return !this.disabled && r.width > 0 && r.height > 0;
		}`, &ok)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interactPoll):
		}
	}
}
