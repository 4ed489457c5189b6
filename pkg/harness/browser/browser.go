// Package browser launches a WebRTC ready Chrome and exposes its tabs as
// element.Page values. Two drivers are available: rod (default) and
// chromedp. Both speak CDP, so only Chrome and Chromium are supported.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thesyncim/confcheck/pkg/harness/config"
	"github.com/thesyncim/confcheck/pkg/harness/element"
)

// ErrUnsupportedBrowser is returned when a non CDP browser is requested.
var ErrUnsupportedBrowser = errors.New("unsupported browser")

// Options configures Chrome launch and new pages.
type Options struct {
	Browser    string // chrome or chromium
	Headless   bool
	Bin        string // browser executable, empty to let the driver find one
	Viewport   element.Size
	Navigation time.Duration // navigation timeout
}

// OptionsFromConfig derives launch options from the harness configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Browser:  cfg.Browser,
		Headless: cfg.Headless,
		Bin:      cfg.BrowserBin,
		Viewport: element.Size{
			Width:  float64(cfg.Viewport.Width),
			Height: float64(cfg.Viewport.Height),
		},
		Navigation: cfg.Timeouts.Navigation.Std(),
	}
}

func (o Options) check() error {
	switch o.Browser {
	case "", "chrome", "chromium":
		return nil
	}
	return fmt.Errorf("%w: %s (only chrome and chromium can be driven over CDP)", ErrUnsupportedBrowser, o.Browser)
}

// Browser is a running browser process. NewPage is safe for concurrent use;
// each scenario owns the page it gets.
type Browser interface {
	NewPage(ctx context.Context) (element.Page, error)
	Close() error
}

// Launch starts a browser with the given driver ("rod" or "chromedp").
func Launch(ctx context.Context, driver string, opts Options) (Browser, error) {
	switch driver {
	case "", "rod":
		return LaunchRod(opts)
	case "chromedp":
		return LaunchChromedp(ctx, opts)
	}
	return nil, fmt.Errorf("unknown driver %q", driver)
}
