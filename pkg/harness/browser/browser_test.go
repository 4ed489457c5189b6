package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/confcheck/pkg/harness/config"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Headless = false
	cfg.BrowserBin = "/usr/bin/chromium"

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, "chrome", opts.Browser)
	assert.False(t, opts.Headless)
	assert.Equal(t, "/usr/bin/chromium", opts.Bin)
	assert.Equal(t, 1280.0, opts.Viewport.Width)
	assert.Equal(t, 1024.0, opts.Viewport.Height)
	assert.Equal(t, 30*time.Second, opts.Navigation)
}

func TestLaunch_UnsupportedBrowser(t *testing.T) {
	for _, driver := range []string{"rod", "chromedp"} {
		t.Run(driver, func(t *testing.T) {
			_, err := Launch(context.Background(), driver, Options{Browser: "firefox"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedBrowser)
		})
	}
}

func TestLaunch_UnknownDriver(t *testing.T) {
	_, err := Launch(context.Background(), "selenium", Options{})
	assert.ErrorContains(t, err, "unknown driver")
}
