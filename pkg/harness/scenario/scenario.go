// Package scenario holds the state threaded through the steps of one
// running scenario.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/thesyncim/confcheck/pkg/harness/config"
	"github.com/thesyncim/confcheck/pkg/harness/element"
	"github.com/thesyncim/confcheck/pkg/harness/selector"
	"github.com/thesyncim/confcheck/pkg/harness/wait"
	"github.com/thesyncim/confcheck/pkg/media"
)

// Apps and the page each one lands on.
const (
	Publisher = "publisher"
	Viewer    = "viewer"

	PublisherPreview   = "publisher preview"
	PublisherStreaming = "publisher streaming"
	ViewerWaitingRoom  = "viewer waiting room"
	ViewerStreaming    = "viewer streaming"
)

var landing = map[string]string{
	Publisher: PublisherPreview,
	Viewer:    ViewerWaitingRoom,
}

// ErrNoApp is returned by steps that need an open app.
var ErrNoApp = errors.New("no app opened in this scenario")

// Opener opens browser pages. browser.Browser implements it.
type Opener interface {
	NewPage(ctx context.Context) (element.Page, error)
}

// Data is the scenario-local state shared between steps.
type Data struct {
	App        string   // publisher or viewer, empty until an app is opened
	StreamName string   // stream published or watched by this scenario
	QualityTab string   // quality tab last selected on the viewer
	Sources    []string // sources added on the publisher, in order
}

// Context is created by the runner before the first step of a scenario and
// discarded after the last one.
type Context struct {
	ID       uuid.UUID
	Feature  string
	Name     string
	Start    time.Time
	Page     element.Page
	PageName string

	Selectors *selector.Map
	Config    *config.Config
	Log       *log.Logger
	Data      Data

	opener  Opener
	apps    map[string]*appState
	tempDir string
}

// appState is the page of one app opened by the scenario.
type appState struct {
	page     element.Page
	pageName string
}

// New returns the context of one scenario. The stream name is taken from
// the configuration, made unique per scenario when DynamicStreamName is set.
func New(feature, name string, cfg *config.Config, sel *selector.Map, logger *log.Logger, opener Opener) *Context {
	id := uuid.New()
	stream := cfg.StreamName
	if cfg.DynamicStreamName {
		stream = fmt.Sprintf("%s-%s", stream, strings.SplitN(id.String(), "-", 2)[0])
	}
	if logger == nil {
		logger = &log.DefaultLogger
	}
	return &Context{
		ID:        id,
		Feature:   feature,
		Name:      name,
		Start:     time.Now(),
		Selectors: sel,
		Config:    cfg,
		Log:       logger,
		Data:      Data{StreamName: stream},
		opener:    opener,
		apps:      make(map[string]*appState),
	}
}

// Selector resolves name against the current page.
func (c *Context) Selector(name string) (selector.Target, error) {
	if c.PageName == "" {
		return selector.Target{}, ErrNoApp
	}
	return c.Selectors.Get(c.PageName, name)
}

// RequireApp fails when no app has been opened yet.
func (c *Context) RequireApp() error {
	if c.Page == nil || c.Data.App == "" {
		return ErrNoApp
	}
	return nil
}

// OpenApp navigates to the publisher or viewer app for this scenario's
// stream and makes it current. Each app gets its own page, opened on first
// use, so a scenario can publish and watch at the same time.
func (c *Context) OpenApp(ctx context.Context, app string) error {
	landingPage, ok := landing[app]
	if !ok {
		return fmt.Errorf("unknown app %q", app)
	}
	st := c.apps[app]
	if st == nil {
		if c.opener == nil {
			return element.ErrNoPage
		}
		p, err := c.opener.NewPage(ctx)
		if err != nil {
			return err
		}
		st = &appState{page: p}
		c.apps[app] = st
	}

	url := media.ShareLink(c.Config.AppURL(app), c.Data.StreamName, c.Config.AccountID)
	c.Log.Info().Str("scenario", c.Name).Str("app", app).Str("url", url).Msg("opening app")
	if err := st.page.Navigate(ctx, url); err != nil {
		return err
	}
	st.pageName = landingPage
	c.activate(app, st)
	return nil
}

// SwitchApp makes an already opened app current again, on the page it
// was last on.
func (c *Context) SwitchApp(app string) error {
	st := c.apps[app]
	if st == nil {
		return fmt.Errorf("%w: %s", ErrNoApp, app)
	}
	c.Log.Debug().Str("scenario", c.Name).Str("from", c.Data.App).Str("to", app).Msg("switching app")
	c.activate(app, st)
	return nil
}

func (c *Context) activate(app string, st *appState) {
	if cur := c.apps[c.Data.App]; cur != nil && cur != st {
		cur.pageName = c.PageName
	}
	c.Data.App = app
	c.Page = st.page
	c.PageName = st.pageName
}

// SwitchPage changes the selector catalog used by later steps.
func (c *Context) SwitchPage(name string) error {
	if !c.Selectors.Has(name) {
		return fmt.Errorf("unknown page %q", name)
	}
	c.Log.Debug().Str("scenario", c.Name).Str("from", c.PageName).Str("to", name).Msg("switching page")
	c.PageName = name
	return nil
}

// Wait polls check with the configured wait timeout and poll interval.
func (c *Context) Wait(ctx context.Context, check func(context.Context) error) error {
	return wait.For(ctx, check,
		wait.Timeout(c.Config.Timeouts.Wait.Std()),
		wait.Interval(c.Config.Timeouts.Poll.Std()),
	)
}

// AddSource records a source added on the publisher.
func (c *Context) AddSource(kind string) {
	c.Data.Sources = append(c.Data.Sources, kind)
}

// Elapsed is the time since the scenario started.
func (c *Context) Elapsed() time.Duration {
	return time.Since(c.Start)
}

// TempDir returns a directory for files the scenario hands to the browser.
// It is created on first use and removed by Close.
func (c *Context) TempDir() (string, error) {
	if c.tempDir != "" {
		return c.tempDir, nil
	}
	dir, err := os.MkdirTemp("", "confcheck-"+strings.SplitN(c.ID.String(), "-", 2)[0]+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create scenario directory: %w", err)
	}
	c.tempDir = dir
	return dir, nil
}

// Close releases every page opened by the scenario and its files.
func (c *Context) Close() error {
	var errs []error
	for app, st := range c.apps {
		if err := st.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s page: %w", app, err))
		}
		delete(c.apps, app)
	}
	c.Page = nil
	if c.tempDir != "" {
		if err := os.RemoveAll(c.tempDir); err != nil {
			errs = append(errs, err)
		}
		c.tempDir = ""
	}
	return errors.Join(errs...)
}
