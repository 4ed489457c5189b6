package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/confcheck/pkg/harness/config"
	"github.com/thesyncim/confcheck/pkg/harness/element"
	"github.com/thesyncim/confcheck/pkg/harness/selector"
	"github.com/thesyncim/confcheck/pkg/harness/testutil"
)

type opener struct {
	pages []*testutil.Page
}

func (o *opener) NewPage(context.Context) (element.Page, error) {
	p := testutil.NewPage()
	o.pages = append(o.pages, p)
	return p, nil
}

func newContext(t *testing.T, mutate func(*config.Config)) (*Context, *opener) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	sel, err := selector.Default()
	require.NoError(t, err)
	o := &opener{}
	return New("Publisher", "go live", cfg, sel, nil, o), o
}

func TestNew_StreamName(t *testing.T) {
	sc, _ := newContext(t, nil)
	assert.Equal(t, "confcheck", sc.Data.StreamName)

	a, _ := newContext(t, func(c *config.Config) { c.DynamicStreamName = true })
	b, _ := newContext(t, func(c *config.Config) { c.DynamicStreamName = true })
	assert.True(t, strings.HasPrefix(a.Data.StreamName, "confcheck-"))
	assert.NotEqual(t, a.Data.StreamName, b.Data.StreamName)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestOpenApp(t *testing.T) {
	ctx := context.Background()
	sc, o := newContext(t, func(c *config.Config) { c.AccountID = "acct" })

	assert.ErrorIs(t, sc.RequireApp(), ErrNoApp)
	_, err := sc.Selector("page header")
	assert.ErrorIs(t, err, ErrNoApp)

	require.NoError(t, sc.OpenApp(ctx, Publisher))
	require.NoError(t, sc.RequireApp())
	assert.Equal(t, PublisherPreview, sc.PageName)
	assert.Equal(t, Publisher, sc.Data.App)
	require.Len(t, o.pages, 1)
	assert.Equal(t, []string{"http://localhost:8080/publisher?streamAccountId=acct&streamName=confcheck"}, o.pages[0].Navigated())

	target, err := sc.Selector("go live button")
	require.NoError(t, err)
	assert.Equal(t, PublisherPreview, target.Page)

	require.NoError(t, sc.SwitchPage(PublisherStreaming))

	require.NoError(t, sc.OpenApp(ctx, Viewer))
	assert.Equal(t, ViewerWaitingRoom, sc.PageName)
	assert.Len(t, o.pages, 2, "each app has its own page")
	assert.Same(t, o.pages[1], sc.Page)

	require.NoError(t, sc.SwitchApp(Publisher))
	assert.Equal(t, PublisherStreaming, sc.PageName, "publisher page name is restored")
	assert.Same(t, o.pages[0], sc.Page)

	require.NoError(t, sc.OpenApp(ctx, Publisher))
	assert.Len(t, o.pages, 2, "page is reused")
	assert.Equal(t, PublisherPreview, sc.PageName)

	assert.Error(t, sc.OpenApp(ctx, "admin"))
}

func TestSwitchApp_NotOpened(t *testing.T) {
	sc, _ := newContext(t, nil)
	assert.ErrorIs(t, sc.SwitchApp(Viewer), ErrNoApp)
}

func TestSelector_NotFound(t *testing.T) {
	sc, _ := newContext(t, nil)
	require.NoError(t, sc.OpenApp(context.Background(), Viewer))

	_, err := sc.Selector("go live button")
	var nf *selector.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, ViewerWaitingRoom, nf.Page)
}

func TestSwitchPage(t *testing.T) {
	sc, _ := newContext(t, nil)
	require.NoError(t, sc.SwitchPage(PublisherStreaming))
	assert.Equal(t, PublisherStreaming, sc.PageName)
	assert.Error(t, sc.SwitchPage("backstage"))
	assert.Equal(t, PublisherStreaming, sc.PageName)
}

func TestClose(t *testing.T) {
	sc, o := newContext(t, nil)
	require.NoError(t, sc.Close())
	require.NoError(t, sc.OpenApp(context.Background(), Publisher))
	require.NoError(t, sc.Close())
	assert.Nil(t, sc.Page)

	assert.ErrorIs(t, o.pages[0].Navigate(context.Background(), "about:blank"), testutil.ErrClosed)
}

func TestTempDir(t *testing.T) {
	sc, _ := newContext(t, nil)
	dir, err := sc.TempDir()
	require.NoError(t, err)
	again, err := sc.TempDir()
	require.NoError(t, err)
	assert.Equal(t, dir, again)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.webm"), []byte("webm"), 0o600))

	require.NoError(t, sc.Close())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
