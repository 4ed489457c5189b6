package selector

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_AllEntriesResolve(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	require.ElementsMatch(t,
		[]string{"publisher preview", "publisher streaming", "viewer waiting room", "viewer streaming"},
		m.Pages())

	for _, page := range m.Pages() {
		for _, name := range m.Names(page) {
			target, err := m.Get(page, name)
			require.NoError(t, err, "%s / %s", page, name)
			assert.Equal(t, page, target.Page)
			assert.Equal(t, name, target.Name)
			assert.True(t, target.CSS != "" || target.XPath != "", "%s / %s has a locator", page, name)
		}
	}
}

func TestDefault_SharedAnchorsMerged(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	for _, page := range m.Pages() {
		target, err := m.Get(page, "page header")
		require.NoError(t, err, page)
		assert.Equal(t, `[test-id="pageHeader"]`, target.CSS)
	}

	_, err = m.Get("publisher streaming", "camera view settings button")
	assert.NoError(t, err)
	assert.False(t, m.Has(".header"), "anchor keys are not pages")
}

func TestDefault_PageScopedNames(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	_, err = m.Get("publisher preview", "go live button")
	assert.NoError(t, err)

	_, err = m.Get("publisher streaming", "go live button")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "publisher streaming", nf.Page)
	assert.Equal(t, "go live button", nf.Name)

	_, err = m.Get("viewer waiting room", "camera view")
	assert.Error(t, err)
}

func TestGet_UnknownPage(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	_, err = m.Get("settings page", "page header")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, err.Error(), "settings page")
	assert.Contains(t, err.Error(), "page header")
}

func TestLoad_MappingEntries(t *testing.T) {
	m, err := Load(strings.NewReader(`
home:
  title: h1
  menu:
    xpath: //nav
  high tab:
    css: .tab
    text: High
  codec dropdown:
    css: select.codec
    options: select.codec option
`))
	require.NoError(t, err)

	target, err := m.Get("home", "menu")
	require.NoError(t, err)
	assert.Equal(t, "//nav", target.XPath)
	assert.Contains(t, target.String(), "xpath=//nav")

	target, err = m.Get("home", "high tab")
	require.NoError(t, err)
	assert.Equal(t, "High", target.Text)

	target, err = m.Get("home", "codec dropdown")
	require.NoError(t, err)
	opts, ok := target.OptionsTarget()
	require.True(t, ok)
	assert.Equal(t, "select.codec option", opts.CSS)

	target, err = m.Get("home", "title")
	require.NoError(t, err)
	_, ok = target.OptionsTarget()
	assert.False(t, ok)
}

func TestLoad_RejectsEntryWithoutLocator(t *testing.T) {
	_, err := Load(strings.NewReader(`
home:
  broken:
    text: nothing to find
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(strings.NewReader("home: [unterminated"))
	assert.Error(t, err)
}
