// Package selector resolves a (page, element name) pair to the locator used
// to find that element on screen.
//
// Each logical page has its own catalog, so the same human readable name may
// appear on several pages without colliding. Lookups are pure; a missing
// pair is always a hard failure.
package selector

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Target describes how to locate one element.
type Target struct {
	Page string
	Name string

	CSS   string // CSS selector; preferred when both are set
	XPath string // XPath expression

	// Text narrows the matches to elements whose trimmed text equals it.
	Text string
	// Options locates the option items of a dropdown target.
	Options string
}

func (t Target) String() string {
	loc := t.CSS
	if loc == "" {
		loc = "xpath=" + t.XPath
	}
	if t.Text != "" {
		loc += fmt.Sprintf(" text=%q", t.Text)
	}
	return fmt.Sprintf("%q on %q (%s)", t.Name, t.Page, loc)
}

// OptionsTarget returns the target for the option items of a dropdown.
// The second result is false when the entry declares no options locator.
func (t Target) OptionsTarget() (Target, bool) {
	if t.Options == "" {
		return Target{}, false
	}
	return Target{Page: t.Page, Name: t.Name + " options", CSS: t.Options}, true
}

// NotFoundError is returned when no entry exists for a (page, name) pair.
type NotFoundError struct {
	Page string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("selector %q not found on page %q", e.Name, e.Page)
}

type entry struct {
	CSS     string `yaml:"css"`
	XPath   string `yaml:"xpath"`
	Text    string `yaml:"text"`
	Options string `yaml:"options"`
}

// UnmarshalYAML accepts either a bare CSS string or a mapping.
func (e *entry) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		e.CSS = n.Value
		return nil
	}
	type plain entry
	return n.Decode((*plain)(e))
}

// Map holds one selector catalog per logical page.
type Map struct {
	pages map[string]map[string]Target
}

// Load parses a YAML catalog of the form
//
//	<page name>:
//	  <element name>: <css>
//	  <element name>: {css|xpath: ..., text: ..., options: ...}
//
// Keys starting with "." are ignored so they can hold YAML anchors.
func Load(r io.Reader) (*Map, error) {
	var raw map[string]map[string]entry
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode selector catalog: %w", err)
	}

	m := &Map{pages: make(map[string]map[string]Target, len(raw))}
	var errs []error
	for page, elements := range raw {
		if strings.HasPrefix(page, ".") {
			continue
		}
		catalog := make(map[string]Target, len(elements))
		for name, e := range elements {
			if e.CSS == "" && e.XPath == "" {
				errs = append(errs, fmt.Errorf("selector %q on page %q has no css or xpath", name, page))
				continue
			}
			catalog[name] = Target{
				Page:    page,
				Name:    name,
				CSS:     e.CSS,
				XPath:   e.XPath,
				Text:    e.Text,
				Options: e.Options,
			}
		}
		m.pages[page] = catalog
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return m, nil
}

// Default returns the catalog for the publisher and viewer applications.
func Default() (*Map, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// Get resolves name on page.
func (m *Map) Get(page, name string) (Target, error) {
	if t, ok := m.pages[page][name]; ok {
		return t, nil
	}
	return Target{}, &NotFoundError{Page: page, Name: name}
}

// Has reports whether page has a catalog.
func (m *Map) Has(page string) bool {
	_, ok := m.pages[page]
	return ok
}

// Pages lists the page names, sorted.
func (m *Map) Pages() []string {
	pages := make([]string, 0, len(m.pages))
	for p := range m.pages {
		pages = append(pages, p)
	}
	sort.Strings(pages)
	return pages
}

// Names lists the element names of page, sorted.
func (m *Map) Names(page string) []string {
	names := make([]string, 0, len(m.pages[page]))
	for n := range m.pages[page] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
