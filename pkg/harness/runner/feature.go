package runner

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gherkin "github.com/cucumber/gherkin/go/v26"
	messages "github.com/cucumber/messages/go/v21"

	"github.com/thesyncim/confcheck/pkg/harness/steps"
)

// Feature is one parsed .feature file with its outlines expanded.
type Feature struct {
	URI       string
	Name      string
	Scenarios []Scenario
}

// Scenario is one runnable scenario (a gherkin pickle).
type Scenario struct {
	ID    string
	Name  string
	Tags  []string
	Steps []Step
}

// HasTag reports whether s carries any of tags. No tags matches everything.
func (s Scenario) HasTag(tags ...string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		want = "@" + strings.TrimPrefix(want, "@")
		for _, have := range s.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Step is one step of a scenario. Table holds the key/value rows of the
// step's data table, nil when it has none.
type Step struct {
	Keyword string
	Text    string
	Table   steps.Table
}

// ParseFeature parses one feature file read from r.
func ParseFeature(r io.Reader, uri string) (*Feature, error) {
	newID := (&messages.Incrementing{}).NewId
	doc, err := gherkin.ParseGherkinDocument(r, newID)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", uri, err)
	}
	f := &Feature{URI: uri}
	if doc.Feature == nil {
		return f, nil
	}
	f.Name = doc.Feature.Name

	keywords := stepKeywords(doc.Feature)
	for _, p := range gherkin.Pickles(*doc, uri, newID) {
		sc := Scenario{ID: p.Id, Name: p.Name}
		for _, tag := range p.Tags {
			sc.Tags = append(sc.Tags, tag.Name)
		}
		for _, ps := range p.Steps {
			st := Step{Text: ps.Text}
			if len(ps.AstNodeIds) > 0 {
				st.Keyword = strings.TrimSpace(keywords[ps.AstNodeIds[0]])
			}
			if ps.Argument != nil && ps.Argument.DataTable != nil {
				t, err := table(ps.Argument.DataTable)
				if err != nil {
					return nil, fmt.Errorf("%s: scenario %q step %q: %w", uri, p.Name, ps.Text, err)
				}
				st.Table = t
			}
			sc.Steps = append(sc.Steps, st)
		}
		f.Scenarios = append(f.Scenarios, sc)
	}
	return f, nil
}

// stepKeywords maps the AST id of every step to its keyword.
func stepKeywords(f *messages.Feature) map[string]string {
	out := make(map[string]string)
	add := func(ss []*messages.Step) {
		for _, s := range ss {
			out[s.Id] = s.Keyword
		}
	}
	for _, c := range f.Children {
		switch {
		case c.Background != nil:
			add(c.Background.Steps)
		case c.Scenario != nil:
			add(c.Scenario.Steps)
		case c.Rule != nil:
			for _, rc := range c.Rule.Children {
				if rc.Background != nil {
					add(rc.Background.Steps)
				}
				if rc.Scenario != nil {
					add(rc.Scenario.Steps)
				}
			}
		}
	}
	return out
}

// table converts a two column data table into key/value rows.
func table(dt *messages.PickleTable) (steps.Table, error) {
	t := make(steps.Table, 0, len(dt.Rows))
	for i, row := range dt.Rows {
		if len(row.Cells) != 2 {
			return nil, fmt.Errorf("data table row %d has %d cells, want key and value", i+1, len(row.Cells))
		}
		t = append(t, steps.Row{Key: row.Cells[0].Value, Value: row.Cells[1].Value})
	}
	return t, nil
}

// LoadFeatures parses the given .feature files and every .feature file
// found under the given directories, in lexical order.
func LoadFeatures(paths ...string) ([]*Feature, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".feature") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)

	features := make([]*Feature, 0, len(files))
	for _, path := range files {
		f, err := parseFile(path)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, nil
}

func parseFile(path string) (*Feature, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return ParseFeature(fh, filepath.ToSlash(path))
}

// StepTexts returns the text of every step of features, in order.
func StepTexts(features []*Feature) []string {
	var out []string
	for _, f := range features {
		for _, sc := range f.Scenarios {
			for _, st := range sc.Steps {
				out = append(out, st.Text)
			}
		}
	}
	return out
}
