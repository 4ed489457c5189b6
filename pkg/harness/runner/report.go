package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Status is the outcome of a step or scenario.
type Status string

const (
	Passed    Status = "passed"
	Failed    Status = "failed"
	Skipped   Status = "skipped"
	Undefined Status = "undefined"
)

// StepReport is the result of one step.
type StepReport struct {
	Keyword  string        `json:"keyword,omitempty"`
	Text     string        `json:"text"`
	Params   []string      `json:"params,omitempty"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ScenarioReport is the result of one scenario.
type ScenarioReport struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Tags       []string      `json:"tags,omitempty"`
	StreamName string        `json:"stream_name,omitempty"`
	Status     Status        `json:"status"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Steps      []StepReport  `json:"steps"`
}

// FeatureReport groups the scenarios of one feature file.
type FeatureReport struct {
	URI       string           `json:"uri"`
	Name      string           `json:"name"`
	Scenarios []ScenarioReport `json:"scenarios"`
}

// Summary counts outcomes over a whole run.
type Summary struct {
	Scenarios int `json:"scenarios"`
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	Steps     int `json:"steps"`
	Skipped   int `json:"skipped"`
	Undefined int `json:"undefined"`
}

// Report is the result of a run.
type Report struct {
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Summary   Summary         `json:"summary"`
	Features  []FeatureReport `json:"features"`
}

// Passed reports whether every scenario passed.
func (r *Report) Passed() bool {
	return r.Summary.Failed == 0
}

func (r *Report) summarize() {
	var s Summary
	for _, f := range r.Features {
		for _, sc := range f.Scenarios {
			s.Scenarios++
			if sc.Status == Passed {
				s.Passed++
			} else {
				s.Failed++
			}
			for _, st := range sc.Steps {
				s.Steps++
				switch st.Status {
				case Skipped:
					s.Skipped++
				case Undefined:
					s.Undefined++
				}
			}
		}
	}
	r.Summary = s
}

// WriteJSON writes r as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteFile writes r as JSON to path, creating its directory.
func (r *Report) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

// WriteSummary prints a human readable summary with every failed scenario.
func (r *Report) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "\nScenarios: %d (%d passed, %d failed)\n", r.Summary.Scenarios, r.Summary.Passed, r.Summary.Failed)
	fmt.Fprintf(w, "Steps:     %d (%d skipped, %d undefined)\n", r.Summary.Steps, r.Summary.Skipped, r.Summary.Undefined)
	fmt.Fprintf(w, "Duration:  %v\n", r.Duration.Round(time.Millisecond))
	for _, f := range r.Features {
		for _, sc := range f.Scenarios {
			if sc.Status == Passed {
				continue
			}
			fmt.Fprintf(w, "\nFAIL %s: %s\n\t%s\n", f.Name, sc.Name, sc.Error)
		}
	}
	status := "PASS"
	if !r.Passed() {
		status = "FAIL"
	}
	fmt.Fprintf(w, "\nStatus: %s\n", status)
}
