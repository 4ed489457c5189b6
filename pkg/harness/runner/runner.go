// Package runner executes parsed feature files against the step catalog.
//
// Scenarios run on a fixed pool of workers. Each scenario gets its own
// scenario.Context and browser pages; its steps run in order and the first
// failure skips the rest.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"

	"github.com/thesyncim/confcheck/pkg/harness/config"
	"github.com/thesyncim/confcheck/pkg/harness/scenario"
	"github.com/thesyncim/confcheck/pkg/harness/selector"
	"github.com/thesyncim/confcheck/pkg/harness/steps"
)

// StepError is the failure of one step.
type StepError struct {
	Text   string
	Params []string
	Err    error
}

func (e *StepError) Error() string {
	if len(e.Params) == 0 {
		return fmt.Sprintf("step %q: %v", e.Text, e.Err)
	}
	return fmt.Sprintf("step %q %q: %v", e.Text, e.Params, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner runs scenarios.
type Runner struct {
	cfg       *config.Config
	opener    scenario.Opener
	selectors *selector.Map
	registry  *steps.Registry
	log       *log.Logger
	tags      []string
}

// Option configures a Runner.
type Option func(*Runner)

// WithSelectors replaces the embedded selector catalogs.
func WithSelectors(m *selector.Map) Option {
	return func(r *Runner) { r.selectors = m }
}

// WithRegistry replaces the built-in step catalog.
func WithRegistry(reg *steps.Registry) Option {
	return func(r *Runner) { r.registry = reg }
}

// WithLogger sets the logger handed to every scenario.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithTags only runs scenarios carrying one of tags.
func WithTags(tags ...string) Option {
	return func(r *Runner) { r.tags = tags }
}

// New returns a runner opening pages with opener.
func New(cfg *config.Config, opener scenario.Opener, opts ...Option) (*Runner, error) {
	r := &Runner{cfg: cfg, opener: opener}
	for _, opt := range opts {
		opt(r)
	}
	if r.selectors == nil {
		m, err := selector.Default()
		if err != nil {
			return nil, err
		}
		r.selectors = m
	}
	if r.registry == nil {
		r.registry = steps.Catalog()
	}
	if r.log == nil {
		r.log = &log.DefaultLogger
	}
	return r, nil
}

type job struct {
	feature, scenario int
	f                 *Feature
	sc                Scenario
}

// Run executes every scenario of features and returns the report. Scenarios
// not started when ctx is cancelled are reported as skipped.
func (r *Runner) Run(ctx context.Context, features []*Feature) *Report {
	rep := &Report{StartedAt: time.Now()}
	var jobs []job
	for fi, f := range features {
		fr := FeatureReport{URI: f.URI, Name: f.Name}
		for _, sc := range f.Scenarios {
			if !sc.HasTag(r.tags...) {
				continue
			}
			jobs = append(jobs, job{feature: fi, scenario: len(fr.Scenarios), f: f, sc: sc})
			fr.Scenarios = append(fr.Scenarios, ScenarioReport{})
		}
		rep.Features = append(rep.Features, fr)
	}

	workers := max(r.cfg.Workers, 1)
	r.log.Info().Int("scenarios", len(jobs)).Int("workers", workers).Msg("starting run")

	queue := make(chan job)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				// Each job owns a distinct slot of the report.
				rep.Features[j.feature].Scenarios[j.scenario] = r.runScenario(ctx, j.f, j.sc)
			}
		}()
	}
	for _, j := range jobs {
		queue <- j
	}
	close(queue)
	wg.Wait()

	rep.Duration = time.Since(rep.StartedAt)
	rep.summarize()
	return rep
}

func (r *Runner) runScenario(ctx context.Context, f *Feature, s Scenario) ScenarioReport {
	sc := scenario.New(f.Name, s.Name, r.cfg, r.selectors, r.log, r.opener)
	res := ScenarioReport{
		ID:         sc.ID.String(),
		Name:       s.Name,
		Tags:       s.Tags,
		StreamName: sc.Data.StreamName,
		Status:     Passed,
		StartedAt:  sc.Start,
	}
	r.log.Info().Str("feature", f.Name).Str("scenario", s.Name).Str("stream", sc.Data.StreamName).Msg("scenario started")

	var failure error
	for _, st := range s.Steps {
		step := StepReport{Keyword: st.Keyword, Text: st.Text, Status: Skipped}
		if failure == nil && ctx.Err() != nil {
			failure = fmt.Errorf("run cancelled: %w", ctx.Err())
		}
		if failure == nil {
			step = r.runStep(ctx, sc, st)
			if step.Status != Passed {
				failure = errors.New(step.Error)
			}
		}
		res.Steps = append(res.Steps, step)
	}

	if err := sc.Close(); err != nil {
		r.log.Warn().Err(err).Str("scenario", s.Name).Msg("failed to close pages")
	}
	res.Duration = sc.Elapsed()
	if failure != nil {
		res.Status = Failed
		res.Error = failure.Error()
	}
	r.log.Info().Str("scenario", s.Name).Str("status", string(res.Status)).Str("duration", res.Duration.Round(time.Millisecond).String()).Msg("scenario finished")
	return res
}

func (r *Runner) runStep(ctx context.Context, sc *scenario.Context, st Step) (res StepReport) {
	res = StepReport{Keyword: st.Keyword, Text: st.Text, Status: Passed}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeouts.Step.Std())
	defer cancel()

	start := time.Now()
	var params []string
	defer func() {
		if p := recover(); p != nil {
			res.Status = Failed
			res.Error = (&StepError{Text: st.Text, Params: params, Err: fmt.Errorf("panic: %v", p)}).Error()
		}
		res.Params = params
		res.Duration = time.Since(start)
		e := r.log.Info()
		if res.Status != Passed {
			e = r.log.Error()
		}
		e.Str("scenario", sc.Name).Str("step", st.Text).Strs("params", params).
			Str("status", string(res.Status)).Str("duration", res.Duration.Round(time.Millisecond).String()).Msg("step")
	}()

	m, err := r.registry.Match(st.Text)
	if err != nil {
		res.Status = Undefined
		var amb *steps.AmbiguousStepError
		if errors.As(err, &amb) {
			res.Status = Failed
		}
		res.Error = err.Error()
		return res
	}
	params = m.Params
	if err := m.Step.Handler(ctx, sc, steps.Args{Params: m.Params, Table: st.Table}); err != nil {
		res.Status = Failed
		res.Error = (&StepError{Text: st.Text, Params: params, Err: err}).Error()
	}
	return res
}
