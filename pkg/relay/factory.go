package relay

import (
	"errors"
	"time"

	"github.com/pion/interceptor"
)

// FactoryOption configures a StatsFactory.
type FactoryOption func(*StatsFactory) error

// StatsFactory builds a StatsInterceptor for each PeerConnection. Register
// it with the interceptor registry of the API creating the connection.
type StatsFactory struct {
	window           time.Duration
	keyframeInterval time.Duration
	timeout          time.Duration
	onNew            func(*StatsInterceptor)
}

// WithFactoryWindow sets the bitrate averaging window.
func WithFactoryWindow(d time.Duration) FactoryOption {
	return func(f *StatsFactory) error {
		if d <= 0 {
			return errors.New("window must be positive")
		}
		f.window = d
		return nil
	}
}

// WithFactoryKeyframeInterval sets the periodic keyframe request interval.
// Zero disables periodic requests.
func WithFactoryKeyframeInterval(d time.Duration) FactoryOption {
	return func(f *StatsFactory) error {
		if d < 0 {
			return errors.New("keyframe interval must not be negative")
		}
		f.keyframeInterval = d
		return nil
	}
}

// WithFactoryStreamTimeout sets how long a silent stream is kept.
func WithFactoryStreamTimeout(d time.Duration) FactoryOption {
	return func(f *StatsFactory) error {
		if d <= 0 {
			return errors.New("stream timeout must be positive")
		}
		f.timeout = d
		return nil
	}
}

// WithOnInterceptor is called with every interceptor the factory builds.
func WithOnInterceptor(fn func(*StatsInterceptor)) FactoryOption {
	return func(f *StatsFactory) error {
		f.onNew = fn
		return nil
	}
}

// NewStatsFactory returns a factory with opts applied.
func NewStatsFactory(opts ...FactoryOption) (*StatsFactory, error) {
	f := &StatsFactory{window: DefaultWindow, timeout: DefaultStreamTimeout}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// NewInterceptor implements interceptor.Factory.
func (f *StatsFactory) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	i := NewStatsInterceptor(
		WithWindow(f.window),
		WithKeyframeInterval(f.keyframeInterval),
		WithStreamTimeout(f.timeout),
	)
	if f.onNew != nil {
		f.onNew(i)
	}
	return i, nil
}
