package relay

import "time"

// DefaultWindow is the span over which bitrates are averaged.
const DefaultWindow = time.Second

type sample struct {
	at    time.Time
	bytes int64
}

// Meter measures a byte rate over a sliding window. It is not safe for
// concurrent use.
type Meter struct {
	window  time.Duration
	samples []sample
	bytes   int64
}

// NewMeter returns a meter averaging over window, DefaultWindow when zero.
func NewMeter(window time.Duration) *Meter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Meter{window: window, samples: make([]sample, 0, 64)}
}

// Add records n bytes seen at now.
func (m *Meter) Add(n int64, now time.Time) {
	m.expire(now)
	m.samples = append(m.samples, sample{at: now, bytes: n})
	m.bytes += n
}

// Bitrate returns the bits per second seen in the window ending at now.
// ok is false until two samples at least a millisecond apart are in the window.
func (m *Meter) Bitrate(now time.Time) (bps int64, ok bool) {
	m.expire(now)
	if len(m.samples) < 2 {
		return 0, false
	}
	span := m.samples[len(m.samples)-1].at.Sub(m.samples[0].at)
	if span < time.Millisecond {
		return 0, false
	}
	return int64(float64(m.bytes*8) / span.Seconds()), true
}

// Reset drops every sample.
func (m *Meter) Reset() {
	m.samples = m.samples[:0]
	m.bytes = 0
}

func (m *Meter) expire(now time.Time) {
	cutoff := now.Add(-m.window)
	n := 0
	for _, s := range m.samples {
		if !s.at.Before(cutoff) {
			break
		}
		m.bytes -= s.bytes
		n++
	}
	if n > 0 {
		m.samples = m.samples[n:]
	}
}
