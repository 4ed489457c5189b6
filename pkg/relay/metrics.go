package relay

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors of a Relay. A nil *Metrics
// records nothing.
type Metrics struct {
	liveStreams prometheus.Gauge
	viewers     *prometheus.GaugeVec
	packets     prometheus.Counter
	keyframes   prometheus.Counter
	publishes   *prometheus.CounterVec
}

// NewMetrics creates the relay collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		liveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confcheck_relay_live_streams",
			Help: "Number of streams with a connected publisher",
		}),
		viewers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "confcheck_relay_viewers",
			Help: "Number of viewers per stream",
		}, []string{"stream"}),
		packets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confcheck_relay_forwarded_packets_total",
			Help: "RTP packets forwarded from publishers to viewers",
		}),
		keyframes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confcheck_relay_keyframe_requests_total",
			Help: "Picture loss indications sent to publishers",
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confcheck_relay_publish_total",
			Help: "Publish attempts by result",
		}, []string{"result"}),
	}
	reg.MustRegister(m.liveStreams, m.viewers, m.packets, m.keyframes, m.publishes)
	return m
}

func (m *Metrics) setLive(n int) {
	if m != nil {
		m.liveStreams.Set(float64(n))
	}
}

func (m *Metrics) setViewers(stream string, n int) {
	if m == nil {
		return
	}
	if n == 0 {
		m.viewers.DeleteLabelValues(stream)
		return
	}
	m.viewers.WithLabelValues(stream).Set(float64(n))
}

func (m *Metrics) packet() {
	if m != nil {
		m.packets.Inc()
	}
}

func (m *Metrics) keyframe() {
	if m != nil {
		m.keyframes.Inc()
	}
}

func (m *Metrics) publish(result string) {
	if m != nil {
		m.publishes.WithLabelValues(result).Inc()
	}
}
