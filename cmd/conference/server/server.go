// Package server provides the importable conference server: the publisher
// and viewer applications, their signalling API and the media relay.
// E2E tests start it on a random port without running main().
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/thesyncim/confcheck/pkg/relay"
)

// Config holds server configuration options.
type Config struct {
	Addr         string        // Listen address (e.g., ":8080" or ":0" for random port)
	ReadTimeout  time.Duration // HTTP read timeout
	WriteTimeout time.Duration // HTTP write timeout

	// KeyframeInterval asks publishers for a keyframe periodically. Zero disables it.
	KeyframeInterval time.Duration
	// KeyframeSpacing is the least time between two forwarded keyframe requests.
	KeyframeSpacing time.Duration

	// UDPPortMin and UDPPortMax restrict the ICE ports. Zero means any port.
	UDPPortMin uint16
	UDPPortMax uint16
	// PublicIP is announced as host candidate instead of the local addresses.
	PublicIP string
	// IncludeLoopback gathers 127.0.0.1 candidates, for hosts without a
	// routable interface.
	IncludeLoopback bool

	Logger *log.Logger
}

// DefaultConfig returns a configuration suitable for testing.
// Uses ":0" to bind to a random available port.
func DefaultConfig() Config {
	return Config{
		Addr:            ":0",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		KeyframeSpacing: 500 * time.Millisecond,
		IncludeLoopback: true,
	}
}

func (c Config) settingEngine() (webrtc.SettingEngine, error) {
	se := webrtc.SettingEngine{}
	if c.UDPPortMin != 0 || c.UDPPortMax != 0 {
		if err := se.SetEphemeralUDPPortRange(c.UDPPortMin, c.UDPPortMax); err != nil {
			return se, fmt.Errorf("udp port range: %w", err)
		}
	}
	if c.PublicIP != "" {
		if net.ParseIP(c.PublicIP) == nil {
			return se, fmt.Errorf("invalid public ip %q", c.PublicIP)
		}
		se.SetNAT1To1IPs([]string{c.PublicIP}, webrtc.ICECandidateTypeHost)
	}
	se.SetIncludeLoopbackCandidate(c.IncludeLoopback)
	return se, nil
}

// Server serves the conference applications and relays their media.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	addr       string
	mu         sync.Mutex
	running    bool

	log      *log.Logger
	relay    *relay.Relay
	hub      *Hub
	registry *prometheus.Registry
}

// NewServer creates a new server with the given configuration.
// The server is not started until Start() is called.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = &log.DefaultLogger
	}
	se, err := cfg.settingEngine()
	if err != nil {
		return nil, err
	}
	spacing := cfg.KeyframeSpacing
	if spacing <= 0 {
		spacing = DefaultConfig().KeyframeSpacing
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{log: logger, registry: reg}
	s.hub = NewHub(logger, reg)
	s.relay = relay.New(
		relay.WithLogger(logger),
		relay.WithSettingEngine(se),
		relay.WithPeriodicKeyframes(cfg.KeyframeInterval),
		relay.WithKeyframeLimit(spacing, 1),
		relay.WithMetrics(relay.NewMetrics(reg)),
		relay.WithOnChange(s.hub.Broadcast),
	)
	s.hub.status = s.relay.Status

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Start begins listening and serving HTTP requests.
// Returns the actual address the server is listening on (useful when port is 0).
// This method is non-blocking - the server runs in a goroutine.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.addr, nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = ln
	s.addr = ln.Addr().String()
	s.running = true

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http server stopped")
		}
	}()

	s.log.Info().Str("addr", s.addr).Msg("conference server listening")
	return s.addr, nil
}

// Shutdown gracefully shuts down the server, disconnecting every publisher,
// viewer and event subscriber.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	s.hub.Close()
	err := s.httpServer.Shutdown(ctx)
	if rerr := s.relay.Close(); err == nil {
		err = rerr
	}
	return err
}

// Addr returns the address the server is listening on.
// Returns empty string if server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// URL returns the base URL of the running server, using localhost for
// wildcard listen addresses.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Relay returns the media relay.
func (s *Server) Relay() *relay.Relay { return s.relay }
