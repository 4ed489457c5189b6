// Package relay forwards the media of one publisher per stream to any
// number of viewers.
//
// A publisher and each viewer hold their own pion PeerConnection. The RTP of
// every published track is copied to a TrackLocalStaticRTP that all viewer
// connections share, so no packet is decoded or re-encoded. Keyframe
// requests from viewers, and one per joining viewer, are forwarded to the
// publisher through its StatsInterceptor, throttled by a rate limiter.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"golang.org/x/time/rate"

	"github.com/thesyncim/confcheck/pkg/media"
)

var (
	// ErrAlreadyLive is returned when a stream already has a publisher.
	ErrAlreadyLive = errors.New("stream already has a publisher")
	// ErrNotLive is returned when viewing a stream that is not streaming.
	ErrNotLive = errors.New("stream is not live")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("relay closed")
)

// Source describes one media source of a publisher: the browser
// MediaStream carrying it, its kind (camera, screen or file) and its name.
type Source struct {
	StreamID string `json:"streamId"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
}

// Track is a forwarded track as viewers receive it.
type Track struct {
	ID       string `json:"id"`
	StreamID string `json:"streamId"`
	Kind     string `json:"kind"`
}

// Status describes one stream.
type Status struct {
	Name    string        `json:"name"`
	State   media.State   `json:"state"`
	Live    bool          `json:"live"`
	Viewers int           `json:"viewers"`
	Uptime  time.Duration `json:"uptime"`
	Sources []Source      `json:"sources,omitempty"`
	Tracks  []Track       `json:"tracks,omitempty"`
	Streams []StreamStats `json:"streams,omitempty"`
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the relay logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Relay) { r.log = l }
}

// WithPeriodicKeyframes asks every publisher for a keyframe each d.
func WithPeriodicKeyframes(d time.Duration) Option {
	return func(r *Relay) { r.keyframeInterval = d }
}

// WithKeyframeLimit allows one forwarded keyframe request per every, with
// bursts of burst.
func WithKeyframeLimit(every time.Duration, burst int) Option {
	return func(r *Relay) {
		r.keyframeEvery = every
		r.keyframeBurst = burst
	}
}

// WithSettingEngine sets the ICE and transport settings of every
// PeerConnection the relay creates.
func WithSettingEngine(se webrtc.SettingEngine) Option {
	return func(r *Relay) { r.settings = se }
}

// WithMetrics records relay activity in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// WithOnChange is called with the new status whenever a stream goes live,
// stops or its viewer count changes. It must not block.
func WithOnChange(fn func(Status)) Option {
	return func(r *Relay) { r.onChange = fn }
}

// Relay holds the live streams.
type Relay struct {
	log              *log.Logger
	keyframeInterval time.Duration
	keyframeEvery    time.Duration
	keyframeBurst    int
	metrics          *Metrics
	onChange         func(Status)
	settings         webrtc.SettingEngine

	mu      sync.Mutex
	streams map[string]*stream
	closed  bool
}

type stream struct {
	name    string
	sources []Source
	session *media.Session
	limiter *rate.Limiter

	mu       sync.Mutex
	pc       *webrtc.PeerConnection
	stats    *StatsInterceptor
	expected int
	tracks   []*webrtc.TrackLocalStaticRTP
	viewers  map[string]*webrtc.PeerConnection
}

// New returns an empty relay.
func New(opts ...Option) *Relay {
	r := &Relay{
		log:           &log.DefaultLogger,
		keyframeEvery: 500 * time.Millisecond,
		keyframeBurst: 1,
		streams:       make(map[string]*stream),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) newAPI(onStats func(*StatsInterceptor)) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	if err := webrtc.ConfigureSimulcastExtensionHeaders(m); err != nil {
		return nil, fmt.Errorf("configure simulcast: %w", err)
	}
	m.RegisterFeedback(webrtc.RTCPFeedback{Type: "nack"}, webrtc.RTPCodecTypeVideo)
	m.RegisterFeedback(webrtc.RTCPFeedback{Type: "nack", Parameter: "pli"}, webrtc.RTPCodecTypeVideo)

	reg := &interceptor.Registry{}
	if err := webrtc.ConfigureRTCPReports(reg); err != nil {
		return nil, fmt.Errorf("configure rtcp reports: %w", err)
	}
	// The publisher side asks for retransmissions, the viewer side answers them.
	generator, err := nack.NewGeneratorInterceptor()
	if err != nil {
		return nil, fmt.Errorf("nack generator: %w", err)
	}
	reg.Add(generator)
	responder, err := nack.NewResponderInterceptor()
	if err != nil {
		return nil, fmt.Errorf("nack responder: %w", err)
	}
	reg.Add(responder)
	if onStats != nil {
		f, err := NewStatsFactory(
			WithFactoryKeyframeInterval(r.keyframeInterval),
			WithOnInterceptor(onStats),
		)
		if err != nil {
			return nil, err
		}
		reg.Add(f)
	}
	return webrtc.NewAPI(
		webrtc.WithSettingEngine(r.settings),
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(reg),
	), nil
}

// negotiate answers offer on pc.
func negotiate(ctx context.Context, pc *webrtc.PeerConnection, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("set remote description: %w", err)
	}
	return answer(ctx, pc)
}

// answer creates the local answer and waits for ICE gathering to complete,
// so the returned description carries every candidate.
func answer(ctx context.Context, pc *webrtc.PeerConnection) (*webrtc.SessionDescription, error) {
	desc, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(desc); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return pc.LocalDescription(), nil
}

// Publish answers the offer of the publisher of name. The stream goes live
// once every offered track has arrived. sources are passed on to viewers
// through Status.
func (r *Relay) Publish(ctx context.Context, name string, offer webrtc.SessionDescription, sources ...Source) (*webrtc.SessionDescription, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := r.streams[name]; ok {
		r.mu.Unlock()
		r.metrics.publish("conflict")
		return nil, fmt.Errorf("%w: %s", ErrAlreadyLive, name)
	}
	s := &stream{
		name:    name,
		sources: sources,
		session: media.NewSession(name, ""),
		limiter: rate.NewLimiter(rate.Every(r.keyframeEvery), r.keyframeBurst),
		viewers: make(map[string]*webrtc.PeerConnection),
	}
	r.streams[name] = s
	r.mu.Unlock()

	desc, err := r.startPublisher(ctx, s, offer)
	if err != nil {
		r.metrics.publish("error")
		r.remove(s)
		return nil, err
	}
	r.metrics.publish("ok")
	return desc, nil
}

// addTrack appends local unless a track with its ID is already relayed, and
// reports whether every expected track has arrived.
func (s *stream) addTrack(local *webrtc.TrackLocalStaticRTP) (added, complete bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		if t.ID() == local.ID() {
			return false, false
		}
	}
	s.tracks = append(s.tracks, local)
	return true, len(s.tracks) >= s.expected
}

func drain(remote *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := remote.Read(buf); err != nil {
			return
		}
	}
}

func (r *Relay) startPublisher(ctx context.Context, s *stream, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := s.session.Begin(); err != nil {
		return nil, err
	}
	api, err := r.newAPI(func(i *StatsInterceptor) {
		s.mu.Lock()
		s.stats = i
		s.mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	s.mu.Lock()
	s.pc = pc
	s.mu.Unlock()

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		local, err := webrtc.NewTrackLocalStaticRTP(remote.Codec().RTPCodecCapability, remote.ID(), remote.StreamID())
		if err != nil {
			r.log.Error().Err(err).Str("stream", s.name).Msg("failed to create local track")
			return
		}
		added, complete := s.addTrack(local)
		if !added {
			// Only the first simulcast layer of a track is relayed.
			r.log.Debug().Str("stream", s.name).Str("rid", remote.RID()).Msg("dropping extra simulcast layer")
			go drain(remote)
			return
		}
		r.log.Info().Str("stream", s.name).Str("codec", remote.Codec().MimeType).Str("rid", remote.RID()).Msg("publisher track")
		go r.forward(remote, local)

		if complete && s.session.State() == media.Connecting {
			if err := s.session.Established(time.Now()); err == nil {
				r.log.Info().Str("stream", s.name).Msg("stream live")
				r.changed(s)
			}
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		r.log.Debug().Str("stream", s.name).Str("state", state.String()).Msg("publisher connection")
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			r.remove(s)
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("set remote description: %w", err)
	}
	expected := 0
	for _, t := range pc.GetTransceivers() {
		if d := t.Direction(); d == webrtc.RTPTransceiverDirectionRecvonly || d == webrtc.RTPTransceiverDirectionSendrecv {
			expected++
		}
	}
	s.mu.Lock()
	s.expected = max(expected, 1)
	s.mu.Unlock()
	return answer(ctx, pc)
}

func (r *Relay) forward(remote *webrtc.TrackRemote, local *webrtc.TrackLocalStaticRTP) {
	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			return
		}
		if err := local.WriteRTP(pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			return
		}
		r.metrics.packet()
	}
}

// View answers the offer of a viewer of name and returns the viewer id.
func (r *Relay) View(ctx context.Context, name string, offer webrtc.SessionDescription) (*webrtc.SessionDescription, string, error) {
	s := r.stream(name)
	if s == nil || s.session.State() != media.Streaming {
		return nil, "", fmt.Errorf("%w: %s", ErrNotLive, name)
	}
	api, err := r.newAPI(nil)
	if err != nil {
		return nil, "", err
	}
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, "", fmt.Errorf("new peer connection: %w", err)
	}

	s.mu.Lock()
	tracks := append([]*webrtc.TrackLocalStaticRTP(nil), s.tracks...)
	s.mu.Unlock()
	for _, t := range tracks {
		sender, err := pc.AddTrack(t)
		if err != nil {
			_ = pc.Close()
			return nil, "", fmt.Errorf("add track: %w", err)
		}
		go r.readRTCP(s, sender)
	}

	id := uuid.NewString()
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			r.keyframe(s)
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			r.Leave(name, id)
		}
	})

	desc, err := negotiate(ctx, pc, offer)
	if err != nil {
		_ = pc.Close()
		return nil, "", err
	}

	s.mu.Lock()
	s.viewers[id] = pc
	n := len(s.viewers)
	s.mu.Unlock()
	s.session.SetViewers(n)
	r.metrics.setViewers(name, n)
	r.log.Info().Str("stream", name).Str("viewer", id).Int("viewers", n).Msg("viewer joined")
	r.changed(s)
	return desc, id, nil
}

// readRTCP forwards the keyframe requests a viewer sends for one track.
func (r *Relay) readRTCP(s *stream, sender *webrtc.RTPSender) {
	for {
		pkts, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, p := range pkts {
			switch p.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				r.keyframe(s)
			}
		}
	}
}

// keyframe asks the publisher of s for a keyframe unless one was requested
// too recently.
func (r *Relay) keyframe(s *stream) {
	stats := s.statsInterceptor()
	if stats == nil || !s.limiter.Allow() {
		return
	}
	if err := stats.RequestKeyframe(); err != nil {
		r.log.Debug().Err(err).Str("stream", s.name).Msg("keyframe request failed")
		return
	}
	r.metrics.keyframe()
}

// Leave disconnects a viewer. Unknown ids are ignored.
func (r *Relay) Leave(name, id string) {
	s := r.stream(name)
	if s == nil {
		return
	}
	s.mu.Lock()
	pc, ok := s.viewers[id]
	delete(s.viewers, id)
	n := len(s.viewers)
	s.mu.Unlock()
	if !ok {
		return
	}
	_ = pc.Close()
	s.session.SetViewers(n)
	r.metrics.setViewers(name, n)
	r.log.Info().Str("stream", name).Str("viewer", id).Int("viewers", n).Msg("viewer left")
	r.changed(s)
}

// Unpublish stops the stream and disconnects its viewers.
func (r *Relay) Unpublish(name string) error {
	s := r.stream(name)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrNotLive, name)
	}
	r.remove(s)
	return nil
}

// remove tears s down once.
func (r *Relay) remove(s *stream) {
	r.mu.Lock()
	if r.streams[s.name] != s {
		r.mu.Unlock()
		return
	}
	delete(r.streams, s.name)
	r.mu.Unlock()

	s.mu.Lock()
	viewers := s.viewers
	s.viewers = make(map[string]*webrtc.PeerConnection)
	pc, stats := s.pc, s.stats
	s.mu.Unlock()
	for _, v := range viewers {
		_ = v.Close()
	}
	if pc != nil {
		_ = pc.Close()
	}
	if stats != nil {
		_ = stats.Close()
	}
	s.session.End()
	r.metrics.setViewers(s.name, 0)
	r.log.Info().Str("stream", s.name).Msg("stream stopped")
	r.changed(s)
}

func (s *stream) statsInterceptor() *StatsInterceptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (r *Relay) stream(name string) *stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streams[name]
}

func (r *Relay) changed(s *stream) {
	r.mu.Lock()
	live := 0
	for _, st := range r.streams {
		if st.session.State() == media.Streaming {
			live++
		}
	}
	r.mu.Unlock()
	r.metrics.setLive(live)
	if r.onChange != nil {
		r.onChange(r.Status(s.name))
	}
}

// Status returns the status of name. Unknown streams are ready with no viewers.
func (r *Relay) Status(name string) Status {
	st := Status{Name: name, State: media.Ready}
	s := r.stream(name)
	if s == nil {
		return st
	}
	st.State = s.session.State()
	st.Live = st.State == media.Streaming
	st.Viewers = s.session.Viewers()
	st.Uptime = s.session.Uptime(time.Now())
	st.Sources = s.sources
	s.mu.Lock()
	for _, t := range s.tracks {
		st.Tracks = append(st.Tracks, Track{ID: t.ID(), StreamID: t.StreamID(), Kind: t.Kind().String()})
	}
	s.mu.Unlock()
	if stats := s.statsInterceptor(); stats != nil {
		st.Streams = stats.Stats()
	}
	return st
}

// Streams returns the status of every stream, ordered by name.
func (r *Relay) Streams() []Status {
	r.mu.Lock()
	names := make([]string, 0, len(r.streams))
	for name := range r.streams {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)
	out := make([]Status, 0, len(names))
	for _, name := range names {
		out = append(out, r.Status(name))
	}
	return out
}

// Close stops every stream.
func (r *Relay) Close() error {
	r.mu.Lock()
	r.closed = true
	streams := make([]*stream, 0, len(r.streams))
	for _, s := range r.streams {
		streams = append(streams, s)
	}
	r.mu.Unlock()
	for _, s := range streams {
		r.remove(s)
	}
	return nil
}
