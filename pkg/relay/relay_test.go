package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/phuslu/log"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/confcheck/pkg/media"
)

func loopbackSettings() webrtc.SettingEngine {
	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(true)
	se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	return se
}

func quietLogger() *log.Logger {
	return &log.Logger{Level: log.PanicLevel}
}

func newPeer(t *testing.T) *webrtc.PeerConnection {
	t.Helper()
	m := &webrtc.MediaEngine{}
	require.NoError(t, m.RegisterDefaultCodecs())
	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(loopbackSettings()))
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func createOffer(t *testing.T, pc *webrtc.PeerConnection) webrtc.SessionDescription {
	t.Helper()
	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	gathered := webrtc.GatheringCompletePromise(pc)
	require.NoError(t, pc.SetLocalDescription(offer))
	<-gathered
	return *pc.LocalDescription()
}

// publish connects a pion publisher sending VP8 until the test ends.
func publish(t *testing.T, r *Relay, name string) *webrtc.PeerConnection {
	t.Helper()
	pc := newPeer(t)
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", name)
	require.NoError(t, err)
	_, err = pc.AddTrack(track)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	answer, err := r.Publish(ctx, name, createOffer(t, pc), Source{StreamID: name, Kind: "camera", Name: "Camera"})
	require.NoError(t, err)
	require.NoError(t, pc.SetRemoteDescription(*answer))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(33 * time.Millisecond)
		defer ticker.Stop()
		frame := make([]byte, 800)
		frame[0] = 0x10
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = track.WriteSample(pionmedia.Sample{Data: frame, Duration: 33 * time.Millisecond})
			}
		}
	}()
	t.Cleanup(func() {
		close(done)
		wg.Wait()
	})
	return pc
}

// view connects a pion viewer and returns its id and a channel closed on
// the first received RTP packet.
func view(t *testing.T, r *Relay, name string) (string, <-chan struct{}) {
	t.Helper()
	pc := newPeer(t)
	_, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	require.NoError(t, err)

	received := make(chan struct{})
	var once sync.Once
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		for {
			if _, _, err := track.ReadRTP(); err != nil {
				return
			}
			once.Do(func() { close(received) })
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	answer, id, err := r.View(ctx, name, createOffer(t, pc))
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoError(t, pc.SetRemoteDescription(*answer))
	return id, received
}

type statusLog struct {
	mu       sync.Mutex
	statuses []Status
}

func (l *statusLog) add(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, s)
}

func (l *statusLog) seen(fn func(Status) bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.statuses {
		if fn(s) {
			return true
		}
	}
	return false
}

func TestRelay_PublishAndView(t *testing.T) {
	changes := &statusLog{}
	metrics := NewMetrics(prometheus.NewRegistry())
	r := New(
		WithLogger(quietLogger()),
		WithSettingEngine(loopbackSettings()),
		WithMetrics(metrics),
		WithOnChange(changes.add),
	)
	defer r.Close()

	publish(t, r, "demo")
	require.Eventually(t, func() bool { return r.Status("demo").Live }, 10*time.Second, 20*time.Millisecond)

	st := r.Status("demo")
	assert.Equal(t, media.Streaming, st.State)
	require.Len(t, st.Tracks, 1)
	assert.Equal(t, "video", st.Tracks[0].Kind)
	assert.Equal(t, "demo", st.Tracks[0].StreamID)
	assert.Equal(t, []Source{{StreamID: "demo", Kind: "camera", Name: "Camera"}}, st.Sources)
	assert.Equal(t, 0, st.Viewers)
	assert.Eventually(t, func() bool {
		return changes.seen(func(s Status) bool { return s.Name == "demo" && s.Live })
	}, time.Second, 10*time.Millisecond)

	id, received := view(t, r, "demo")
	select {
	case <-received:
	case <-time.After(10 * time.Second):
		t.Fatal("viewer received no media")
	}

	st = r.Status("demo")
	assert.Equal(t, 1, st.Viewers)
	require.NotEmpty(t, st.Streams)
	assert.Positive(t, st.Streams[0].Packets)
	assert.True(t, changes.seen(func(s Status) bool { return s.Viewers == 1 }))

	assert.Eventually(t, func() bool { return testutil.ToFloat64(metrics.keyframes) >= 1 },
		5*time.Second, 20*time.Millisecond, "joining viewer asks for a keyframe")
	assert.Positive(t, testutil.ToFloat64(metrics.packets))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.liveStreams))

	r.Leave("demo", id)
	assert.Equal(t, 0, r.Status("demo").Viewers)
	r.Leave("demo", id)

	require.NoError(t, r.Unpublish("demo"))
	st = r.Status("demo")
	assert.Equal(t, media.Ready, st.State)
	assert.False(t, st.Live)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.liveStreams))

	_, _, err := r.View(context.Background(), "demo", webrtc.SessionDescription{})
	assert.ErrorIs(t, err, ErrNotLive)
}

func TestRelay_OnePublisherPerStream(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	r := New(WithLogger(quietLogger()), WithSettingEngine(loopbackSettings()), WithMetrics(metrics))
	defer r.Close()

	publish(t, r, "demo")

	pc := newPeer(t)
	_, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo)
	require.NoError(t, err)
	_, err = r.Publish(context.Background(), "demo", createOffer(t, pc))
	assert.ErrorIs(t, err, ErrAlreadyLive)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.publishes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.publishes.WithLabelValues("conflict")))
}

func TestRelay_ViewerLeavesWhenStreamStops(t *testing.T) {
	r := New(WithLogger(quietLogger()), WithSettingEngine(loopbackSettings()))
	defer r.Close()

	publish(t, r, "demo")
	require.Eventually(t, func() bool { return r.Status("demo").Live }, 10*time.Second, 20*time.Millisecond)
	_, received := view(t, r, "demo")
	select {
	case <-received:
	case <-time.After(10 * time.Second):
		t.Fatal("viewer received no media")
	}

	require.NoError(t, r.Close())
	assert.Empty(t, r.Streams())

	_, err := r.Publish(context.Background(), "demo", webrtc.SessionDescription{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRelay_BadOffer(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	r := New(WithLogger(quietLogger()), WithMetrics(metrics))
	defer r.Close()

	_, err := r.Publish(context.Background(), "demo", webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "garbage"})
	require.Error(t, err)
	assert.Equal(t, media.Ready, r.Status("demo").State, "failed publish frees the stream name")
	assert.Empty(t, r.Streams())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.publishes.WithLabelValues("error")))
}

func TestRelay_UnknownStream(t *testing.T) {
	r := New(WithLogger(quietLogger()))
	defer r.Close()

	st := r.Status("nope")
	assert.Equal(t, Status{Name: "nope", State: media.Ready}, st)
	assert.ErrorIs(t, r.Unpublish("nope"), ErrNotLive)

	_, _, err := r.View(context.Background(), "nope", webrtc.SessionDescription{})
	assert.ErrorIs(t, err, ErrNotLive)

	r.Leave("nope", "viewer")
}
