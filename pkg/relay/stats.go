package relay

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// DefaultStreamTimeout is how long a silent stream keeps being reported.
const DefaultStreamTimeout = 2 * time.Second

// ErrNotBound is returned when a keyframe is requested before pion bound
// the RTCP writer.
var ErrNotBound = errors.New("rtcp writer not bound")

// StatsInterceptor counts the RTP received on one PeerConnection and sends
// picture loss indications to ask the sender for keyframes.
type StatsInterceptor struct {
	interceptor.NoOp

	window           time.Duration
	keyframeInterval time.Duration
	timeout          time.Duration

	streams sync.Map // uint32 -> *streamState

	mu     sync.Mutex
	writer interceptor.RTCPWriter

	closed    chan struct{}
	closeOnce sync.Once
	startOnce sync.Once
	wg        sync.WaitGroup
}

// InterceptorOption configures a StatsInterceptor.
type InterceptorOption func(*StatsInterceptor)

// WithWindow sets the bitrate averaging window.
func WithWindow(d time.Duration) InterceptorOption {
	return func(i *StatsInterceptor) { i.window = d }
}

// WithKeyframeInterval makes the interceptor request a keyframe on every
// video stream each d. Zero disables periodic requests.
func WithKeyframeInterval(d time.Duration) InterceptorOption {
	return func(i *StatsInterceptor) { i.keyframeInterval = d }
}

// WithStreamTimeout sets how long a stream may stay silent before it is dropped.
func WithStreamTimeout(d time.Duration) InterceptorOption {
	return func(i *StatsInterceptor) { i.timeout = d }
}

// NewStatsInterceptor returns an interceptor with opts applied.
func NewStatsInterceptor(opts ...InterceptorOption) *StatsInterceptor {
	i := &StatsInterceptor{
		window:  DefaultWindow,
		timeout: DefaultStreamTimeout,
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Close stops the background loops.
func (i *StatsInterceptor) Close() error {
	i.closeOnce.Do(func() { close(i.closed) })
	i.wg.Wait()
	return nil
}

// BindRTCPWriter keeps writer for keyframe requests.
func (i *StatsInterceptor) BindRTCPWriter(writer interceptor.RTCPWriter) interceptor.RTCPWriter {
	i.mu.Lock()
	i.writer = writer
	i.mu.Unlock()

	if i.keyframeInterval > 0 {
		i.wg.Add(1)
		go i.keyframeLoop()
	}
	return writer
}

// BindRemoteStream wraps reader to count every valid RTP packet.
func (i *StatsInterceptor) BindRemoteStream(info *interceptor.StreamInfo, reader interceptor.RTPReader) interceptor.RTPReader {
	i.startOnce.Do(func() {
		i.wg.Add(1)
		go i.cleanupLoop()
	})

	state := newStreamState(info.SSRC, info.MimeType, i.window, time.Now())
	i.streams.Store(info.SSRC, state)

	return interceptor.RTPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		n, a, err := reader.Read(b, a)
		if err == nil && n > 0 {
			var h rtp.Header
			if _, perr := h.Unmarshal(b[:n]); perr == nil {
				if s, ok := i.streams.Load(h.SSRC); ok {
					s.(*streamState).packet(n, time.Now())
				}
			}
		}
		return n, a, err
	})
}

// UnbindRemoteStream forgets the stream.
func (i *StatsInterceptor) UnbindRemoteStream(info *interceptor.StreamInfo) {
	i.streams.Delete(info.SSRC)
}

// Stats returns a snapshot of every tracked stream ordered by SSRC.
func (i *StatsInterceptor) Stats() []StreamStats {
	now := time.Now()
	var out []StreamStats
	i.streams.Range(func(_, v any) bool {
		out = append(out, v.(*streamState).snapshot(now))
		return true
	})
	sort.Slice(out, func(a, b int) bool { return out[a].SSRC < out[b].SSRC })
	return out
}

// RequestKeyframe sends a picture loss indication for each of ssrcs, or for
// every video stream when none is given.
func (i *StatsInterceptor) RequestKeyframe(ssrcs ...uint32) error {
	i.mu.Lock()
	writer := i.writer
	i.mu.Unlock()
	if writer == nil {
		return ErrNotBound
	}

	if len(ssrcs) == 0 {
		i.streams.Range(func(_, v any) bool {
			if s := v.(*streamState); strings.HasPrefix(s.mimeType, "video/") {
				ssrcs = append(ssrcs, s.ssrc)
			}
			return true
		})
	}
	if len(ssrcs) == 0 {
		return nil
	}

	pkts := make([]rtcp.Packet, 0, len(ssrcs))
	for _, ssrc := range ssrcs {
		pkts = append(pkts, &rtcp.PictureLossIndication{MediaSSRC: ssrc})
		if s, ok := i.streams.Load(ssrc); ok {
			s.(*streamState).keyframes.Add(1)
		}
	}
	_, err := writer.Write(pkts, nil)
	return err
}

func (i *StatsInterceptor) keyframeLoop() {
	defer i.wg.Done()
	ticker := time.NewTicker(i.keyframeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-i.closed:
			return
		case <-ticker.C:
			_ = i.RequestKeyframe()
		}
	}
}

func (i *StatsInterceptor) cleanupLoop() {
	defer i.wg.Done()
	ticker := time.NewTicker(i.timeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-i.closed:
			return
		case now := <-ticker.C:
			i.dropSilent(now)
		}
	}
}

func (i *StatsInterceptor) dropSilent(now time.Time) {
	i.streams.Range(func(k, v any) bool {
		if now.Sub(v.(*streamState).lastPacket()) > i.timeout {
			i.streams.Delete(k)
		}
		return true
	})
}
