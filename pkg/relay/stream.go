package relay

import (
	"sync"
	"sync/atomic"
	"time"
)

// StreamStats is a snapshot of one incoming RTP stream.
type StreamStats struct {
	SSRC       uint32    `json:"ssrc"`
	MimeType   string    `json:"mime_type"`
	Packets    uint64    `json:"packets"`
	Bytes      uint64    `json:"bytes"`
	Bitrate    int64     `json:"bitrate"`
	LastPacket time.Time `json:"last_packet"`
	Keyframes  uint64    `json:"keyframe_requests"`
}

// streamState is updated by the RTP reader and read by the loops and Stats.
type streamState struct {
	ssrc     uint32
	mimeType string

	packets   atomic.Uint64
	bytes     atomic.Uint64
	keyframes atomic.Uint64
	last      atomic.Value // time.Time

	mu    sync.Mutex
	meter *Meter
}

func newStreamState(ssrc uint32, mimeType string, window time.Duration, now time.Time) *streamState {
	s := &streamState{ssrc: ssrc, mimeType: mimeType, meter: NewMeter(window)}
	s.last.Store(now)
	return s
}

func (s *streamState) packet(n int, now time.Time) {
	s.packets.Add(1)
	s.bytes.Add(uint64(n))
	s.last.Store(now)
	s.mu.Lock()
	s.meter.Add(int64(n), now)
	s.mu.Unlock()
}

func (s *streamState) lastPacket() time.Time {
	return s.last.Load().(time.Time)
}

func (s *streamState) snapshot(now time.Time) StreamStats {
	s.mu.Lock()
	bps, _ := s.meter.Bitrate(now)
	s.mu.Unlock()
	return StreamStats{
		SSRC:       s.ssrc,
		MimeType:   s.mimeType,
		Packets:    s.packets.Load(),
		Bytes:      s.bytes.Load(),
		Bitrate:    bps,
		LastPacket: s.lastPacket(),
		Keyframes:  s.keyframes.Load(),
	}
}
