package media

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// State is the publisher session state shown by the publisher app.
type State string

const (
	Ready      State = "ready"
	Connecting State = "connecting"
	Streaming  State = "streaming"
)

var (
	// ErrNotReady is returned when a session is started while one is already
	// connecting or streaming.
	ErrNotReady = errors.New("publisher is not ready")
	// ErrNotConnecting is returned when a connection completes for a session
	// that was not connecting.
	ErrNotConnecting = errors.New("publisher is not connecting")
)

// Session tracks one publisher: ready -> connecting -> streaming -> ready.
// A failed connection returns the session to ready. It is safe for
// concurrent use.
type Session struct {
	StreamName string
	AccountID  string

	mu      sync.Mutex
	state   State
	viewers int
	started time.Time
}

// NewSession returns a session in the ready state.
func NewSession(streamName, accountID string) *Session {
	return &Session{StreamName: streamName, AccountID: accountID, state: Ready}
}

// Begin moves a ready session to connecting.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready {
		return fmt.Errorf("%w: state is %s", ErrNotReady, s.state)
	}
	s.state = Connecting
	return nil
}

// Established moves a connecting session to streaming.
func (s *Session) Established(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connecting {
		return fmt.Errorf("%w: state is %s", ErrNotConnecting, s.state)
	}
	s.state = Streaming
	s.started = now
	return nil
}

// End returns the session to ready and clears the viewer count.
// Used both for a failed connection and for a stopped stream.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Ready
	s.viewers = 0
	s.started = time.Time{}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetViewers records the number of connected viewers.
func (s *Session) SetViewers(n int) {
	s.mu.Lock()
	s.viewers = n
	s.mu.Unlock()
}

// Viewers returns the number of connected viewers.
func (s *Session) Viewers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewers
}

// Uptime returns how long the session has been streaming.
func (s *Session) Uptime(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Streaming {
		return 0
	}
	return now.Sub(s.started)
}

// LinkText is the share link handed to viewers.
func (s *Session) LinkText(viewerURL string) string {
	return ShareLink(viewerURL, s.StreamName, s.AccountID)
}

// ShareLink points appURL at a stream. Query parameters already in appURL
// are kept; the stream parameters replace any of the same name.
func ShareLink(appURL, streamName, accountID string) string {
	u, err := url.Parse(appURL)
	if err != nil {
		u = &url.URL{Path: appURL}
	}
	q := u.Query()
	q.Set("streamName", streamName)
	if accountID != "" {
		q.Set("streamAccountId", accountID)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
