package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/confcheck/pkg/media"
	"github.com/thesyncim/confcheck/pkg/relay"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := NewServer(quietConfig())
	require.NoError(t, err)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(func() {
		ts.Close()
		srv.hub.Close()
		_ = srv.relay.Close()
	})
	return srv, ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func do(t *testing.T, method, url string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestApps(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		path string
		want []string
	}{
		{
			path: "/publisher?streamName=room&streamAccountId=acct",
			want: []string{
				`data-stream="room"`, `data-account="acct"`,
				`test-id="pageHeader">Get started<`,
				`Setup your audio and video before going live.`,
				`test-id="timer">00:00:00<`,
				`test-id="addCameraButton"`, `test-id="startStreamingButton" disabled`,
				`test-id="stopStreamingButton"`, `test-id="selectSourcePopup"`,
				`test-id="settingsResolutionDropdown"`, `test-id="simulcastSwitch"`,
				`<option value="0">Auto</option>`, `<option value="h264">h264</option>`,
				`test-id="removeSourceButton"`,
			},
		},
		{
			path: "/viewer?streamName=room",
			want: []string{
				`data-stream="room"`,
				`test-id="pageHeader">Stream is not live<`,
				`Please wait for livestream to begin.`,
				`test-id="multiStreamLabel"`, `test-id="qualityTab"`,
				`aria-selected="false">Auto<`, `>Low<`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body := get(t, ts.URL+tt.path)
			require.Equal(t, http.StatusOK, code)
			for _, w := range tt.want {
				assert.Contains(t, body, w)
			}
		})
	}

	t.Run("viewer has no remove button", func(t *testing.T) {
		_, body := get(t, ts.URL+"/viewer")
		assert.NotContains(t, body, "removeSourceButton")
		assert.Contains(t, body, `data-stream="demo"`)
	})
}

func TestStaticAssets(t *testing.T) {
	_, ts := newTestServer(t)
	for _, name := range []string{"app.css", "common.js", "publisher.js", "viewer.js"} {
		code, body := get(t, ts.URL+"/static/"+name)
		assert.Equal(t, http.StatusOK, code, name)
		assert.NotEmpty(t, body, name)
	}
	code, _ := get(t, ts.URL+"/static/missing.js")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPublishErrors(t *testing.T) {
	_, ts := newTestServer(t)

	code, _ := do(t, http.MethodPost, ts.URL+"/api/publish", "{")
	assert.Equal(t, http.StatusBadRequest, code, "malformed body")

	code, _ = do(t, http.MethodPost, ts.URL+"/api/publish", PublishRequest{})
	assert.Equal(t, http.StatusBadRequest, code, "missing stream name")

	code, _ = do(t, http.MethodPost, ts.URL+"/api/publish", PublishRequest{
		StreamName: "room",
		Offer:      webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "garbage"},
	})
	assert.Equal(t, http.StatusBadRequest, code, "bad offer")

	code, _ = do(t, http.MethodDelete, ts.URL+"/api/publish?streamName=room", nil)
	assert.Equal(t, http.StatusNotFound, code, "unpublish unknown stream")
}

func TestViewErrors(t *testing.T) {
	_, ts := newTestServer(t)

	code, _ := do(t, http.MethodPost, ts.URL+"/api/view", "not json")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, http.MethodPost, ts.URL+"/api/view", ViewRequest{StreamName: "room"})
	assert.Equal(t, http.StatusConflict, code, "stream is not live")

	code, _ = do(t, http.MethodDelete, ts.URL+"/api/view?streamName=room&viewerId=nobody", nil)
	assert.Equal(t, http.StatusNoContent, code)
}

func TestResolutions(t *testing.T) {
	_, ts := newTestServer(t)

	caps := media.Capabilities{
		Width:  media.Range{Min: 1, Max: 1280},
		Height: media.Range{Min: 1, Max: 720},
	}
	code, body := do(t, http.MethodPost, ts.URL+"/api/resolutions", caps)
	require.Equal(t, http.StatusOK, code)
	var got []media.Resolution
	require.NoError(t, json.Unmarshal(body, &got))
	require.NotEmpty(t, got)
	assert.Equal(t, "1280x720", got[0].String())
	assert.Equal(t, media.Resolutions(caps), got)

	code, body = do(t, http.MethodPost, ts.URL+"/api/resolutions", media.Capabilities{
		Width:  media.Range{Min: 1, Max: 100},
		Height: media.Range{Min: 1, Max: 100},
	})
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(body))

	code, _ = do(t, http.MethodPost, ts.URL+"/api/resolutions", "[")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatus(t *testing.T) {
	_, ts := newTestServer(t)

	code, body := get(t, ts.URL+"/api/status?streamName=room")
	require.Equal(t, http.StatusOK, code)
	var st relay.Status
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.Equal(t, "room", st.Name)
	assert.Equal(t, media.Ready, st.State)
	assert.False(t, st.Live)

	code, body = get(t, ts.URL+"/api/status")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", body)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	code, body := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "confcheck_event_subscribers")
	assert.Contains(t, body, "go_goroutines")
}

func loopbackPeer(t *testing.T) *webrtc.PeerConnection {
	t.Helper()
	m := &webrtc.MediaEngine{}
	require.NoError(t, m.RegisterDefaultCodecs())
	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(true)
	se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	pc, err := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(se)).NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func offer(t *testing.T, pc *webrtc.PeerConnection) webrtc.SessionDescription {
	t.Helper()
	desc, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	gathered := webrtc.GatheringCompletePromise(pc)
	require.NoError(t, pc.SetLocalDescription(desc))
	<-gathered
	return *pc.LocalDescription()
}

func TestPublishAndView(t *testing.T) {
	srv, ts := newTestServer(t)

	// Publisher
	pub := loopbackPeer(t)
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "cam")
	require.NoError(t, err)
	_, err = pub.AddTrack(track)
	require.NoError(t, err)

	code, body := do(t, http.MethodPost, ts.URL+"/api/publish", PublishRequest{
		StreamName: "room",
		Offer:      offer(t, pub),
		Sources:    []relay.Source{{StreamID: "cam", Kind: "camera", Name: "Camera"}},
	})
	require.Equal(t, http.StatusOK, code, string(body))
	var resp AnswerResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotNil(t, resp.Answer)
	assert.Empty(t, resp.ViewerID)
	require.NoError(t, pub.SetRemoteDescription(*resp.Answer))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(33 * time.Millisecond)
		defer ticker.Stop()
		frame := make([]byte, 800)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = track.WriteSample(pionmedia.Sample{Data: frame, Duration: 33 * time.Millisecond})
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	require.Eventually(t, func() bool {
		return srv.Relay().Status("room").Live
	}, 10*time.Second, 50*time.Millisecond, "stream never went live")

	code, _ = do(t, http.MethodPost, ts.URL+"/api/publish", PublishRequest{StreamName: "room", Offer: offer(t, loopbackPeer(t))})
	assert.Equal(t, http.StatusConflict, code, "second publisher")

	// Viewer
	view := loopbackPeer(t)
	_, err = view.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly})
	require.NoError(t, err)
	received := make(chan string, 1)
	view.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if _, _, err := remote.ReadRTP(); err == nil {
			select {
			case received <- remote.StreamID():
			default:
			}
		}
	})

	code, body = do(t, http.MethodPost, ts.URL+"/api/view", ViewRequest{StreamName: "room", Offer: offer(t, view)})
	require.Equal(t, http.StatusOK, code, string(body))
	resp = AnswerResponse{}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.ViewerID)
	require.NoError(t, view.SetRemoteDescription(*resp.Answer))

	select {
	case id := <-received:
		assert.Equal(t, "cam", id)
	case <-time.After(10 * time.Second):
		t.Fatal("viewer received no media")
	}
	assert.Equal(t, 1, srv.Relay().Status("room").Viewers)

	code, _ = do(t, http.MethodDelete, ts.URL+"/api/view?streamName=room&viewerId="+resp.ViewerID, nil)
	assert.Equal(t, http.StatusNoContent, code)
	assert.Eventually(t, func() bool {
		return srv.Relay().Status("room").Viewers == 0
	}, 5*time.Second, 50*time.Millisecond)

	code, _ = do(t, http.MethodDelete, ts.URL+"/api/publish?streamName=room", nil)
	assert.Equal(t, http.StatusNoContent, code)
	assert.False(t, srv.Relay().Status("room").Live)
}
