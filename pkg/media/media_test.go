package media

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueInputs(t *testing.T) {
	devices := []Device{
		{DeviceID: "default", Kind: AudioInput, Label: "Default - Fake Audio Input 1"},
		{DeviceID: "a1", Kind: AudioInput, Label: "Fake Audio Input 1"},
		{DeviceID: "v1", Kind: VideoInput, Label: "fake_device_0"},
		{DeviceID: "a2", Kind: AudioInput, Label: "Fake Audio Input 2"},
		{DeviceID: "a1", Kind: AudioInput, Label: "Fake Audio Input 1"},
		{DeviceID: "communications-default", Kind: AudioInput, Label: "Communications"},
		{DeviceID: "o1", Kind: AudioOutput, Label: "Fake Audio Output 1"},
	}

	mics := UniqueInputs(devices, AudioInput)
	assert.Equal(t, []string{"Fake Audio Input 1", "Fake Audio Input 2"}, Labels(mics))

	cams := UniqueInputs(devices, VideoInput)
	assert.Equal(t, []string{"fake_device_0"}, Labels(cams))

	d, ok := DefaultDevice(devices, AudioInput)
	require.True(t, ok)
	assert.Equal(t, "a1", d.DeviceID)

	_, ok = DefaultDevice(nil, VideoInput)
	assert.False(t, ok)
}

func TestResolutions(t *testing.T) {
	caps := Capabilities{Width: Range{Min: 1, Max: 1920}, Height: Range{Min: 1, Max: 1080}}
	names := func(rs []Resolution) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.Name)
		}
		return out
	}

	assert.Equal(t, []string{"1080p", "720p", "480p", "360p", "240p"}, names(Resolutions(caps)))
	assert.Len(t, Resolutions(Capabilities{}), len(StandardResolutions), "unknown capabilities offer everything")

	small := Capabilities{Width: Range{Min: 640, Max: 640}, Height: Range{Min: 360, Max: 480}}
	assert.Equal(t, []string{"360p"}, names(Resolutions(small)))
	assert.Equal(t, "640x360", Resolutions(small)[0].String())
}

func TestCheckApplied(t *testing.T) {
	want := ForResolution(Resolution{Width: 1280, Height: 720})
	assert.NoError(t, CheckApplied(want, Settings{Width: 1280, Height: 720}))

	err := CheckApplied(want, Settings{Width: 640, Height: 480})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConstraintNotApplied))
	assert.Contains(t, err.Error(), "1280x720")
	assert.Contains(t, err.Error(), "640x480")

	echo := true
	stereo := Stereo
	err = CheckApplied(Constraints{EchoCancellation: &echo, ChannelCount: &stereo}, Settings{ChannelCount: Mono})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "echoCancellation")
	assert.Contains(t, err.Error(), "channelCount")

	// width alone is not a resolution request
	w := 1920
	assert.NoError(t, CheckApplied(Constraints{Width: &w}, Settings{Width: 640}))
}

func TestFormatViewerCount(t *testing.T) {
	assert.Equal(t, "0 viewers", FormatViewerCount(0))
	assert.Equal(t, "1 viewer", FormatViewerCount(1))
	assert.Equal(t, "12 viewers", FormatViewerCount(12))
}

func TestFormatSessionTime(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatSessionTime(0))
	assert.Equal(t, "00:00:59", FormatSessionTime(59*time.Second+900*time.Millisecond))
	assert.Equal(t, "00:01:05", FormatSessionTime(65*time.Second))
	assert.Equal(t, "02:03:04", FormatSessionTime(2*time.Hour+3*time.Minute+4*time.Second))
	assert.Equal(t, "00:00:00", FormatSessionTime(-time.Second))
}

func TestFormatBitrate(t *testing.T) {
	assert.Equal(t, "2.50 Mbps", FormatBitrate(2_500_000))
	assert.Equal(t, "500 Kbps", FormatBitrate(500_000))
	assert.Equal(t, "800 bps", FormatBitrate(800))
}

func TestCatalogs(t *testing.T) {
	assert.Equal(t, []string{"Auto", "2 Mbps", "1 Mbps", "500 Kbps", "250 Kbps"}, BitrateNames())
	assert.Equal(t, "h264", Codecs[0])
	assert.Equal(t, "Auto", Qualities[0])
}

func TestSession_Lifecycle(t *testing.T) {
	s := NewSession("demo", "acct")
	assert.Equal(t, Ready, s.State())

	require.NoError(t, s.Begin())
	assert.Equal(t, Connecting, s.State())
	assert.ErrorIs(t, s.Begin(), ErrNotReady, "cannot start twice")

	start := time.Unix(1000, 0)
	require.NoError(t, s.Established(start))
	assert.Equal(t, Streaming, s.State())
	assert.Equal(t, 90*time.Second, s.Uptime(start.Add(90*time.Second)))

	s.SetViewers(3)
	assert.Equal(t, 3, s.Viewers())

	s.End()
	assert.Equal(t, Ready, s.State())
	assert.Equal(t, 0, s.Viewers())
	assert.Zero(t, s.Uptime(start.Add(time.Hour)))
}

func TestSession_FailedConnectionReturnsToReady(t *testing.T) {
	s := NewSession("demo", "")
	assert.ErrorIs(t, s.Established(time.Now()), ErrNotConnecting)

	require.NoError(t, s.Begin())
	s.End()
	assert.Equal(t, Ready, s.State())
	assert.NoError(t, s.Begin())
}

func TestSession_LinkText(t *testing.T) {
	s := NewSession("my stream", "acct1")
	assert.Equal(t, "http://localhost:8080/viewer?streamAccountId=acct1&streamName=my+stream",
		s.LinkText("http://localhost:8080/viewer"))
}

func TestShareLink(t *testing.T) {
	tests := []struct {
		name, appURL, account, want string
	}{
		{"plain", "http://localhost:8080/publisher", "", "http://localhost:8080/publisher?streamName=demo"},
		{"existing query", "https://conf.example.com/viewer?lang=en", "acct1",
			"https://conf.example.com/viewer?lang=en&streamAccountId=acct1&streamName=demo"},
		{"stream replaced", "https://conf.example.com/viewer?streamName=old", "",
			"https://conf.example.com/viewer?streamName=demo"},
		{"fragment kept", "https://conf.example.com/viewer#player", "",
			"https://conf.example.com/viewer?streamName=demo#player"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShareLink(tt.appURL, "demo", tt.account))
		})
	}
}
