package media

// Bitrate is an entry of the publisher bitrate selector. Value is in kbps,
// 0 meaning the encoder picks.
type Bitrate struct {
	Name  string
	Value int
}

// Bitrates lists the selectable publishing bitrates.
var Bitrates = []Bitrate{
	{Name: "Auto", Value: 0},
	{Name: "2 Mbps", Value: 2_000},
	{Name: "1 Mbps", Value: 1_000},
	{Name: "500 Kbps", Value: 500},
	{Name: "250 Kbps", Value: 250},
}

// Codecs lists the selectable video codecs, default first.
var Codecs = []string{"h264", "vp8", "vp9", "av1"}

// Qualities lists the viewer quality tabs, default first.
var Qualities = []string{"Auto", "High", "Medium", "Low"}

// BitrateNames returns the display names of Bitrates.
func BitrateNames() []string {
	names := make([]string, len(Bitrates))
	for i, b := range Bitrates {
		names[i] = b.Name
	}
	return names
}
