package media

import "fmt"

// Resolution is a capture size offered in the resolution selector.
type Resolution struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// StandardResolutions is the list offered to the user, highest first.
var StandardResolutions = []Resolution{
	{Name: "2160p", Width: 3840, Height: 2160},
	{Name: "1440p", Width: 2560, Height: 1440},
	{Name: "1080p", Width: 1920, Height: 1080},
	{Name: "720p", Width: 1280, Height: 720},
	{Name: "480p", Width: 854, Height: 480},
	{Name: "360p", Width: 640, Height: 360},
	{Name: "240p", Width: 426, Height: 240},
}

// Range is a min/max pair from MediaTrackCapabilities.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Capabilities is the subset of MediaTrackCapabilities the apps use.
type Capabilities struct {
	Width  Range `json:"width"`
	Height Range `json:"height"`
}

// Resolutions returns the standard resolutions the camera can produce.
// A zero capability range means the browser did not report it, in which
// case the whole list is offered.
func Resolutions(caps Capabilities) []Resolution {
	var out []Resolution
	for _, r := range StandardResolutions {
		if !within(caps.Width, r.Width) || !within(caps.Height, r.Height) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func within(rng Range, v int) bool {
	if rng.Max == 0 {
		return true
	}
	return v >= rng.Min && v <= rng.Max
}
