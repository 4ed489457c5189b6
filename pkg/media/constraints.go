package media

import (
	"errors"
	"fmt"
)

// Constraints are the settings requested when re-acquiring a stream.
// Nil fields are not constrained.
type Constraints struct {
	Width            *int  `json:"width,omitempty"`
	Height           *int  `json:"height,omitempty"`
	EchoCancellation *bool `json:"echoCancellation,omitempty"`
	ChannelCount     *int  `json:"channelCount,omitempty"`
}

// Settings are the values reported by MediaStreamTrack.getSettings().
type Settings struct {
	Width            int  `json:"width"`
	Height           int  `json:"height"`
	EchoCancellation bool `json:"echoCancellation"`
	ChannelCount     int  `json:"channelCount"`
}

// Stereo and Mono are the supported channel counts.
const (
	Mono   = 1
	Stereo = 2
)

// ErrConstraintNotApplied is wrapped by every CheckApplied failure.
var ErrConstraintNotApplied = errors.New("constraint not applied")

// CheckApplied compares the settings the browser actually applied with the
// requested constraints. The resolution is only checked when both width and
// height were requested.
func CheckApplied(want Constraints, got Settings) error {
	var errs []error
	if want.Width != nil && want.Height != nil && (got.Width != *want.Width || got.Height != *want.Height) {
		errs = append(errs, fmt.Errorf("%w: the selected resolution %dx%d couldn't be applied, got %dx%d",
			ErrConstraintNotApplied, *want.Width, *want.Height, got.Width, got.Height))
	}
	if want.EchoCancellation != nil && got.EchoCancellation != *want.EchoCancellation {
		errs = append(errs, fmt.Errorf("%w: the selected echoCancellation %t couldn't be applied",
			ErrConstraintNotApplied, *want.EchoCancellation))
	}
	if want.ChannelCount != nil && got.ChannelCount != *want.ChannelCount {
		errs = append(errs, fmt.Errorf("%w: the selected channelCount %d couldn't be applied, got %d",
			ErrConstraintNotApplied, *want.ChannelCount, got.ChannelCount))
	}
	return errors.Join(errs...)
}

// ForResolution builds the video constraints for r.
func ForResolution(r Resolution) Constraints {
	w, h := r.Width, r.Height
	return Constraints{Width: &w, Height: &h}
}
