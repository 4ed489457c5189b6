package element

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"github.com/thesyncim/confcheck/pkg/harness/selector"
	"github.com/thesyncim/confcheck/pkg/harness/verify"
)

// Device and feature status as rendered by the apps in data-status.
const (
	On  = "On"
	Off = "Off"
)

// View size classes.
const (
	Full   = "Full"
	Normal = "Normal"
)

// FullRatio is the share of the viewport width or height from which a view
// is considered full screen.
const FullRatio = 0.85

// ReadStatus returns On or Off from the element's data-status attribute.
func ReadStatus(ctx context.Context, p Page, t selector.Target, index int) (string, error) {
	el, err := Nth(ctx, p, t, index)
	if err != nil {
		return "", err
	}
	v, ok, err := el.Attribute(ctx, "data-status")
	if err != nil {
		return "", fmt.Errorf("failed to read status of %s: %w", t, err)
	}
	if !ok {
		return "", &verify.AssertionError{
			Message:  fmt.Sprintf("element %s has no status", t),
			Op:       "attribute",
			Actual:   "",
			Expected: "data-status",
		}
	}
	if strings.EqualFold(v, "on") {
		return On, nil
	}
	return Off, nil
}

// VerifyDeviceStatus checks a camera, microphone or feature toggle is On or Off.
func VerifyDeviceStatus(ctx context.Context, p Page, t selector.Target, status string, index int) error {
	log.Debug().Str("target", t.String()).Str("status", status).Msg("verify device status")
	got, err := ReadStatus(ctx, p, t, index)
	if err != nil {
		return err
	}
	return verify.Equal(got, status, fmt.Sprintf("status of %s", t))
}

// ReadOptions returns the trimmed option texts of a dropdown. Targets with no
// options locator are treated as the option list themselves.
func ReadOptions(ctx context.Context, p Page, t selector.Target) ([]string, error) {
	ot, ok := t.OptionsTarget()
	if !ok {
		ot = t
	}
	els, err := Find(ctx, p, ot)
	if err != nil {
		return nil, err
	}
	opts := make([]string, 0, len(els))
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read option of %s: %w", t, err)
		}
		opts = append(opts, strings.TrimSpace(text))
	}
	return opts, nil
}

// VerifyOptions checks every expected option is offered by the dropdown, or
// with negate that none of them is.
func VerifyOptions(ctx context.Context, p Page, t selector.Target, expected []string, negate bool) error {
	log.Debug().Str("target", t.String()).Strs("options", expected).Bool("negate", negate).Msg("verify options")
	got, err := ReadOptions(ctx, p, t)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("options of %s", t)
	if !negate {
		return verify.ContainsAll(got, expected, msg)
	}
	for _, opt := range expected {
		if err := verify.NotContains(got, opt, msg); err != nil {
			return err
		}
	}
	return nil
}

// ReadViewSize classifies the element as Full or Normal against the viewport.
func ReadViewSize(ctx context.Context, p Page, t selector.Target, index int) (string, error) {
	el, err := Nth(ctx, p, t, index)
	if err != nil {
		return "", err
	}
	box, err := el.Box(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read bounding box of %s: %w", t, err)
	}
	vp, err := p.Viewport(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read viewport: %w", err)
	}
	return Classify(box, vp), nil
}

// Classify maps a bounding box to a size class.
func Classify(box Box, viewport Size) string {
	if viewport.Width > 0 && box.Width >= FullRatio*viewport.Width {
		return Full
	}
	if viewport.Height > 0 && box.Height >= FullRatio*viewport.Height {
		return Full
	}
	return Normal
}

// VerifyViewSize checks the element's size class.
func VerifyViewSize(ctx context.Context, p Page, t selector.Target, size string, index int) error {
	log.Debug().Str("target", t.String()).Str("size", size).Msg("verify view size")
	got, err := ReadViewSize(ctx, p, t, index)
	if err != nil {
		return err
	}
	return verify.Equal(got, size, fmt.Sprintf("size of %s", t))
}

// VerifyCount checks how many elements match t.
func VerifyCount(ctx context.Context, p Page, t selector.Target, n int) error {
	log.Debug().Str("target", t.String()).Int("count", n).Msg("verify element count")
	got, err := Count(ctx, p, t)
	if err != nil {
		return err
	}
	return verify.Equal(got, n, fmt.Sprintf("number of %s", t))
}

// ReadStats decodes the stats panel published in the data-stats attribute.
func ReadStats(ctx context.Context, p Page, t selector.Target, index int) (map[string]string, error) {
	el, err := Nth(ctx, p, t, index)
	if err != nil {
		return nil, err
	}
	raw, ok, err := el.Attribute(ctx, "data-stats")
	if err != nil {
		return nil, fmt.Errorf("failed to read stats of %s: %w", t, err)
	}
	stats := map[string]string{}
	if !ok || raw == "" {
		return stats, nil
	}
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats of %s: %w", t, err)
	}
	return stats, nil
}
