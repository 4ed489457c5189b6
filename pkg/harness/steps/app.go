package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thesyncim/confcheck/pkg/harness/element"
	"github.com/thesyncim/confcheck/pkg/harness/scenario"
	"github.com/thesyncim/confcheck/pkg/harness/verify"
	"github.com/thesyncim/confcheck/pkg/media"
)

const views = `(camera view|screen view|local file view|remote file view)`

// Scripts evaluated in the publisher app. The app exposes window.confcheck
// with the live track settings and capabilities of each source.
const (
	jsDevices            = `navigator.mediaDevices.enumerateDevices().then(ds => ds.map(d => d.toJSON()))`
	jsCameraSettings     = `window.confcheck.trackSettings("camera")`
	jsCameraCapabilities = `window.confcheck.trackCapabilities("camera")`
)

func registerApp(r *Registry) {
	r.Register(`^the`+ordinal+` "([^"]*)" should( not)? be in (Full|Normal) size$`,
		"verify a view is full screen or normal", viewSize)
	r.Register(`^the`+ordinal+` "([^"]*)" should( not)? be turned (On|Off)$`,
		"verify a camera or microphone toggle", deviceStatus)
	r.Register(`^the "([^"]*)" should( not)? contain "([^"]*)" options$`,
		"verify a dropdown offers comma separated options", dropdownOptions)
	r.Register(`^the "([^"]*)" feature should be turned (On|Off)$`,
		"verify a feature switch", featureStatus)
	r.Register(`^the`+ordinal+` "`+views+`" should be displayed with (default|following|only) values$`,
		"verify a video view", viewValues)
	r.Register(`^the "(preview header|waiting room header|streaming header)" should be displayed with (default|following|only) values$`,
		"verify the page header", headerValues)
	r.Register(`^the`+ordinal+` "`+views+`" setting should be displayed with (default|following|only) values(?: with (quality tabs|high quality tab|medium quality tab|low quality tab))?$`,
		"open a view's settings and verify them", settingsValues)
	r.Register(`^the`+ordinal+` "`+views+`" stream stats should be displayed with (default|following|only) values$`,
		"verify a view's stream stats", statsValues)
	r.Register(`^the "([^"]*)" should list the browser's (camera|microphone) devices$`,
		"verify a device dropdown lists the unique input devices", deviceOptions)
	r.Register(`^the "([^"]*)" should list the camera's supported resolutions$`,
		"verify a resolution dropdown lists what the camera supports", resolutionOptions)
	r.Register(`^the selected resolution should be applied to the camera$`,
		"verify the camera track runs at the selected resolution", resolutionApplied)
}

func viewSize(ctx context.Context, sc *scenario.Context, args Args) error {
	t, index, err := indexedTarget(sc, args.Params[0], args.Params[1])
	if err != nil {
		return err
	}
	negate := args.Params[2] != ""
	return sc.Wait(ctx, func(ctx context.Context) error {
		size, err := element.ReadViewSize(ctx, sc.Page, t, index)
		if err != nil {
			return err
		}
		return element.Compare(size, args.Params[3], element.Exact, negate, fmt.Sprintf("size of %s", t))
	})
}

func deviceStatus(ctx context.Context, sc *scenario.Context, args Args) error {
	t, index, err := indexedTarget(sc, args.Params[0], args.Params[1])
	if err != nil {
		return err
	}
	negate := args.Params[2] != ""
	if !negate {
		return sc.Wait(ctx, func(ctx context.Context) error {
			return element.VerifyDeviceStatus(ctx, sc.Page, t, args.Params[3], index)
		})
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		status, err := element.ReadStatus(ctx, sc.Page, t, index)
		if err != nil {
			return err
		}
		return verify.NotEqual(status, args.Params[3], fmt.Sprintf("status of %s", t))
	})
}

func dropdownOptions(ctx context.Context, sc *scenario.Context, args Args) error {
	t, err := target(sc, args.Params[0])
	if err != nil {
		return err
	}
	negate := args.Params[1] != ""
	var options []string
	for _, o := range strings.Split(args.Params[2], ",") {
		options = append(options, strings.TrimSpace(o))
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		return element.VerifyOptions(ctx, sc.Page, t, options, negate)
	})
}

func featureStatus(ctx context.Context, sc *scenario.Context, args Args) error {
	t, err := target(sc, args.Params[0])
	if err != nil {
		return err
	}
	negate := args.Params[1] == element.Off
	return sc.Wait(ctx, func(ctx context.Context) error {
		return element.VerifyState(ctx, sc.Page, t, element.Checked, negate, 0)
	})
}

func viewValues(ctx context.Context, sc *scenario.Context, args Args) error {
	if err := sc.RequireApp(); err != nil {
		return err
	}
	index, err := ParseOrdinal(args.Params[0])
	if err != nil {
		return err
	}
	view := args.Params[1]
	schema, err := ViewSchema(appName(sc) + " " + view)
	if err != nil {
		return err
	}
	expected, err := expectedTable(schema.Defaults(), args.Params[2], args.Table)
	if err != nil {
		return err
	}
	return verifyFields(ctx, sc, schema, view, expected, index)
}

func headerValues(ctx context.Context, sc *scenario.Context, args Args) error {
	if err := sc.RequireApp(); err != nil {
		return err
	}
	schema, err := HeaderSchema(appName(sc) + " " + args.Params[0])
	if err != nil {
		return err
	}
	expected, err := expectedTable(schema.Defaults(), args.Params[1], args.Table)
	if err != nil {
		return err
	}
	return verifyFields(ctx, sc, schema, "", expected, 0)
}

// QualityTabName maps the quality clause of a settings step to the tab it
// selects: All for "quality tabs", None when absent.
func QualityTabName(clause string) string {
	switch {
	case clause == "":
		return "None"
	case strings.Contains(clause, "quality tabs"):
		return "All"
	case strings.HasPrefix(clause, "high"):
		return "High"
	case strings.HasPrefix(clause, "medium"):
		return "Medium"
	case strings.HasPrefix(clause, "low"):
		return "Low"
	}
	return "None"
}

func settingsValues(ctx context.Context, sc *scenario.Context, args Args) error {
	if err := sc.RequireApp(); err != nil {
		return err
	}
	index, err := ParseOrdinal(args.Params[0])
	if err != nil {
		return err
	}
	view := args.Params[1]
	schema, err := SettingsSchema(appName(sc) + " " + view)
	if err != nil {
		return err
	}
	expected, err := expectedTable(schema.Defaults(), args.Params[2], args.Table)
	if err != nil {
		return err
	}

	if err := openSettings(ctx, sc, view, index); err != nil {
		return err
	}

	tab := QualityTabName(args.Params[3])
	switch tab {
	case "None":
	case "All":
		tabs, err := sc.Selector("quality tabs")
		if err != nil {
			return err
		}
		err = sc.Wait(ctx, func(ctx context.Context) error {
			return element.VerifyOptions(ctx, sc.Page, tabs, media.Qualities, false)
		})
		if err != nil {
			return err
		}
	default:
		t, err := sc.Selector(strings.ToLower(tab) + " quality tab")
		if err != nil {
			return err
		}
		err = sc.Wait(ctx, func(ctx context.Context) error {
			return element.Click(ctx, sc.Page, t, 0)
		})
		if err != nil {
			return err
		}
		sc.Data.QualityTab = tab
		_, supplied := args.Table.Get("quality")
		if _, verified := expected.Get("quality"); verified && !supplied {
			expected = expected.Set("quality", tab)
		}
	}

	if err := verifyFields(ctx, sc, schema, view, expected, index); err != nil {
		return err
	}
	return closeSettings(ctx, sc)
}

func openSettings(ctx context.Context, sc *scenario.Context, view string, index int) error {
	button, err := sc.Selector(view + " settings button")
	if err != nil {
		return err
	}
	drawer, err := sc.Selector("settings drawer")
	if err != nil {
		return err
	}
	err = sc.Wait(ctx, func(ctx context.Context) error {
		return element.Click(ctx, sc.Page, button, index)
	})
	if err != nil {
		return err
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		return element.VerifyState(ctx, sc.Page, drawer, element.Displayed, false, 0)
	})
}

func closeSettings(ctx context.Context, sc *scenario.Context) error {
	button, err := sc.Selector("settings close button")
	if err != nil {
		return err
	}
	drawer, err := sc.Selector("settings drawer")
	if err != nil {
		return err
	}
	err = sc.Wait(ctx, func(ctx context.Context) error {
		return element.Click(ctx, sc.Page, button, 0)
	})
	if err != nil {
		return err
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		return element.VerifyState(ctx, sc.Page, drawer, element.Hidden, false, 0)
	})
}

func statsValues(ctx context.Context, sc *scenario.Context, args Args) error {
	if err := sc.RequireApp(); err != nil {
		return err
	}
	index, err := ParseOrdinal(args.Params[0])
	if err != nil {
		return err
	}
	view := args.Params[1]
	defaults, err := StatsDefaults(appName(sc) + " " + view)
	if err != nil {
		return err
	}
	expected, err := expectedTable(defaults, args.Params[2], args.Table)
	if err != nil {
		return err
	}
	t, err := sc.Selector(view + " stats")
	if err != nil {
		return err
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		stats, err := element.ReadStats(ctx, sc.Page, t, index)
		if err != nil {
			return err
		}
		return VerifyStats(stats, expected, defaults)
	})
}

func deviceOptions(ctx context.Context, sc *scenario.Context, args Args) error {
	t, err := target(sc, args.Params[0])
	if err != nil {
		return err
	}
	kind := media.VideoInput
	if args.Params[1] == "microphone" {
		kind = media.AudioInput
	}
	var devices []media.Device
	if err := sc.Page.Eval(ctx, jsDevices, &devices); err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}
	want := media.Labels(media.UniqueInputs(devices, kind))
	return sc.Wait(ctx, func(ctx context.Context) error {
		got, err := element.ReadOptions(ctx, sc.Page, t)
		if err != nil {
			return err
		}
		return verify.Equal(got, want, fmt.Sprintf("options of %s", t))
	})
}

func resolutionOptions(ctx context.Context, sc *scenario.Context, args Args) error {
	t, err := target(sc, args.Params[0])
	if err != nil {
		return err
	}
	var caps media.Capabilities
	if err := sc.Page.Eval(ctx, jsCameraCapabilities, &caps); err != nil {
		return fmt.Errorf("failed to read camera capabilities: %w", err)
	}
	want := []string{}
	for _, r := range media.Resolutions(caps) {
		want = append(want, r.String())
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		got, err := element.ReadOptions(ctx, sc.Page, t)
		if err != nil {
			return err
		}
		return verify.Equal(got, want, fmt.Sprintf("options of %s", t))
	})
}

func resolutionApplied(ctx context.Context, sc *scenario.Context, _ Args) error {
	selected, err := target(sc, "settings resolution selected")
	if err != nil {
		return err
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		text, err := element.ReadText(ctx, sc.Page, selected, 0)
		if err != nil {
			return err
		}
		var res media.Resolution
		if _, err := fmt.Sscanf(text, "%dx%d", &res.Width, &res.Height); err != nil {
			return fmt.Errorf("selected resolution %q: %w", text, err)
		}
		var applied media.Settings
		if err := sc.Page.Eval(ctx, jsCameraSettings, &applied); err != nil {
			return fmt.Errorf("failed to read camera settings: %w", err)
		}
		if err := media.CheckApplied(media.ForResolution(res), applied); err != nil {
			if errors.Is(err, media.ErrConstraintNotApplied) {
				return &verify.AssertionError{
					Message:  err.Error(),
					Op:       "resolution",
					Actual:   fmt.Sprintf("%dx%d", applied.Width, applied.Height),
					Expected: res.String(),
				}
			}
			return err
		}
		return nil
	})
}
