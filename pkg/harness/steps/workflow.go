package steps

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/thesyncim/confcheck/pkg/harness/element"
	"github.com/thesyncim/confcheck/pkg/harness/scenario"
	"github.com/thesyncim/confcheck/pkg/media"
)

// Device labels Chrome reports for its fake capture devices.
const (
	fakeCamera     = "fake_device_0"
	fakeMicrophone = "Fake Audio Input 1"
)

// sampleClip is the name of the clip recorded by jsSampleClip.
const sampleClip = "sample.webm"

// jsSampleClip records two seconds of an animated canvas and resolves to
// the webm clip encoded as base64.
const jsSampleClip = `(async () => {
	const canvas = document.createElement("canvas");
	canvas.width = 640;
	canvas.height = 360;
	const g = canvas.getContext("2d");
	let frame = 0;
	const draw = () => {
		g.fillStyle = "hsl(" + (frame * 6 % 360) + ", 70%, 45%)";
		g.fillRect(0, 0, canvas.width, canvas.height);
		g.fillStyle = "#fff";
		g.font = "48px sans-serif";
		g.fillText(String(frame++), 40, 80);
	};
	draw();
	const tick = setInterval(draw, 33);
	const rec = new MediaRecorder(canvas.captureStream(30), {mimeType: "video/webm"});
	const chunks = [];
	rec.ondataavailable = e => chunks.push(e.data);
	const stopped = new Promise(r => rec.onstop = r);
	rec.start();
	await new Promise(r => setTimeout(r, 2000));
	rec.stop();
	await stopped;
	clearInterval(tick);
	const buf = new Uint8Array(await new Blob(chunks, {type: "video/webm"}).arrayBuffer());
	let bin = "";
	for (let i = 0; i < buf.length; i += 0x8000) {
		bin += String.fromCharCode.apply(null, buf.subarray(i, i + 0x8000));
	}
	return btoa(bin);
})()`

func registerWorkflow(r *Registry) {
	r.Register(`^the publisher adds a camera source$`,
		"add the default camera and microphone as a source", addCamera)
	r.Register(`^the publisher shares the screen$`,
		"add a screen share source", shareScreen)
	r.Register(`^the publisher adds a local file source$`,
		"record a sample clip in the browser and add it as a local file source", addSampleFile)
	r.Register(`^the publisher adds the local file "([^"]*)"$`,
		"add a video file from disk as a local file source", addLocalFile)
	r.Register(`^the publisher goes live$`,
		"start streaming and wait for the streaming page", goLive)
	r.Register(`^the publisher stops streaming$`,
		"stop streaming and wait for the preview page", stopStreaming)
	r.Register(`^the viewer joins the stream$`,
		"wait for the stream to start on the viewer", viewerJoins)
}

func requireApp(sc *scenario.Context, app string) error {
	if err := sc.RequireApp(); err != nil {
		return err
	}
	if sc.Data.App != app {
		return fmt.Errorf("current app is %s, step needs the %s", sc.Data.App, app)
	}
	return nil
}

// clickAndWait clicks button and waits until name is in state.
func clickAndWait(ctx context.Context, sc *scenario.Context, button, name string, state element.State) error {
	b, err := sc.Selector(button)
	if err != nil {
		return err
	}
	err = sc.Wait(ctx, func(ctx context.Context) error {
		return element.Click(ctx, sc.Page, b, 0)
	})
	if err != nil {
		return err
	}
	return waitState(ctx, sc, name, state)
}

func waitState(ctx context.Context, sc *scenario.Context, name string, state element.State) error {
	t, err := sc.Selector(name)
	if err != nil {
		return err
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		return element.VerifyState(ctx, sc.Page, t, state, false, 0)
	})
}

func selectIn(ctx context.Context, sc *scenario.Context, dropdown, option string) error {
	t, err := sc.Selector(dropdown)
	if err != nil {
		return err
	}
	return sc.Wait(ctx, func(ctx context.Context) error {
		return element.SelectOption(ctx, sc.Page, t, option)
	})
}

// defaultLabel returns the label of the first unique input of kind, or
// fallback when the browser does not list one.
func defaultLabel(ctx context.Context, sc *scenario.Context, kind media.DeviceKind, fallback string) string {
	var devices []media.Device
	if err := sc.Page.Eval(ctx, jsDevices, &devices); err != nil {
		sc.Log.Warn().Err(err).Msg("failed to enumerate devices")
		return fallback
	}
	if d, ok := media.DefaultDevice(devices, kind); ok && d.Label != "" {
		return d.Label
	}
	return fallback
}

func addCamera(ctx context.Context, sc *scenario.Context, _ Args) error {
	if err := requireApp(sc, scenario.Publisher); err != nil {
		return err
	}
	sc.Log.Info().Str("scenario", sc.Name).Msg("Add camera source")
	if err := clickAndWait(ctx, sc, "add cameras button", "select source popup", element.Displayed); err != nil {
		return err
	}
	camera := defaultLabel(ctx, sc, media.VideoInput, fakeCamera)
	if err := selectIn(ctx, sc, "select source camera dropdown", camera); err != nil {
		return err
	}
	mic := defaultLabel(ctx, sc, media.AudioInput, fakeMicrophone)
	if err := selectIn(ctx, sc, "select source microphone dropdown", mic); err != nil {
		return err
	}
	if err := clickAndWait(ctx, sc, "select source add button", "select source popup", element.Hidden); err != nil {
		return err
	}
	if err := waitState(ctx, sc, "camera view", element.Displayed); err != nil {
		return err
	}
	sc.AddSource("camera")
	return nil
}

func shareScreen(ctx context.Context, sc *scenario.Context, _ Args) error {
	if err := requireApp(sc, scenario.Publisher); err != nil {
		return err
	}
	sc.Log.Info().Str("scenario", sc.Name).Msg("Add screen source")
	if err := clickAndWait(ctx, sc, "share screen button", "screen view", element.Displayed); err != nil {
		return err
	}
	sc.AddSource("screen")
	return nil
}

func addSampleFile(ctx context.Context, sc *scenario.Context, _ Args) error {
	if err := requireApp(sc, scenario.Publisher); err != nil {
		return err
	}
	var encoded string
	if err := sc.Page.Eval(ctx, jsSampleClip, &encoded); err != nil {
		return fmt.Errorf("failed to record sample clip: %w", err)
	}
	clip, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("failed to decode sample clip: %w", err)
	}
	if len(clip) == 0 {
		return fmt.Errorf("browser recorded an empty sample clip")
	}
	dir, err := sc.TempDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, sampleClip)
	if err := os.WriteFile(path, clip, 0o600); err != nil {
		return err
	}
	return addFile(ctx, sc, path)
}

func addLocalFile(ctx context.Context, sc *scenario.Context, args Args) error {
	if err := requireApp(sc, scenario.Publisher); err != nil {
		return err
	}
	if _, err := os.Stat(args.Params[0]); err != nil {
		return fmt.Errorf("local file: %w", err)
	}
	return addFile(ctx, sc, args.Params[0])
}

// addFile picks path in the local file input and waits for its view.
func addFile(ctx context.Context, sc *scenario.Context, path string) error {
	sc.Log.Info().Str("scenario", sc.Name).Str("file", path).Msg("Add local file source")
	input, err := sc.Selector("local file input")
	if err != nil {
		return err
	}
	err = sc.Wait(ctx, func(ctx context.Context) error {
		return element.UploadFiles(ctx, sc.Page, input, path)
	})
	if err != nil {
		return err
	}
	if err := waitState(ctx, sc, "local file view", element.Displayed); err != nil {
		return err
	}
	sc.AddSource("file")
	return nil
}

func goLive(ctx context.Context, sc *scenario.Context, _ Args) error {
	if err := requireApp(sc, scenario.Publisher); err != nil {
		return err
	}
	b, err := sc.Selector("go live button")
	if err != nil {
		return err
	}
	err = sc.Wait(ctx, func(ctx context.Context) error {
		return element.Click(ctx, sc.Page, b, 0)
	})
	if err != nil {
		return err
	}
	if err := sc.SwitchPage(scenario.PublisherStreaming); err != nil {
		return err
	}
	return waitState(ctx, sc, "stop streaming button", element.Displayed)
}

func stopStreaming(ctx context.Context, sc *scenario.Context, _ Args) error {
	if err := requireApp(sc, scenario.Publisher); err != nil {
		return err
	}
	b, err := sc.Selector("stop streaming button")
	if err != nil {
		return err
	}
	err = sc.Wait(ctx, func(ctx context.Context) error {
		return element.Click(ctx, sc.Page, b, 0)
	})
	if err != nil {
		return err
	}
	if err := sc.SwitchPage(scenario.PublisherPreview); err != nil {
		return err
	}
	return waitState(ctx, sc, "go live button", element.Displayed)
}

func viewerJoins(ctx context.Context, sc *scenario.Context, _ Args) error {
	if err := requireApp(sc, scenario.Viewer); err != nil {
		return err
	}
	header, err := sc.Selector("page header")
	if err != nil {
		return err
	}
	err = sc.Wait(ctx, func(ctx context.Context) error {
		return element.VerifyText(ctx, sc.Page, header, "Live stream", false, 0)
	})
	if err != nil {
		return err
	}
	return sc.SwitchPage(scenario.ViewerStreaming)
}
