package steps

import (
	"fmt"
	"strings"

	"github.com/thesyncim/confcheck/pkg/harness/element"
	"github.com/thesyncim/confcheck/pkg/media"
)

// Kind says how a field is read from the page.
type Kind int

const (
	TextField    Kind = iota // element text
	ValueField               // form value
	StateField               // one or more element states joined by "|"
	StatusField              // On/Off from data-status
	SizeField                // Full/Normal view size
	FeatureField             // On/Off from the checked state
)

// Field is one row of a canonical expected-data table.
type Field struct {
	Key string
	// Selector is the element name; "{view}" is replaced by the view name.
	Selector string
	Kind     Kind
	Default  string
}

// Schema is the canonical expected data of one "<App> <view>" key.
type Schema []Field

// Defaults returns the default table.
func (s Schema) Defaults() Table {
	t := make(Table, len(s))
	for i, f := range s {
		t[i] = Row{Key: f.Key, Value: f.Default}
	}
	return t
}

// Field returns the field named key.
func (s Schema) Field(key string) (Field, bool) {
	for _, f := range s {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Element returns the element name of f for view.
func (f Field) Element(view string) string {
	return strings.ReplaceAll(f.Selector, "{view}", view)
}

const (
	sessionTimer = `regex:^\d{2}:\d{2}:\d{2}$`
	viewerCount  = `regex:^\d+ viewers?$`
)

func headerSchema(title, desc, timer, viewers, live string) Schema {
	return Schema{
		{Key: "title", Selector: "page header", Kind: TextField, Default: title},
		{Key: "description", Selector: "page description", Kind: TextField, Default: desc},
		{Key: "timer", Selector: "timer", Kind: TextField, Default: timer},
		{Key: "viewers", Selector: "participant count", Kind: TextField, Default: viewers},
		{Key: "live", Selector: "live indicator", Kind: StateField, Default: live},
	}
}

var headerData = map[string]Schema{
	"Publisher preview header": headerSchema(
		"Get started", "Setup your audio and video before going live.",
		media.FormatSessionTime(0), "ignore:", "hidden"),
	"Publisher streaming header": headerSchema(
		"You are live", "contains:viewers can join",
		sessionTimer, media.FormatViewerCount(0), "displayed"),
	"Viewer waiting room header": headerSchema(
		"Stream is not live", "Please wait for livestream to begin.",
		media.FormatSessionTime(0), "ignore:", "hidden"),
	"Viewer streaming header": headerSchema(
		"Live stream", "ignore:", sessionTimer, viewerCount, "displayed"),
}

func viewSchema(label string, extra ...Field) Schema {
	s := Schema{
		{Key: "status", Selector: "{view}", Kind: StatusField, Default: element.On},
		{Key: "size", Selector: "{view}", Kind: SizeField, Default: element.Normal},
		{Key: "label", Selector: "{view} label", Kind: TextField, Default: label},
		{Key: "settings button", Selector: "{view} settings button", Kind: StateField, Default: "displayed|enabled"},
		{Key: "full screen button", Selector: "{view} full screen button", Kind: StateField, Default: "displayed|enabled"},
	}
	return append(s, extra...)
}

var (
	cameraToggle     = Field{Key: "camera", Selector: "{view} camera toggle", Kind: StatusField, Default: element.On}
	microphoneToggle = Field{Key: "microphone", Selector: "{view} microphone toggle", Kind: StatusField, Default: element.On}
)

var viewData = map[string]Schema{
	"Publisher camera view":     viewSchema("regex:fake_device", cameraToggle, microphoneToggle),
	"Publisher screen view":     viewSchema("regex:screen"),
	"Publisher local file view": viewSchema("regex:.+"),
	"Viewer camera view":        viewSchema("regex:camera", cameraToggle, microphoneToggle),
	"Viewer screen view":        viewSchema("regex:screen", cameraToggle),
	"Viewer remote file view":   viewSchema("regex:.+", cameraToggle),
}

func publisherSettings(sourceName string, camera bool) Schema {
	var s Schema
	if camera {
		s = Schema{
			{Key: "camera", Selector: "settings camera selected", Kind: TextField, Default: "regex:fake_device"},
			{Key: "microphone", Selector: "settings microphone selected", Kind: TextField, Default: "regex:fake audio input"},
			{Key: "resolution", Selector: "settings resolution selected", Kind: TextField, Default: `regex:^\d+x\d+$`},
		}
	}
	s = append(s,
		Field{Key: "bitrate", Selector: "settings bitrate selected", Kind: TextField, Default: media.Bitrates[0].Name},
		Field{Key: "codec", Selector: "settings codec selected", Kind: TextField, Default: media.Codecs[0]},
	)
	if camera {
		s = append(s, Field{Key: "simulcast", Selector: "simulcast switch", Kind: FeatureField, Default: element.Off})
	}
	return append(s, Field{Key: "source name", Selector: "settings source name", Kind: ValueField, Default: sourceName})
}

func viewerSettings(sourceName string) Schema {
	return Schema{
		{Key: "quality", Selector: "selected quality tab", Kind: TextField, Default: media.Qualities[0]},
		{Key: "source name", Selector: "settings source name", Kind: TextField, Default: sourceName},
	}
}

var settingsData = map[string]Schema{
	"Publisher camera view":     publisherSettings("Camera", true),
	"Publisher screen view":     publisherSettings("Screen", false),
	"Publisher local file view": publisherSettings("ignore:", false),
	"Viewer camera view":        viewerSettings("Camera"),
	"Viewer screen view":        viewerSettings("Screen"),
	"Viewer remote file view":   viewerSettings("ignore:"),
}

// MinStats is the least number of fields a stats panel must show.
const MinStats = 5

var (
	videoStats = Table{
		{Key: "resolution", Value: `regex:^\d+x\d+$`},
		{Key: "fps", Value: `regex:^\d+(\.\d+)?$`},
		{Key: "video codec", Value: "regex:^(h264|vp8|vp9|av1)$"},
		{Key: "video bitrate", Value: "regex:bps$"},
	}
	audioStats = Table{
		{Key: "audio codec", Value: "regex:^opus$"},
		{Key: "audio bitrate", Value: "regex:bps$"},
	}
	candidateStats = Table{
		{Key: "candidate type", Value: "regex:^(host|srflx|prflx|relay)$"},
	}
)

func statsTable(parts ...Table) Table {
	var t Table
	for _, p := range parts {
		t = append(t, p...)
	}
	return t
}

var statsData = map[string]Table{
	"Publisher camera view":     statsTable(videoStats, audioStats, candidateStats),
	"Publisher screen view":     statsTable(videoStats, candidateStats),
	"Publisher local file view": statsTable(videoStats, audioStats, candidateStats),
	"Viewer camera view":        statsTable(videoStats, audioStats, candidateStats),
	"Viewer screen view":        statsTable(videoStats, candidateStats),
	"Viewer remote file view":   statsTable(videoStats, audioStats, candidateStats),
}

func lookup[T any](kind string, data map[string]T, key string) (T, error) {
	v, ok := data[key]
	if !ok {
		var zero T
		return zero, fmt.Errorf("no %s expected data for %q", kind, key)
	}
	return v, nil
}

// HeaderSchema returns the canonical header data of "<App> <header>".
func HeaderSchema(key string) (Schema, error) { return lookup("header", headerData, key) }

// ViewSchema returns the canonical view data of "<App> <view>".
func ViewSchema(key string) (Schema, error) { return lookup("view", viewData, key) }

// SettingsSchema returns the canonical settings data of "<App> <view>".
func SettingsSchema(key string) (Schema, error) { return lookup("settings", settingsData, key) }

// StatsDefaults returns the canonical stream stats of "<App> <view>".
func StatsDefaults(key string) (Table, error) { return lookup("stats", statsData, key) }
