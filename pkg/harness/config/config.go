// Package config holds the harness configuration: built-in defaults, an
// optional TOML file and environment overrides, validated once at startup.
// The resulting *Config is passed explicitly to everything that needs it.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/phuslu/log"
)

// Duration is a time.Duration written as "10s" in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the harness configuration.
type Config struct {
	Browser  string `toml:"browser" validate:"oneof=chrome chromium firefox"`
	Driver   string `toml:"driver" validate:"oneof=rod chromedp"`
	Headless bool   `toml:"headless"`
	// BrowserBin overrides the browser executable; empty lets the driver find one.
	BrowserBin string `toml:"browser_bin"`

	Viewport Viewport `toml:"viewport"`
	Timeouts Timeouts `toml:"timeouts"`

	BaseURL      string `toml:"base_url" validate:"omitempty,url"`
	PublisherURL string `toml:"publisher_url" validate:"omitempty,url"`
	ViewerURL    string `toml:"viewer_url" validate:"omitempty,url"`

	ReportPath string `toml:"report_path"`
	// DynamicStreamName appends a random suffix to StreamName per scenario.
	DynamicStreamName bool   `toml:"dynamic_stream_name"`
	StreamName        string `toml:"stream_name" validate:"required"`
	AccountID         string `toml:"account_id"`

	Workers int `toml:"workers" validate:"min=1"`

	Logging LoggingConfig `toml:"logging"`
}

type Viewport struct {
	Width  int `toml:"width" validate:"gt=0"`
	Height int `toml:"height" validate:"gt=0"`
}

type Timeouts struct {
	Step       Duration `toml:"step" validate:"gt=0"`
	Wait       Duration `toml:"wait" validate:"gt=0"`
	Poll       Duration `toml:"poll" validate:"gt=0"`
	Navigation Duration `toml:"navigation" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=trace debug info warn error"`
	Format string `toml:"format" validate:"oneof=console json"`
}

// NewDefaultConfig returns the built-in defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Browser:  "chrome",
		Driver:   "rod",
		Headless: true,
		Viewport: Viewport{Width: 1280, Height: 1024},
		Timeouts: Timeouts{
			Step:       Duration(60 * time.Second),
			Wait:       Duration(10 * time.Second),
			Poll:       Duration(250 * time.Millisecond),
			Navigation: Duration(30 * time.Second),
		},
		BaseURL:    "http://localhost:8080",
		ReportPath: "report.json",
		StreamName: "confcheck",
		Workers:    1,
		Logging:    LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load builds a Config from the defaults, the TOML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()
		if err := cfg.Decode(f); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode overlays the TOML document read from r.
func (c *Config) Decode(r io.Reader) error {
	return toml.NewDecoder(r).DisallowUnknownFields().Decode(c)
}

// ApplyEnv overlays the environment variables understood by the harness.
// lookup is os.LookupEnv outside of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	if v, ok := lookup("BROWSER_NAME"); ok && v != "" {
		c.Browser = strings.ToLower(v)
	}
	str("DRIVER", &c.Driver)
	boolean("HEADLESS", &c.Headless)
	str("BASE_URL", &c.BaseURL)
	str("PUBLISHER_URL", &c.PublisherURL)
	str("VIEWER_URL", &c.ViewerURL)
	str("REPORT_PATH", &c.ReportPath)
	boolean("DYNAMIC_STREAM_NAME", &c.DynamicStreamName)
	str("STREAM_NAME", &c.StreamName)
	str("STREAM_ACCOUNT_ID", &c.AccountID)
	str("LOG_LEVEL", &c.Logging.Level)
	if v, ok := lookup("WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("WORKERS: %w", err))
		} else {
			c.Workers = n
		}
	}
	return errors.Join(errs...)
}

var validate = validator.New()

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// AppURL returns the URL of the publisher or viewer app. Explicit app URLs
// win over BaseURL.
func (c *Config) AppURL(app string) string {
	switch app {
	case "publisher":
		if c.PublisherURL != "" {
			return c.PublisherURL
		}
	case "viewer":
		if c.ViewerURL != "" {
			return c.ViewerURL
		}
	}
	return strings.TrimRight(c.BaseURL, "/") + "/" + app
}

// NewLogger builds the logger described by the logging section.
func (c *Config) NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := &log.Logger{
		Level:      log.ParseLevel(c.Logging.Level),
		TimeFormat: "15:04:05.000",
	}
	if c.Logging.Format == "json" {
		logger.Writer = &log.IOWriter{Writer: w}
	} else {
		logger.Writer = &log.ConsoleWriter{Writer: w, ColorOutput: false, QuoteString: true}
	}
	return logger
}
