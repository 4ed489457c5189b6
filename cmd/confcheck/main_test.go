package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheck_Features(t *testing.T) {
	out, err := execute(t, "check", "../../features")
	require.NoError(t, err)
	assert.Contains(t, out, "3 features")
	assert.Contains(t, out, "ok")
}

func TestCheck_Undefined(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.feature")
	require.NoError(t, os.WriteFile(path, []byte("Feature: Bad\n  Scenario: Typo\n    Given the publisher opnes the app\n"), 0o644))
	_, err := execute(t, "check", path)
	assert.ErrorContains(t, err, `undefined step: "the publisher opnes the app"`)
}

func TestSteps(t *testing.T) {
	out, err := execute(t, "steps")
	require.NoError(t, err)
	assert.Contains(t, out, `^the (publisher|viewer) opens the app$`)
	assert.Contains(t, out, "open the publisher or viewer app")
}

func TestLoadConfig_Flags(t *testing.T) {
	cmd := newRunCmd()
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("log-level", "", "")
	require.NoError(t, cmd.ParseFlags([]string{"--driver", "chromedp", "--workers", "3", "--headless=false", "--log-level", "debug"}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "chromedp", cfg.Driver)
	assert.Equal(t, 3, cfg.Workers)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "chrome", cfg.Browser, "unset flags keep the configured value")
}

func TestLoadConfig_Invalid(t *testing.T) {
	cmd := newRunCmd()
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("log-level", "", "")
	require.NoError(t, cmd.ParseFlags([]string{"--workers", "0"}))
	_, err := loadConfig(cmd)
	assert.Error(t, err)
}
