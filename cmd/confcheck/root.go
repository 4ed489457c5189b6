package main

import (
	"errors"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/thesyncim/confcheck/pkg/harness/config"
)

// errFailed is returned when at least one scenario failed.
var errFailed = errors.New("some scenarios failed")

const defaultFeatures = "features"

// NewRootCmd creates the confcheck command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "confcheck",
		Short:         "confcheck - browser checks for the publisher and viewer apps",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().String("config", "", "TOML configuration file")
	root.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newStepsCmd())
	return root
}

// loadConfig builds the configuration from the file named by --config, the
// environment and the flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if f := flags.Lookup("browser"); f != nil && f.Changed {
		cfg.Browser = f.Value.String()
	}
	if f := flags.Lookup("driver"); f != nil && f.Changed {
		cfg.Driver = f.Value.String()
	}
	if f := flags.Lookup("base-url"); f != nil && f.Changed {
		cfg.BaseURL = f.Value.String()
	}
	if f := flags.Lookup("report"); f != nil && f.Changed {
		cfg.ReportPath = f.Value.String()
	}
	if flags.Lookup("headless") != nil && flags.Changed("headless") {
		cfg.Headless, _ = flags.GetBool("headless")
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Verification primitives log through the default logger.
	log.DefaultLogger.Level = log.ParseLevel(cfg.Logging.Level)
	return cfg, nil
}
