package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thesyncim/confcheck/pkg/harness/browser"
	"github.com/thesyncim/confcheck/pkg/harness/runner"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run feature files in a browser and write the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tags, _ := cmd.Flags().GetStringSlice("tags")
			if len(args) == 0 {
				args = []string{defaultFeatures}
			}
			features, err := runner.LoadFeatures(args...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := cfg.NewLogger(cmd.ErrOrStderr())
			b, err := browser.Launch(ctx, cfg.Driver, browser.OptionsFromConfig(cfg))
			if err != nil {
				return err
			}
			defer b.Close()

			r, err := runner.New(cfg, b, runner.WithLogger(logger), runner.WithTags(tags...))
			if err != nil {
				return err
			}
			rep := r.Run(ctx, features)
			if err := rep.WriteFile(cfg.ReportPath); err != nil {
				return err
			}
			rep.WriteSummary(cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", cfg.ReportPath)

			if ctx.Err() != nil {
				return fmt.Errorf("run interrupted: %w", context.Cause(ctx))
			}
			if !rep.Passed() {
				return errFailed
			}
			return nil
		},
	}
	cmd.Flags().String("browser", "", "browser to launch (chrome, chromium)")
	cmd.Flags().String("driver", "", "browser driver (rod, chromedp)")
	cmd.Flags().Bool("headless", true, "run the browser headless")
	cmd.Flags().Int("workers", 1, "scenarios run in parallel")
	cmd.Flags().String("base-url", "", "URL serving /publisher and /viewer")
	cmd.Flags().String("report", "", "JSON report path")
	cmd.Flags().StringSlice("tags", nil, "only run scenarios with one of these tags")
	return cmd
}
