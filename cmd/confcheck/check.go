package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thesyncim/confcheck/pkg/harness/runner"
	"github.com/thesyncim/confcheck/pkg/harness/steps"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [paths...]",
		Short: "Verify every step of the feature files matches exactly one step pattern",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{defaultFeatures}
			}
			features, err := runner.LoadFeatures(args...)
			if err != nil {
				return err
			}
			texts := runner.StepTexts(features)
			if err := steps.Catalog().SelfCheck(texts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d features, %d steps: ok\n", len(features), len(texts))
			return nil
		},
	}
}
