package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thesyncim/confcheck/pkg/harness/steps"
)

func newStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the step patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, s := range steps.Catalog().Steps() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n\t%s\n", s.Pattern, s.Doc)
			}
			return nil
		},
	}
}
