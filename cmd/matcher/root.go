package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd はmatcherコマンドのルートを組み立てる。
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "matcher",
		Short:         "Volunteer matching service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newVolunteerCmd(), newTokenCmd())
	return root
}
