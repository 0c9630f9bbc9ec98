package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wiiksctl",
		Short: "Weekly schedule layout, rendering and export",
		Long: `wiiksctl works on YAML or JSON schedule files offline (layout, render,
ics, at) and talks to a running schedule API (groups, token).`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newLayoutCmd(),
		newRenderCmd(),
		newICSCmd(),
		newAtCmd(),
		newGroupsCmd(),
		newTokenCmd(),
	)
	return root
}

// scheduleFlag registers the -f flag every offline command needs.
func scheduleFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "file", "f", "", "schedule file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("file")
}
