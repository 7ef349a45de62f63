package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "milestonectl",
		Short:         "Recruitment milestone deadlines: migrations, catalog, instances, dashboards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newCatalogCmd())
	cmd.AddCommand(newInstantiateCmd())
	cmd.AddCommand(newActivateCmd())
	cmd.AddCommand(newCompleteCmd())
	cmd.AddCommand(newDashboardCmd())
	cmd.AddCommand(newCalendarCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCode(err))
	}
}
