package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tlctl",
		Short:         "tradeline operator tooling",
		Long:          "tlctl signs webhook replays, runs schema migrations, issues ops tokens and drains the job queue.",
		SilenceUsage:  true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newSignCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newJobsCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tlctl %s (commit: %s)\n", Version, Commit)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
