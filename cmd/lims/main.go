package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	envFiles []string

	rootCmd = &cobra.Command{
		Use:           "lims",
		Short:         "Experiment tracking service: lineage, timepoints and result uploads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files applied before the environment")

	rootCmd.AddCommand(serveCmd, migrateCmd, backfillCmd, relinkCmd, recomputeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
