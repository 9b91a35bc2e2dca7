package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omarluq/enginesync/internal/vinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the enginesync version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", rootCmd.Name(), vinfo.String(), vinfo.BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
