// Package cli wires the icebox commands.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "icebox",
	Short: "Freeze ideas now, judge them later",
	Long:  "IceBox captures ideas and time-locks them so they resurface after the initial excitement has worn off. Single Go binary, SQLite storage.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(grantCmd)
}
