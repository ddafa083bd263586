package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/surgehq/surge/cmd/surge/cmd.Version=..."
var (
	Version = "v0.0.0"
	Commit  = "commit"
	Date    = "today"
)

// versionString is the single line printed by surge version
func versionString() string {
	return fmt.Sprintf("surge %s (%s) built %s with %s for %s/%s",
		Version, Commit, Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the surge build",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
