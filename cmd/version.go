package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Build-time variables for version info
var (
	// Release is the current release version
	Release = "dev"
	// GitCommit is the git commit hash
	GitCommit = "none"
	// GOOS is the operating system
	GOOS = runtime.GOOS
	// GOARCH is the architecture
	GOARCH = runtime.GOARCH
)

//nolint:gochecknoglobals // Command flags need to be global for cobra
var versionShort bool

//nolint:gochecknoglobals // Cobra commands are typically global
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of iovcalib.",
	Long:  `Prints the version of iovcalib, the commit it was built from and the target platform.`,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()

		if versionShort {
			fmt.Fprintln(out, Release)
			return
		}

		fmt.Fprintf(out, "iovcalib %s\nCommit: %s\nGo: %s\nOS/Arch: %s/%s\n",
			Release, GitCommit, runtime.Version(), GOOS, GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the release")
}
