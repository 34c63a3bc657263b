package main

import (
	"runtime"

	"github.com/spf13/cobra"
)

// Build-time variables set by go build -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Long:        `Display the version, commit hash, and build date of headless.`,
	Run:         runVersion,
	Annotations: map[string]string{annotationConfigOptional: "true"},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// runVersion prints version information.
func runVersion(cmd *cobra.Command, args []string) {
	printInfo("headless %s", version)
	printInfo("  commit:  %s", commit)
	printInfo("  built:   %s", date)
	printInfo("  go:      %s", runtime.Version())
	printInfo("  os/arch: %s/%s", runtime.GOOS, runtime.GOARCH)
}
