// Package version exposes build-time version metadata and a cobra subcommand to print it.
package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// These are overridden at build time via -ldflags "-X ...".
var (
	// Version is the semantic version of the build.
	Version = "0.1.0"
	// Commit is the VCS commit hash of the build.
	Commit = "none"
	// BuildTime is the UTC timestamp the binary was built at.
	BuildTime = "unknown"
)

// Short returns the bare semantic version string.
func Short() string {
	return Version
}

// Full returns version, commit, and build time in one line.
func Full() string {
	return "version: " + Version + ", commit: " + Commit + ", built at: " + BuildTime
}

// AttachCobraVersionCommand registers a `version` subcommand on root that prints Full().
func AttachCobraVersionCommand(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Full())
		},
	})
}
