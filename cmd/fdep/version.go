package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/cobra"
)

var (
	// These will be set during build with -ldflags
	gitCommit = "unknown"
	buildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display version, build information, and runtime details for fdep.`,
	Run:   runVersion,
}

// toolVersion prefers the -ldflags version, then the module version and
// VCS revision embedded by the Go toolchain.
func toolVersion() string {
	if version != "dev" {
		return version
	}
	v := versioninfo.Version
	if v == "unknown" || v == "(devel)" || v == "" {
		v = versioninfo.Revision
	}
	if v == "unknown" || v == "" {
		return version
	}
	if versioninfo.DirtyBuild {
		v += "-dirty"
	}
	return v
}

func commit() string {
	if gitCommit != "unknown" {
		return gitCommit
	}
	return versioninfo.Revision
}

func built() string {
	if buildDate != "unknown" || versioninfo.LastCommit.IsZero() {
		return buildDate
	}
	return versioninfo.LastCommit.UTC().Format(time.RFC3339)
}

func runVersion(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "fdep version %s\n", toolVersion())
	fmt.Fprintf(out, "  Git commit:  %s\n", commit())
	fmt.Fprintf(out, "  Build date:  %s\n", built())
	fmt.Fprintf(out, "  Go version:  %s\n", runtime.Version())
	fmt.Fprintf(out, "  OS/Arch:     %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
