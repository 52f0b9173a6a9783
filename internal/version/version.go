// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version information
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String formats the build metadata for `qrscan version`.
func String() string {
	return fmt.Sprintf("qrscan %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
