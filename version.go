package ffetch

import (
	"fmt"
	"runtime"
)

var (
	// Version is the library's semantic version. Override with -ldflags on
	// release builds.
	Version = "v1.0.0"
	// GitCommit is the source revision, set via -ldflags.
	GitCommit = "unknown"
	// BuildDate is the build timestamp, set via -ldflags.
	BuildDate = "unknown"
	// GoVersion is the toolchain the binary was built with.
	GoVersion = runtime.Version()
)

// GetVersion returns a single-line description of the build.
func GetVersion() string {
	return fmt.Sprintf("ffetch %s (commit: %s, built: %s, go: %s)",
		Version, GitCommit, BuildDate, GoVersion)
}

// GetVersionInfo returns the build metadata as key/value pairs for logs.
func GetVersionInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"build_date": BuildDate,
		"go_version": GoVersion,
	}
}
