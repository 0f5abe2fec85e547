// FILE: logtrace/src/internal/version/version.go
package version

import "fmt"

var (
	// Version is set at compile time via -ldflags
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	// BuildMode is "debug" unless a release build overrides it via -ldflags
	BuildMode = "debug"
)

// Returns a formatted version string
func String() string {
	if Version == "dev" {
		return fmt.Sprintf("dev (commit: %s, built: %s, mode: %s)", GitCommit, BuildTime, BuildMode)
	}
	return fmt.Sprintf("%s (commit: %s, built: %s, mode: %s)", Version, GitCommit, BuildTime, BuildMode)
}

// Returns just the version tag
func Short() string {
	return Version
}

// IsDebugBuild reports whether log tracing is enabled without an explicit opt-in.
func IsDebugBuild() bool {
	return BuildMode != "release"
}
