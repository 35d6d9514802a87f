// Package version carries build metadata injected with -ldflags -X.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for -version output and the startup log.
func String() string {
	return fmt.Sprintf("crankbox %s (%s, built %s)", Version, GitSHA, BuildTime)
}
