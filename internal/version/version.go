// Package version holds build identification, overridden at link time via
// -ldflags "-X github.com/spectra-data/linescan/internal/version.Version=...".
package version

import "fmt"

var (
	// Version is the release version.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats the build identification for logs and the API root.
func String() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, GitSHA, BuildTime)
}
