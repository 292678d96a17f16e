// Package version holds specrunner's build version information, set via
// ldflags at release build time. Kept dependency-free so any package can
// import it without risking an import cycle.
package version

import "fmt"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// IsDevBuild reports whether this binary was built without release ldflags.
func IsDevBuild() bool {
	return Version == "dev"
}

// Full renders the version string cobra prints for --version, appending
// commit/build-date detail for anything but a dev build.
func Full() string {
	if IsDevBuild() {
		return Version
	}
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate)
}
