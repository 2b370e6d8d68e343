// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

// Build metadata. Overridden at link time, e.g.
// -X github.com/Sumatoshi-tech/gridagg/pkg/version.Version=v1.2.0.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the build metadata for the version command.
func String() string {
	return fmt.Sprintf("gridagg %s (commit: %s, built: %s)", Version, Commit, Date)
}
