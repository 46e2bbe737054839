// Package version provides build-time version information for pseudotv.
//
// Version, Commit, and Date are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/pseudotv/pseudotv/internal/version.Version=x.y.z"
package version

import "fmt"

// Build-time variables injected via ldflags.
var (
	// Version is the semantic version.
	Version = "dev"

	// Commit is the full git commit SHA.
	Commit = "unknown"

	// Date is the build timestamp in RFC3339 format.
	Date = "unknown"
)

// Short returns the version string for CLI display.
func Short() string {
	return Version
}

// Full returns the complete version description.
func Full() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
