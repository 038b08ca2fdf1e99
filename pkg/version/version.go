// Package version holds build-time identification for the cmd/ binaries.
// The defaults below are overridden at build time via -ldflags
// "-X github.com/bgrewell/archivefs/pkg/version.version=...".
package version

var (
	version  = "dev"
	branch   = "unknown"
	date     = "unknown"
	revision = "unknown"
)

// Version returns the build version string.
func Version() string { return version }

// Branch returns the source branch the build was made from.
func Branch() string { return branch }

// Date returns the build timestamp.
func Date() string { return date }

// Revision returns the source control revision the build was made from.
func Revision() string { return revision }
