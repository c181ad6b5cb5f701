// Package version holds build-time version information injected via ldflags.
package version

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
