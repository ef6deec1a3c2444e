// Package version holds the build version string.
package version

// Version is the release version. Overridden at build time via
// -ldflags "-X wayguard/pkg/version.Version=...".
var Version = "0.3.1"
