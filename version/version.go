// Package version holds the application master's build version.
package version

// Version is set at link time via -ldflags.
var Version = "dev"
