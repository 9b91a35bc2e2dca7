// Package vinfo holds build metadata injected via ldflags.
package vinfo

import (
	"regexp"
)

var (
	// Version is the `git describe` output (injected at build time).
	Version = "dev"
	// Commit is the short git commit hash (injected at build time).
	Commit = "none"
	// BuildDate is the build timestamp (injected at build time).
	BuildDate = "unknown"
)

// describePattern matches `git describe --tags --dirty` output such as
// v0.0.11-20-ga961617-dirty.
var describePattern = regexp.MustCompile(`^(v?[0-9][^-]*)-([0-9]+)-g[0-9a-f]+(?:-dirty)?$`)

// String returns the version in tag-commit-distance form for builds past a
// tag, or the raw Version otherwise.
func String() string {
	m := describePattern.FindStringSubmatch(Version)
	if m == nil {
		return Version
	}
	return m[1] + "-" + Commit + "-" + m[2]
}
