// Package version reports the build version. The release pipeline injects
// Version, Commit and Date via ldflags; binaries built plainly with go
// build fall back to module build info.
package version

import (
	"runtime/debug"
	"strings"
)

var (
	Version = "1.0.0"
	Commit  = "unknown"
	Date    = "unknown"
)

// Resolve returns the full version string, appending the VCS revision when
// the release pipeline did not stamp one.
func Resolve() string {
	return resolveVersion(Version, Commit, readVCSRevision)
}

func resolveVersion(base, commit string, revision func() string) string {
	if base == "" {
		base = "0.0.0"
	}

	if commit != "" && commit != "unknown" {
		return base
	}

	rev := revision()
	if rev == "" {
		return base
	}
	return base + "-" + rev
}

func readVCSRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}

	var rev, modified string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			rev = setting.Value
		case "vcs.modified":
			modified = setting.Value
		}
	}

	if rev == "" {
		return ""
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if strings.EqualFold(modified, "true") {
		rev += "-dirty"
	}
	return rev
}
