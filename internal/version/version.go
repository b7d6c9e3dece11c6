// Package version reports the sonoscan build version.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// These variables can be set at build time via ldflags:
//
//	go build -ldflags="-X github.com/muurk/sonoscan/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/sonoscan/internal/version.Commit=abc123"
//
// If not set, they are filled from VCS build info when available, or fall
// back to "dev" with a timestamp.
var (
	// Version is the semantic version of the application
	Version = ""
	// Commit is the git commit hash
	Commit = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	Version, Commit = resolve(Version, Commit, info, ok, time.Now())
}

// resolve fills empty version and commit values from build info, then from
// the fallbacks.
func resolve(version, commit string, info *debug.BuildInfo, ok bool, now time.Time) (string, string) {
	if ok && info != nil {
		var revision, modified, vcsTime string
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				revision = setting.Value
			case "vcs.modified":
				modified = setting.Value
			case "vcs.time":
				vcsTime = setting.Value
			}
		}

		if commit == "" && revision != "" {
			commit = revision
			if len(commit) > 7 {
				commit = commit[:7]
			}
			if modified == "true" {
				commit += "-dirty"
			}
		}

		// Module versions like v0.3.0 come from "go install module@version"
		if version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}

		if version == "" && vcsTime != "" {
			if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
				version = "dev-" + t.Format("20060102")
			}
		}
	}

	if version == "" {
		version = "dev-" + now.Format("20060102-150405")
	}
	if commit == "" {
		commit = "unknown"
	}
	return version, commit
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// Platform returns the Go version and target the binary was built for
func Platform() string {
	return fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
