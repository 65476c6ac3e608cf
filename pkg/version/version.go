// Package version exposes the crawling core's build identity from the
// runtime/debug.BuildInfo Go 1.18+ embeds automatically — commit, dirty
// worktree flag, and build time — with no -ldflags required.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// AppName is the application name used in version strings and log lines.
const AppName = "crawlcore"

// GitCommit is the short git commit hash (8 chars) from build info.
// Set to "dev" when build info is unavailable (e.g., `go test`, non-git builds).
var GitCommit = info.commit

// Dirty reports whether the binary was built from a worktree with
// uncommitted changes.
var Dirty = info.dirty

// BuildTime is the UTC time the binary was built, or the zero time when
// build info carries no vcs.time setting.
var BuildTime = info.buildTime

var info = readBuildInfo()

type buildInfo struct {
	commit    string
	dirty     bool
	buildTime time.Time
}

func readBuildInfo() buildInfo {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return buildInfo{commit: "dev"}
	}

	out := buildInfo{commit: "dev"}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if s.Value == "" {
				continue
			}
			if len(s.Value) > 8 {
				out.commit = s.Value[:8]
			} else {
				out.commit = s.Value
			}
		case "vcs.modified":
			out.dirty = s.Value == "true"
		case "vcs.time":
			if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
				out.buildTime = t
			}
		}
	}
	return out
}

// Full returns "crawlcore/<commit>", appending "-dirty" when the build came
// from a modified worktree, for use in user-agent strings and logging.
func Full() string {
	if Dirty {
		return fmt.Sprintf("%s/%s-dirty", AppName, GitCommit)
	}
	return fmt.Sprintf("%s/%s", AppName, GitCommit)
}

// Banner returns a one-line startup summary suitable for the first log line
// a long-running crawlcore process emits.
func Banner() string {
	built := "unknown build time"
	if !BuildTime.IsZero() {
		built = BuildTime.Format(time.RFC3339)
	}
	return fmt.Sprintf("%s built %s (%s)", Full(), built, runtime.Version())
}
