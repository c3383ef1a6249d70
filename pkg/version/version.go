// Package version reports the build of the devkit binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set through -ldflags "-X github.com/kcaldas/devkit/pkg/version.Version=..."
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

var (
	once sync.Once
	info Info
)

// GetInfo returns the build information. Values missing from ldflags are
// filled from the module and VCS data embedded by the Go toolchain.
func GetInfo() Info {
	once.Do(func() {
		info = Info{
			Version:   Version,
			Commit:    Commit,
			Date:      Date,
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		}
		if bi, ok := debug.ReadBuildInfo(); ok {
			fillFromBuildInfo(&info, bi)
		}
	})
	return info
}

func fillFromBuildInfo(i *Info, bi *debug.BuildInfo) {
	if i.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.Commit == "unknown" {
				i.Commit = s.Value
			}
		case "vcs.time":
			if i.Date == "unknown" {
				i.Date = s.Value
			}
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}
}

// GetVersion returns just the version string
func GetVersion() string {
	return GetInfo().Version
}

// String formats the build for `devkit version`.
func (i Info) String() string {
	commit := i.Commit
	if i.Modified {
		commit += " (modified)"
	}
	return fmt.Sprintf("devkit version %s\ncommit: %s\nbuilt: %s\ngo: %s\nplatform: %s",
		i.Version, commit, i.Date, i.GoVersion, i.Platform)
}
