// Package version exposes build metadata for the prospector binary.
//
// Values are injected with ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/prospector/internal/version.Version=1.0.0 ..."
package version

import (
	"fmt"
	"runtime"
	"strings"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	Dirty     = "false"
	BuildDate = "unknown"
)

// Info is the JSON shape served by /healthz and printed by `prospector version --json`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Dirty     bool   `json:"dirty"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the build information.
func Get() Info {
	return Info{
		Version:   String(),
		Commit:    Commit,
		Dirty:     Dirty == "true",
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the version with a -dirty suffix for modified trees.
func String() string {
	if Dirty == "true" {
		return Version + "-dirty"
	}
	return Version
}

// Full returns a multi-line description for the version command.
func Full() string {
	info := Get()
	var sb strings.Builder
	fmt.Fprintf(&sb, "prospector %s\n", info.Version)
	fmt.Fprintf(&sb, "  commit:   %s\n", info.Commit)
	fmt.Fprintf(&sb, "  built:    %s\n", info.BuildDate)
	fmt.Fprintf(&sb, "  go:       %s\n", info.GoVersion)
	fmt.Fprintf(&sb, "  platform: %s", info.Platform)
	return sb.String()
}
