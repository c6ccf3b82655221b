// Package version reports build information for the pulse binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are populated by the Go linker during the build process.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info holds all the versioning information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetInfo returns the linker-provided values, falling back to the module
// build info for binaries installed with go install.
func GetInfo() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && info.Commit == "none" {
				info.Commit = s.Value
			}
		}
	}
	return info
}

// UserAgent is sent by the daemon client.
func UserAgent() string {
	return "pulse/" + GetInfo().Version
}

// String returns a formatted string of the version information.
func (i Info) String() string {
	return fmt.Sprintf(
		"Commit:     %s\nBuild Date: %s\nGo Version: %s\nPlatform:   %s",
		i.Commit, i.BuildDate, i.GoVersion, i.Platform,
	)
}
