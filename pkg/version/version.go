// Package version provides version metadata for the console.
package version

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// These variables are injected at build time using -ldflags.
var (
	// Version holds the current version of the console.
	Version = "dev"
	// Commit holds the commit the binary was built from.
	Commit = "none"
	// BuildDate holds the build date.
	BuildDate = "unknown"
	// StartDate holds the process start time.
	StartDate = time.Now()
)

// Struct returns version information in a structured format.
type Struct struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	Release   bool   `json:"release"`
}

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("Vulntor console %s (commit: %s, date: %s)", Version, Commit, BuildDate)
}

// Get returns version information as a Struct.
func Get() Struct {
	return Struct{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		Release:   IsRelease(Version),
	}
}

// IsRelease reports whether v is a semver release without a prerelease
// suffix. Development builds ("dev", "1.2.0-rc.1") are not releases.
func IsRelease(v string) bool {
	sv, err := semver.NewVersion(strings.TrimPrefix(v, "v"))
	if err != nil {
		return false
	}
	return sv.Prerelease() == ""
}
