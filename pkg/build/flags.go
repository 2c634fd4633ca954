// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata stamped into the binary at link time:
//
//	go build -ldflags "-X spectro/pkg/build.buildVersion=0.2.0 \
//	    -X spectro/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	    -X spectro/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Unstamped development builds keep the defaults below.
package build

import (
	"errors"
	"fmt"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String formats the info for the --version output.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = &Info{
		Name:        "spectro",
		Description: "Real-time scrolling spectrogram for live audio input",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies every stamped value into the build info. It returns an
// error naming each value that was not stamped; the defaults stay in place
// for those, so callers may treat the error as a warning.
func Initialize() error {
	var errs []error
	set := func(dst *string, src, flag string) {
		if src == "" {
			errs = append(errs, fmt.Errorf("%s is not set", flag))
			return
		}
		*dst = src
	}

	set(&buildInfo.Name, buildName, "buildName")
	set(&buildInfo.Time, buildTime, "buildTime")
	set(&buildInfo.Commit, buildCommit, "buildCommit")
	set(&buildInfo.Version, buildVersion, "buildVersion")

	return errors.Join(errs...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildInfo
}
