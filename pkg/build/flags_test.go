// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"strings"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origInfo    Info
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	origInfo = *buildInfo

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	*buildInfo = origInfo

	os.Exit(exitCode)
}

func resetInfo() {
	buildInfo = &Info{
		Name:    "spectro",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErrMsg  string
	}{
		{"Missing BuildName", "", "2026-10-14", "abcdef123", "v1.0.0", "buildName is not set"},
		{"Missing BuildTime", "spectro", "", "abcdef123", "v1.0.0", "buildTime is not set"},
		{"Missing BuildCommit", "spectro", "2026-10-14", "", "v1.0.0", "buildCommit is not set"},
		{"Missing BuildVersion", "spectro", "2026-10-14", "abcdef123", "", "buildVersion is not set"},
		{"Success Case", "spectro", "2026-10-14", "abcdef123", "v1.0.0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetInfo()
			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer

			err := Initialize()

			if tt.wantErrMsg != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErrMsg) {
					t.Errorf("Initialize() error = %v, want %q", err, tt.wantErrMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}

			info := GetBuildFlags()
			if info.Name != tt.buildName || info.Time != tt.buildTime ||
				info.Commit != tt.buildCommit || info.Version != tt.buildVer {
				t.Errorf("GetBuildFlags() = %+v", info)
			}
		})
	}
}

func TestInitializeKeepsDefaults(t *testing.T) {
	resetInfo()
	buildName, buildTime, buildCommit, buildVersion = "", "", "", ""

	if err := Initialize(); err == nil {
		t.Fatal("expected error for unstamped build")
	}

	info := GetBuildFlags()
	if info.Name != "spectro" || info.Version != "dev" {
		t.Errorf("defaults overwritten: %+v", info)
	}
}
