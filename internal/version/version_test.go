package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func stamp(t *testing.T, version, commit, built string, settings ...debug.BuildSetting) {
	t.Helper()
	oldV, oldC, oldB, oldRead := Version, GitCommit, BuildTime, readBuildInfo
	t.Cleanup(func() {
		Version, GitCommit, BuildTime, readBuildInfo = oldV, oldC, oldB, oldRead
	})
	Version, GitCommit, BuildTime = version, commit, built
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}, Settings: settings}, true
	}
}

func TestVersion(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		commit   string
		settings []debug.BuildSetting
		want     string
		short    string
		release  bool
	}{
		{
			name:    "stamped release",
			version: "v1.2.0", commit: "0123456789abcdef",
			want: "v1.2.0", short: "v1.2.0 (0123456)", release: true,
		},
		{
			name:    "dev with stamped commit",
			version: "dev", commit: "0123456789abcdef",
			want: "dev", short: "dev-0123456",
		},
		{
			name:    "dev from vcs settings",
			version: "dev", commit: "unknown",
			settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "fedcba9876543210"}},
			want:     "dev-fedcba9", short: "dev-fedcba9",
		},
		{
			name:    "nothing known",
			version: "dev", commit: "unknown",
			want: "dev", short: "dev",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stamp(t, tt.version, tt.commit, "unknown", tt.settings...)
			assert.Equal(t, tt.want, GetVersion())
			assert.Equal(t, tt.short, GetShortVersion())
			assert.Equal(t, tt.release, IsRelease())
		})
	}
}

func TestBuildInfo(t *testing.T) {
	stamp(t, "v0.3.0", "abcdef0123", "2025-05-01T10:00:00Z",
		debug.BuildSetting{Key: "vcs.modified", Value: "true"})

	info := GetBuildInfo()
	assert.Equal(t, "v0.3.0", info.Version)
	assert.True(t, info.Release)
	assert.True(t, info.Dirty)
	assert.Equal(t, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC), info.BuildTime)

	detailed := GetDetailedVersion()
	assert.True(t, strings.HasPrefix(detailed, "Version: v0.3.0\nCommit: abcdef0123\nBuilt: 2025-05-01T10:00:00Z"), detailed)
}

func TestParseISOTime(t *testing.T) {
	tests := map[string]bool{
		"2025-05-01T10:00:00Z":     true,
		"2025-05-01T10:00:00":      true,
		"2025-05-01 10:00:00":      true,
		"2025-05-01T10:00:00.000Z": true,
		"unknown":                  false,
		"":                         false,
		"yesterday":                false,
	}
	for in, ok := range tests {
		assert.Equal(t, ok, !parseISOTime(in).IsZero(), in)
	}
}
