package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/kcaldas/devkit", Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-10-19T10:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	t.Run("fills missing values", func(t *testing.T) {
		i := Info{Version: "dev", Commit: "unknown", Date: "unknown"}
		fillFromBuildInfo(&i, bi)

		assert.Equal(t, "v1.2.3", i.Version)
		assert.Equal(t, "abc123", i.Commit)
		assert.Equal(t, "2026-10-19T10:00:00Z", i.Date)
		assert.True(t, i.Modified)
		assert.Contains(t, i.String(), "commit: abc123 (modified)")
	})

	t.Run("keeps ldflags values", func(t *testing.T) {
		i := Info{Version: "v2.0.0", Commit: "fff", Date: "yesterday"}
		fillFromBuildInfo(&i, bi)

		assert.Equal(t, "v2.0.0", i.Version)
		assert.Equal(t, "fff", i.Commit)
		assert.Equal(t, "yesterday", i.Date)
	})

	t.Run("ignores devel main version", func(t *testing.T) {
		i := Info{Version: "dev", Commit: "unknown", Date: "unknown"}
		fillFromBuildInfo(&i, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})

		assert.Equal(t, "dev", i.Version)
	})
}
