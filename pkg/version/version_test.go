package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stamp(t *testing.T, version, commit, date string) {
	t.Helper()
	prevVersion, prevCommit, prevDate := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = prevVersion, prevCommit, prevDate })
	Version, Commit, Date = version, commit, date
}

func TestGet(t *testing.T) {
	stamp(t, "v1.2.0", "abc1234", "2026-01-13T20:00:00Z")

	assert.Equal(t, Info{
		Version:  "v1.2.0",
		Commit:   "abc1234",
		Date:     "2026-01-13T20:00:00Z",
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}, Get())
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "v1.2.0", Commit: "abc1234", Date: "2026-01-13", Platform: "linux/amd64"}
	assert.Equal(t, "optout v1.2.0 (commit: abc1234, built: 2026-01-13, linux/amd64)", info.String())
}

func TestUnstampedDefaults(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Commit)
	assert.NotEmpty(t, info.Date)
}

func TestUserAgent(t *testing.T) {
	stamp(t, "v1.0.0", "x", "y")
	assert.Equal(t, "optout/v1.0.0 ("+runtime.GOOS+"/"+runtime.GOARCH+")", UserAgent())
}
