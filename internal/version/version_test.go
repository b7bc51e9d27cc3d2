package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stamp(t *testing.T, v, commit, date string) {
	t.Helper()
	oldV, oldC, oldD := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })
	Version, Commit, Date = v, commit, date
}

func TestInfo(t *testing.T) {
	info := Info()
	assert.Contains(t, info, "helix dev")
	assert.Contains(t, info, runtime.GOOS+"/"+runtime.GOARCH)

	stamp(t, "0.4.0", "9f2c1e07d3b5a", "2026-10-01")
	assert.Equal(t,
		"helix 0.4.0 (commit: 9f2c1e0, built: 2026-10-01, "+runtime.GOOS+"/"+runtime.GOARCH+")",
		Info())
}

func TestShortCommit(t *testing.T) {
	for in, want := range map[string]string{
		"9f2c1e07d3b5a": "9f2c1e0",
		"9f2c1e0":       "9f2c1e0",
		"abc":           "abc",
		"":              "",
	} {
		stamp(t, Version, in, Date)
		assert.Equal(t, want, ShortCommit(), in)
	}
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "helix/dev", UserAgent())
	stamp(t, "1.0.0", Commit, Date)
	assert.Equal(t, "helix/1.0.0", UserAgent())
}
