// Package version carries build information stamped in by the linker.
package version

import (
	"fmt"
	"runtime"
)

// Overridden at build time:
//
//	go build -ldflags "-X github.com/soyeahso/helix/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/helix/internal/version.Commit=$(git rev-parse HEAD)
//	  -X github.com/soyeahso/helix/internal/version.Date=$(date -u +%F)"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the line printed by `helix version`.
func Info() string {
	return fmt.Sprintf("helix %s (commit: %s, built: %s, %s/%s)",
		Version, ShortCommit(), Date, runtime.GOOS, runtime.GOARCH)
}

// ShortCommit abbreviates Commit to seven characters.
func ShortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}

// UserAgent identifies Helix to model providers and the gateway.
func UserAgent() string {
	return "helix/" + Version
}
