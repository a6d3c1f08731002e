// Package version holds build metadata set through ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/repodeploy/internal/version.Version=v1.2.0"
package version

import "fmt"

// Version is the release version.
var Version = "unknown"

// Build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String returns the version line printed by --version.
func String() string {
	return fmt.Sprintf("repodeploy %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}

// UserAgent identifies this agent to HTTP servers and message brokers.
func UserAgent() string {
	return "repodeploy/" + Version
}
