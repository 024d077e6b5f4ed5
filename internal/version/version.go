// Package version holds build metadata injected via ldflags:
//
//	go build -ldflags "-X github.com/kailas-cloud/knowchain/internal/version.Version=v1.2.0"
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns the build metadata in one line.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
