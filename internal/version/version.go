// Package version holds build metadata, set with -ldflags "-X".
package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	Version   = "dev"                           // ex: v0.1.0
	Commit    = "none"                          // ex: abcd123
	BuildDate = time.Now().Format(time.RFC3339) // ex: 2026-10-19T18:42:00Z
	GoVersion = runtime.Version()               // go version
)

// String describes the build in one line.
func String() string {
	return fmt.Sprintf("noor %s (commit=%s, built=%s, go=%s)", Version, Commit, BuildDate, GoVersion)
}
