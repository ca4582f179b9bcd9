// Package build holds build information injected at link time, e.g.
//
//	go build -ldflags "-X github.com/G-Research/forge/internal/common/build.GitCommit=$(git rev-parse HEAD)"
package build

import "runtime"

var (
	ReleaseVersion = "UNKNOWN"
	GitCommit      = "UNKNOWN"
	BuildTime      = "UNKNOWN"
	GoVersion      = runtime.Version()
)
