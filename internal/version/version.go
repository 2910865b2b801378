// Package version provides build and version information for Judge Keeper.
package version

// Version is the current release version of Judge Keeper.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/baca2-project/judgekeeper/internal/version.Version=x.y.z"
var Version = "1.0.0"
