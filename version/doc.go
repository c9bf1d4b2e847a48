// Package version exposes the build version of resolvekit.
//
// Version and GitCommit are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/resolvekit/version.Version=1.0.0"
//
// When they are left empty the values recorded by the Go toolchain in the
// module build info are used instead.
package version
