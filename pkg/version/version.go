// Package version reports the build version of the binary.
package version

import "runtime/debug"

// Set with -ldflags "-X github.com/playwrighty/playwrighty/pkg/version.Version=..."
var (
	Version = ""
	Commit  = ""
)

// String returns the version, falling back to the module version recorded
// by the Go toolchain and then to "dev".
func String() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// Full includes the commit when known.
func Full() string {
	if Commit == "" {
		return String()
	}
	return String() + " (" + Commit + ")"
}
