// Package version provides build-time version information
// injected via ldflags during compilation.
package version

// These variables are set at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// String returns the version with build time, for startup log lines.
func String() string {
	return Version + " (built " + BuildTime + ")"
}
