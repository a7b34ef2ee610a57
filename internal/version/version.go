// Package version carries the build metadata stamped into the anvil
// binary via -ldflags.
package version

import "github.com/fatih/color"

var (
	// Number is the semantic version, overridden at release time.
	Number = "0.1.0-dev"

	// Commit is the git revision the binary was built from.
	Commit = ""

	// Date is the build timestamp in ISO-8601.
	Date = ""
)

// String returns the plain version number.
func String() string { return Number }

// Colored returns the version number highlighted for terminal banners.
func Colored() string {
	return color.New(color.FgCyan, color.Bold).Sprint(Number)
}
