package flagpole

import (
	"fmt"
	"runtime/debug"
)

// getUserAgent returns the User-Agent header value in the format "flagpole-go-sdk/<version>".
// If the version cannot be determined (e.g., during development), it returns "flagpole-go-sdk/unknown".
func getUserAgent() string {
	const sdkName = "flagpole-go-sdk"
	const unknownVersion = "unknown"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Sprintf("%s/%s", sdkName, unknownVersion)
	}

	// Look for the main module version
	version := info.Main.Version

	// Handle cases where version is empty or "(devel)"
	if version == "" || version == "(devel)" {
		return fmt.Sprintf("%s/%s", sdkName, unknownVersion)
	}

	return fmt.Sprintf("%s/%s", sdkName, version)
}
