package apply

import (
	"runtime"
	"strings"
)

// canonicalPlatform maps the aliases accepted in series skip
// directives onto GOOS names. The alias set is fixed; series authors
// use whichever spelling they prefer.
var canonicalPlatform = map[string]string{
	"darwin":  "darwin",
	"macos":   "darwin",
	"mac":     "darwin",
	"osx":     "darwin",
	"windows": "windows",
	"win":     "windows",
	"linux":   "linux",
}

// HostPlatform returns the canonical name of the running host.
func HostPlatform() string {
	return runtime.GOOS
}

// skipsPlatform reports whether host matches any of the skip aliases.
// Unknown aliases never match: a typo must not silently skip a patch.
func skipsPlatform(host string, aliases []string) bool {
	hostCanonical, ok := canonicalPlatform[strings.ToLower(host)]
	if !ok {
		hostCanonical = strings.ToLower(host)
	}
	for _, alias := range aliases {
		if canonicalPlatform[strings.ToLower(alias)] == hostCanonical {
			return true
		}
	}
	return false
}
