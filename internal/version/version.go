package version

import (
	_ "embed"
	"strings"
)

//go:embed version.txt
var versionFile string

// Version returns the current asynchttp version
func Version() string {
	return strings.TrimSpace(versionFile)
}

// UserAgent is the User-Agent sent by the asynchttp CLI.
func UserAgent() string {
	return "asynchttp/" + Version()
}
