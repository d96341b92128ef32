// Package featureflags reads boolean switches from FLAG_<NAME> environment variables.
package featureflags

import (
	"os"
	"strings"
)

// LiveMetrics mounts the websocket that streams dashboard metrics
const LiveMetrics = "live_metrics"

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes/on (case-insensitive)
func Enabled(name string) bool {
	return parse(os.Getenv(envName(name)))
}

func envName(name string) string {
	return "FLAG_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func parse(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
