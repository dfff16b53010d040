package config

import "strings"

var backendAliases = map[string]string{
	"keychain":   "keyring",
	"os":         "keyring",
	"sqlite3":    "sqlite",
	"db":         "sqlite",
	"fs":         "file",
	"files":      "file",
	"pg":         "postgres",
	"postgresql": "postgres",
	"valkey":     "redis",
	"minio":      "s3",
	"r2":         "s3",
}

// NormalizeBackend lowercases a store backend name and resolves aliases.
// Unknown names are returned lowercased so Validate can report them.
func NormalizeBackend(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := backendAliases[lower]; ok {
		return canonical
	}
	return lower
}

// NormalizeLevel maps common spellings onto debug, info, warn or error.
func NormalizeLevel(level string) string {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "", "information":
		return "info"
	case "warning":
		return "warn"
	case "trace":
		return "debug"
	default:
		return l
	}
}
