// Package redact masks secrets before they reach logs, errors or terminals.
package redact

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Credential patterns scrubbed from upstream bodies and error text.
var credentialPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	// Anthropic (before OpenAI, whose pattern would otherwise eat the prefix)
	{regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`), Placeholder},
	// OpenAI, including project keys
	{regexp.MustCompile(`sk-(?:proj-)?[a-zA-Z0-9_-]{20,}`), Placeholder},
	// Google API keys (Gemini)
	{regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`), Placeholder},
	// AWS
	{regexp.MustCompile(`AKIA[A-Z0-9]{16}`), Placeholder},
	// Query-string keys
	{regexp.MustCompile(`([?&](?:key|api_key|token)=)[^&\s"']+`), "${1}" + Placeholder},
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]{8,}`), "${1}" + Placeholder},
	// Generic key=value patterns (case-insensitive)
	{regexp.MustCompile(`(?i)(api[_-]?key|x-api-key|token|secret|password|authorization)\s*[:=]\s*["']?[^\s\[]{8,}["']?`), Placeholder},
}

const Placeholder = "[REDACTED]"

// Credentials replaces known credential patterns in text with [REDACTED].
func Credentials(text string) string {
	for _, p := range credentialPatterns {
		text = p.re.ReplaceAllString(text, p.repl)
	}
	return text
}

// Secret masks a secret for display: first and last four characters of long
// values, nothing of short ones.
func Secret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) > 12:
		return s[:4] + "****" + s[len(s)-4:]
	default:
		return "****"
	}
}

// Preview returns s collapsed to one line and truncated to width terminal
// columns, for log lines and tables.
func Preview(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, width, "…")
}
