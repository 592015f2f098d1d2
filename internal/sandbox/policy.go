package sandbox

import "strings"

// shellMetachars are refused outright so an allowlisted prefix cannot be
// chained, piped, redirected or substituted into something else
const shellMetachars = ";&|<>$`(){}\n\r\\"

// Allowlist decides which shell commands may run
type Allowlist struct {
	entries [][]string
}

// NewAllowlist tokenizes each entry on whitespace. Blank entries are ignored.
func NewAllowlist(entries []string) Allowlist {
	var a Allowlist
	for _, e := range entries {
		if tokens := strings.Fields(e); len(tokens) > 0 {
			a.entries = append(a.entries, tokens)
		}
	}
	return a
}

// Allows reports whether command is free of shell metacharacters and starts
// with the tokens of an allowlist entry
func (a Allowlist) Allows(command string) bool {
	if strings.ContainsAny(command, shellMetachars) {
		return false
	}
	tokens := strings.Fields(command)
	if len(tokens) == 0 {
		return false
	}
	for _, entry := range a.entries {
		if hasPrefix(tokens, entry) {
			return true
		}
	}
	return false
}

// ParseAllowlist splits a comma-separated allowlist, trimming each entry
func ParseAllowlist(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func hasPrefix(tokens, prefix []string) bool {
	if len(tokens) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if tokens[i] != p {
			return false
		}
	}
	return true
}
