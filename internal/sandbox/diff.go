package sandbox

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
)

const diffContext = 3

// UnifiedDiff renders the change from before to after as a unified diff
// labeled a/<path> and b/<path>. Identical inputs yield domain.NoDiff.
func UnifiedDiff(path, before, after string) (string, error) {
	if before == after {
		return domain.NoDiff, nil
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(before),
		B:        splitLines(after),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  diffContext,
	})
	if err != nil {
		return "", err
	}
	diff = strings.TrimRight(diff, "\n")
	if diff == "" {
		return domain.NoDiff, nil
	}
	return diff, nil
}

// splitLines splits s into newline-terminated lines. A missing final newline
// is not distinguished, so "x" and "x\n" compare equal line-wise.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i := range lines {
		lines[i] += "\n"
	}
	return lines
}
