package contextpack

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultMaxFiles        = 40
	DefaultMaxCharsPerFile = 5000

	truncationMarker = "\n\n...[truncated]"
	fileHeader       = "### FILE: "
)

// codeExtensions are always included regardless of content sniffing
var codeExtensions = map[string]bool{
	".b": true, ".bas": true, ".basic": true, ".bp": true,
	".c": true, ".cc": true, ".cpp": true, ".cs": true,
	".go": true, ".h": true, ".hpp": true, ".java": true,
	".js": true, ".json": true, ".kt": true, ".lua": true,
	".md": true, ".php": true, ".py": true, ".rb": true,
	".rs": true, ".scala": true, ".sh": true, ".sql": true,
	".swift": true, ".ts": true, ".tsx": true, ".txt": true,
	".xml": true, ".yaml": true, ".yml": true,
}

// Bundle is the labeled text snapshot of a project
type Bundle struct {
	Text  string
	Files []string // relative, slash-separated, in inclusion order
}

// Builder walks a project tree and collects readable files.
// Zero limits fall back to the defaults.
type Builder struct {
	MaxFiles        int
	MaxCharsPerFile int
}

// NewBuilder creates a Builder with the given limits
func NewBuilder(maxFiles, maxCharsPerFile int) Builder {
	return Builder{MaxFiles: maxFiles, MaxCharsPerFile: maxCharsPerFile}
}

// ShouldInclude decides whether a file belongs in the model context
func ShouldInclude(path string, content []byte) bool {
	if codeExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	return IsProbablyText(content)
}

// Build collects up to MaxFiles files below root in lexicographic order.
// Unreadable files are skipped; only an unreadable root is an error.
func (b Builder) Build(root string) (Bundle, error) {
	maxFiles := b.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	maxChars := b.MaxCharsPerFile
	if maxChars <= 0 {
		maxChars = DefaultMaxCharsPerFile
	}

	root, err := filepath.EvalSymlinks(root)
	if err != nil {
		return Bundle{}, fmt.Errorf("reading project: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return Bundle{}, fmt.Errorf("reading project: %w", err)
	}
	if !info.IsDir() {
		return Bundle{}, fmt.Errorf("reading project: %s is not a directory", root)
	}

	var bundle Bundle
	var chunks []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if len(bundle.Files) >= maxFiles {
			return filepath.SkipAll
		}
		// Symlinks are not followed so the snapshot cannot leave the project.
		if !d.Type().IsRegular() {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		if !ShouldInclude(path, raw) {
			return nil
		}

		content := strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
		if content == "" {
			return nil
		}
		content = truncate(content, maxChars)

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		bundle.Files = append(bundle.Files, rel)
		chunks = append(chunks, fileHeader+rel+"\n"+content)
		return nil
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("walking project: %w", err)
	}

	bundle.Text = strings.Join(chunks, "\n\n")
	return bundle, nil
}

// truncate cuts content to maxChars characters and marks the cut
func truncate(content string, maxChars int) string {
	if len(content) <= maxChars {
		return content
	}
	runes := []rune(content)
	if len(runes) <= maxChars {
		return content
	}
	return string(runes[:maxChars]) + truncationMarker
}
