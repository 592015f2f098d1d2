package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
)

// gitSubcommands are the read-only subcommands the git tool may run
var gitSubcommands = map[string]bool{
	"status":   true,
	"diff":     true,
	"log":      true,
	"show":     true,
	"ls-files": true,
	"blame":    true,
	"grep":     true,
}

// gitRefusedOptions write files, start programs or move git away from the root.
// Unique abbreviations of these are refused too.
var gitRefusedOptions = []string{
	"--output",
	"--config-env",
	"--exec-path",
	"--upload-pack",
	"--receive-pack",
	"--open-files-in-pager",
	"--ext-diff",
	"--textconv",
	"--no-index",
	"--git-dir",
	"--work-tree",
	"--namespace",
}

// gitRefusedShort are refused as the first letter of a short option
const gitRefusedShort = "coO"

// gitPathOptions take a file path that git reads
var gitPathOptions = []string{
	"--contents",
	"--ignore-revs-file",
	"--orderfile",
	"--pathspec-from-file",
	"--file",
}

// GitArgs is a vetted git invocation
type GitArgs struct {
	Subcommand string
	Args       []string
}

// ParseGit splits args with shell quoting rules and checks them against the
// git policy. Paths carried by options are resolved through resolve.
func ParseGit(args string, resolve func(string) (string, error)) (GitArgs, error) {
	tokens, err := shlex.Split(args)
	if err != nil {
		return GitArgs{}, fmt.Errorf("%w: %v", ErrGitRefused, err)
	}
	if len(tokens) == 0 {
		return GitArgs{}, fmt.Errorf("%w: missing subcommand", ErrGitRefused)
	}
	sub := tokens[0]
	if !gitSubcommands[sub] {
		return GitArgs{}, fmt.Errorf("%w: subcommand %s", ErrGitRefused, sub)
	}

	rest := tokens[1:]
	for i := 0; i < len(rest); i++ {
		tok := rest[i]
		if tok == "--" {
			break
		}
		if !strings.HasPrefix(tok, "-") || tok == "-" {
			continue
		}

		if !strings.HasPrefix(tok, "--") {
			if strings.ContainsRune(gitRefusedShort, rune(tok[1])) ||
				(sub == "grep" && strings.ContainsRune(tok[1:], 'O')) {
				return GitArgs{}, fmt.Errorf("%w: option %s", ErrGitRefused, tok)
			}
			if tok == "-f" && sub == "grep" && i+1 < len(rest) {
				i++
				if _, err := resolve(rest[i]); err != nil {
					return GitArgs{}, err
				}
			}
			continue
		}

		name, value, hasValue := strings.Cut(tok, "=")
		if matchesLongOption(name, gitRefusedOptions) {
			return GitArgs{}, fmt.Errorf("%w: option %s", ErrGitRefused, name)
		}
		if !matchesLongOption(name, gitPathOptions) {
			continue
		}
		if !hasValue {
			if i+1 >= len(rest) {
				continue
			}
			i++
			value = rest[i]
		}
		if _, err := resolve(value); err != nil {
			return GitArgs{}, err
		}
	}
	return GitArgs{Subcommand: sub, Args: tokens[1:]}, nil
}

// matchesLongOption reports whether name is one of options or a prefix git
// would expand to one of them
func matchesLongOption(name string, options []string) bool {
	if len(name) <= len("--") {
		return false
	}
	for _, opt := range options {
		if strings.HasPrefix(opt, name) {
			return true
		}
	}
	return false
}

// gitEnv confines repository discovery to the root and skips system config
func gitEnv(root string, env []string) []string {
	out := make([]string, 0, len(env)+2)
	for _, kv := range env {
		if strings.HasPrefix(kv, "GIT_") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "GIT_CEILING_DIRECTORIES="+filepath.Dir(root), "GIT_CONFIG_NOSYSTEM=1")
}
