// Package prompt assembles the instruction string sent to the model for a run.
package prompt

import (
	"fmt"
	"path"
	"strings"
)

const capabilities = "You are a coding specialist optimized for code generation, code analysis/comprehension, " +
	"debugging/root-cause analysis, refactoring, and test generation/validation across " +
	"multiple languages including Pick/Basic."

const instructions = "Focus on technical correctness. If the task asks what code does, explain intent, input/output, " +
	"data flow, and edge cases. Cite concrete details from the provided files. " +
	"When evidence is incomplete, say what is uncertain instead of guessing."

const outputContract = `Return a single JSON object with keys:
- edits: list of {file, content} for full-file replacements (or [] if no edits are needed)
- validation_commands: list of commands to validate changes
- answer: concise response to the user`

// PickBasicGuidance is added when the context contains BASIC-family sources
const PickBasicGuidance = `Pick/BASIC support rules:
- Treat field marks/value marks/subvalue marks idioms as first-class constructs.
- Preserve GOSUB/RETURN and numbered labels when refactoring legacy programs.
- Prefer incremental modernization suggestions and compatibility-safe edits.`

const noContext = "[No readable code files found]"

const promptTemplate = `%s
Task: %s
Included files (%d): %s

%s

%s
%s
Repository context:
%s`

var basicExtensions = map[string]bool{".b": true, ".bas": true, ".basic": true, ".bp": true}

// Compose builds the model prompt from the task, the context bundle and the
// list of files in it. It has no side effects.
func Compose(task, bundle string, files []string) string {
	fileList := "none"
	if len(files) > 0 {
		fileList = strings.Join(files, ", ")
	}

	guidance := ""
	if hasBasicSource(files) {
		guidance = "\n" + PickBasicGuidance + "\n"
	}

	if bundle == "" {
		bundle = noContext
	}

	return fmt.Sprintf(promptTemplate,
		capabilities,
		task,
		len(files),
		fileList,
		instructions,
		outputContract,
		guidance,
		bundle,
	)
}

func hasBasicSource(files []string) bool {
	for _, f := range files {
		if basicExtensions[strings.ToLower(path.Ext(f))] {
			return true
		}
	}
	return false
}
