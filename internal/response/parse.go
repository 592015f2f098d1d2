// Package response turns free-text model output into a structured result.
// Parsing never fails: output that is not a JSON object degrades to an
// answer-only result carrying the raw text.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind tags how a Result was obtained
type Kind int

const (
	// Empty means the model returned nothing
	Empty Kind = iota
	// Structured means the model returned a JSON object
	Structured
	// AnswerOnly means the output was not a JSON object and is kept verbatim as the answer
	AnswerOnly
)

func (k Kind) String() string {
	switch k {
	case Structured:
		return "structured"
	case AnswerOnly:
		return "answer_only"
	default:
		return "empty"
	}
}

// Edit is a proposed full-file replacement
type Edit struct {
	Path    string
	Content string
}

// Result is the parsed model response
type Result struct {
	Kind               Kind
	Edits              []Edit
	ValidationCommands []string
	Answer             string
	// Dropped describes structured entries that were ignored as malformed
	Dropped []string
}

// fencedObject matches the object inside the first fenced block only
var fencedObject = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Parse extracts edits, validation commands and an answer from raw model output
func Parse(raw string) Result {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Result{Kind: Empty}
	}

	if m := fencedObject.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil || fields == nil {
		return Result{Kind: AnswerOnly, Answer: raw}
	}

	res := Result{Kind: Structured}
	res.Edits, res.Dropped = decodeEdits(fields["edits"])
	commands, dropped := decodeCommands(fields["validation_commands"])
	res.ValidationCommands = commands
	res.Dropped = append(res.Dropped, dropped...)

	res.Answer = decodeText(fields["answer"])
	if res.Answer == "" {
		res.Answer = decodeText(fields["notes"])
	}
	return res
}

type wireEdit struct {
	File    *string `json:"file"`
	Path    *string `json:"path"`
	Content *string `json:"content"`
}

func decodeEdits(raw json.RawMessage) ([]Edit, []string) {
	if isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, []string{"edits: not a list"}
	}

	var edits []Edit
	var dropped []string
	for i, item := range items {
		var we wireEdit
		if err := json.Unmarshal(item, &we); err != nil {
			dropped = append(dropped, fmt.Sprintf("edits[%d]: %s", i, editError(err)))
			continue
		}
		path := ""
		switch {
		case we.File != nil:
			path = *we.File
		case we.Path != nil:
			path = *we.Path
		}
		if strings.TrimSpace(path) == "" {
			dropped = append(dropped, fmt.Sprintf("edits[%d]: missing file", i))
			continue
		}
		edit := Edit{Path: path}
		if we.Content != nil {
			edit.Content = *we.Content
		}
		edits = append(edits, edit)
	}
	return edits, dropped
}

// editError names the field that failed to decode, if any
func editError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return typeErr.Field + ": not a string"
	}
	return "not an object"
}

func decodeCommands(raw json.RawMessage) ([]string, []string) {
	if isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, []string{"validation_commands: not a list"}
	}

	var commands []string
	var dropped []string
	for i, item := range items {
		var cmd string
		if err := json.Unmarshal(item, &cmd); err != nil {
			dropped = append(dropped, fmt.Sprintf("validation_commands[%d]: not a string", i))
			continue
		}
		commands = append(commands, cmd)
	}
	return commands, dropped
}

// decodeText returns strings as-is and any other JSON value in its literal form
func decodeText(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
