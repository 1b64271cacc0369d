package usecase

import (
	"strings"

	"github.com/hotbags/backend/internal/domain"
)

// ParseOperatorCommand classifies an operator reply. Input that matches no
// rule yields IntentUnknown with a nil error; an error is returned only when
// the reply committed to edit parsing and then contained a malformed line.
func ParseOperatorCommand(text string) (domain.OperatorCommand, error) {
	unknown := domain.OperatorCommand{Intent: domain.IntentUnknown, Edits: map[string]string{}}

	trimmed := strings.TrimSpace(text)
	switch strings.ToUpper(trimmed) {
	case "YES":
		return domain.OperatorCommand{Intent: domain.IntentYes, Edits: map[string]string{}}, nil
	case "CANCEL":
		return domain.OperatorCommand{Intent: domain.IntentCancel, Edits: map[string]string{}}, nil
	}

	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return unknown, nil
	}

	var editLines []string
	switch {
	case strings.EqualFold(lines[0], "EDIT"):
		editLines = lines[1:]
	case allContain(lines, "="):
		editLines = lines
	default:
		return unknown, nil
	}

	edits := make(map[string]string, len(editLines))
	for _, line := range editLines {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return unknown, &domain.InvalidCommandError{Line: line, Reason: "edit line has no '='"}
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return unknown, &domain.InvalidCommandError{Line: line, Reason: "edit line has an empty key"}
		}
		edits[key] = strings.TrimSpace(value)
	}

	return domain.OperatorCommand{Intent: domain.IntentEdit, Edits: edits}, nil
}

func nonEmptyLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func allContain(lines []string, substr string) bool {
	for _, line := range lines {
		if !strings.Contains(line, substr) {
			return false
		}
	}
	return true
}
