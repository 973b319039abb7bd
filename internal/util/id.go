package util

import (
	"fmt"
	"strings"
	"unicode"
)

// GenerateTaskID returns a task ID in the format t01, t02, ..., t99, t100, etc.
// Task IDs are unique within a plan and are the canonical identifier used to
// match schedule instances and progress observations back to their task.
func GenerateTaskID(index int) string {
	return fmt.Sprintf("t%02d", index+1)
}

// KebabCase converts a string to kebab-case.
// It lowercases the string, replaces spaces and underscores with hyphens,
// removes non-alphanumeric characters (except hyphens), collapses multiple
// consecutive hyphens, and trims leading/trailing hyphens.
func KebabCase(s string) string {
	var result strings.Builder

	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(unicode.ToLower(r))
		} else if r == ' ' || r == '_' || r == '-' {
			result.WriteRune('-')
		}
		// Other characters are dropped
	}

	// Collapse multiple consecutive hyphens
	str := result.String()
	for strings.Contains(str, "--") {
		str = strings.ReplaceAll(str, "--", "-")
	}

	// Trim leading/trailing hyphens
	str = strings.Trim(str, "-")

	return str
}
