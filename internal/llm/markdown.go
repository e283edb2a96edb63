package llm

import (
	"regexp"
	"strings"
)

var (
	markdownFenceOpening = regexp.MustCompile("(?m)^```(?:markdown|md)[ \t]*\n+")
	markdownFenceClosing = regexp.MustCompile("\n```[ \t]*$")
)

// CleanMarkdown removes a ```markdown wrapper that models put around their whole answer.
// Other code fences are left untouched.
func CleanMarkdown(content string) string {
	trimmed := strings.TrimSpace(content)
	location := markdownFenceOpening.FindStringIndex(trimmed)
	if location == nil || location[0] != 0 {
		return trimmed
	}
	unwrapped := trimmed[location[1]:]
	unwrapped = markdownFenceClosing.ReplaceAllString(unwrapped, "")
	return strings.TrimSpace(unwrapped)
}
