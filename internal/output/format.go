// Package output renders repository trees and fits replies into chat size budgets.
package output

import (
	"strings"
	"unicode/utf8"

	"github.com/temirov/reposcope/internal/types"
)

const (
	// TruncationMarker is appended to previews cut at the inline budget.
	TruncationMarker = "\n... (truncated)"
	// DefaultMaxInlineLength leaves room for reply framing under a 2000 character message cap.
	DefaultMaxInlineLength = 1900
	listItemPrefix         = "- "
)

// Format decides whether rendered fits inline within maxInlineLength characters.
// Longer text becomes an attachment named fileName with a preview of the first
// maxInlineLength characters followed by TruncationMarker.
func Format(rendered string, maxInlineLength int, fileName string) types.OutputDecision {
	if maxInlineLength < 0 {
		maxInlineLength = 0
	}
	if utf8.RuneCountInString(rendered) <= maxInlineLength {
		return types.DecisionInline{Text: rendered}
	}
	return types.DecisionAttachment{
		Preview:  truncateRunes(rendered, maxInlineLength) + TruncationMarker,
		Content:  rendered,
		FileName: fileName,
	}
}

// RenderList renders one "- item" line per entry.
func RenderList(items []string) string {
	lines := make([]string, len(items))
	for index, item := range items {
		lines[index] = listItemPrefix + item
	}
	return strings.Join(lines, lineSeparator)
}

func truncateRunes(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for byteIndex := range text {
		if count == limit {
			return text[:byteIndex]
		}
		count++
	}
	return text
}
