package chunking

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	lineEndingReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")
	horizontalSpace    = regexp.MustCompile(`[ \t]+`)
	blankLine          = regexp.MustCompile(`\n\s*\n`)
)

// Normalize unifies line endings, collapses runs of spaces and tabs and trims
// the result. Newlines are preserved so paragraph structure survives.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	out := lineEndingReplacer.Replace(text)
	out = horizontalSpace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// SplitParagraphs normalizes text and splits it on blank lines.
// Empty paragraphs are dropped.
func SplitParagraphs(text string) []string {
	clean := Normalize(text)
	if clean == "" {
		return nil
	}
	parts := blankLine.Split(clean, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
