package chunking

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// sentenceBoundaryPattern matches terminal punctuation, the whitespace after it and
// the first character of the next sentence (uppercase, accented uppercase or digit).
var sentenceBoundaryPattern = regexp.MustCompile(`[.?!]\s+[A-ZÁÉÍÓÚÑ0-9]`)

// SegmentParagraph splits a paragraph longer than maxChars into sentence-packed
// segments using the default sentence boundary.
func SegmentParagraph(paragraph string, maxChars int) []string {
	return segmentParagraph(paragraph, maxChars, sentenceBoundaryPattern)
}

// SplitSentences cuts text after every sentence boundary matched by boundary.
// boundary must match the punctuation mark as its first byte and the first
// character of the following sentence as its last rune.
func SplitSentences(text string, boundary *regexp.Regexp) []string {
	if boundary == nil {
		boundary = sentenceBoundaryPattern
	}
	var sentences []string
	start := 0
	for _, loc := range boundary.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start : loc[0]+1]); s != "" {
			sentences = append(sentences, s)
		}
		_, size := utf8.DecodeLastRuneInString(text[:loc[1]])
		start = loc[1] - size
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func segmentParagraph(paragraph string, maxChars int, boundary *regexp.Regexp) []string {
	if strings.TrimSpace(paragraph) == "" {
		return nil
	}
	if runeLen(paragraph) <= maxChars {
		return []string{paragraph}
	}

	var segments []string
	var buf []string
	bufLen := 0
	flush := func() {
		if len(buf) > 0 {
			segments = append(segments, strings.Join(buf, " "))
			buf, bufLen = buf[:0], 0
		}
	}

	for _, sentence := range SplitSentences(paragraph, boundary) {
		sentenceLen := runeLen(sentence)
		if len(buf) > 0 && bufLen+1+sentenceLen <= maxChars {
			buf = append(buf, sentence)
			bufLen += 1 + sentenceLen
			continue
		}
		flush()
		if sentenceLen > maxChars {
			segments = append(segments, wrapWords(sentence, maxChars)...)
			continue
		}
		buf, bufLen = append(buf, sentence), sentenceLen
	}
	flush()
	return segments
}

// wrapWords packs space-separated words greedily up to maxChars. Only spaces
// separate words, so newlines inside a word are kept. A single word longer
// than maxChars becomes its own segment.
func wrapWords(text string, maxChars int) []string {
	var lines []string
	var line strings.Builder
	lineLen := 0
	for _, word := range strings.Split(text, " ") {
		if word == "" {
			continue
		}
		wordLen := runeLen(word)
		if lineLen > 0 && lineLen+1+wordLen <= maxChars {
			line.WriteByte(' ')
			line.WriteString(word)
			lineLen += 1 + wordLen
			continue
		}
		if lineLen > 0 {
			lines = append(lines, line.String())
			line.Reset()
		}
		line.WriteString(word)
		lineLen = wordLen
	}
	if lineLen > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
