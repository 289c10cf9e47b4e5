package chunking

import (
	"regexp"
	"strings"
)

const (
	// ShortLabelMaxChars is the longest paragraph treated as a label for the next one.
	ShortLabelMaxChars = 200

	chunkSeparator    = "\n\n"
	chunkSeparatorLen = 2
)

// MergeLabelParagraphs fuses short paragraphs that end like a heading or
// question ("?", ":" or "¿") with the paragraph that follows them.
func MergeLabelParagraphs(paragraphs []string) []string {
	merged := make([]string, 0, len(paragraphs))
	pending := ""
	for _, p := range paragraphs {
		if pending != "" {
			p = pending + "\n" + p
			pending = ""
		}
		if isLabel(p) {
			pending = p
			continue
		}
		merged = append(merged, p)
	}
	if pending != "" {
		merged = append(merged, pending)
	}
	return merged
}

func isLabel(p string) bool {
	p = strings.TrimSpace(p)
	if p == "" || runeLen(p) > ShortLabelMaxChars {
		return false
	}
	return strings.HasSuffix(p, "?") || strings.HasSuffix(p, ":") || strings.HasSuffix(p, "¿")
}

// AssembleChunks packs sections into chunks.
//
// With respectSectionBoundaries every section becomes its own chunk and a chunk
// ending in a question is carried into the next one. Otherwise sections are
// segmented to maxChars and packed greedily, repeating the trailing
// overlapSegments segments of each chunk at the start of the next.
func AssembleChunks(sections []string, maxChars, overlapSegments int, respectSectionBoundaries bool) []string {
	return assembleChunks(sections, maxChars, overlapSegments, respectSectionBoundaries, sentenceBoundaryPattern)
}

func assembleChunks(sections []string, maxChars, overlapSegments int, respectSectionBoundaries bool, boundary *regexp.Regexp) []string {
	if len(sections) == 0 {
		return nil
	}

	var chunks []string
	if respectSectionBoundaries {
		chunks = repairQuestionBoundaries(nonEmpty(sections))
	} else {
		var segments []string
		for _, section := range sections {
			if runeLen(section) > maxChars {
				segments = append(segments, segmentParagraph(section, maxChars, boundary)...)
				continue
			}
			segments = append(segments, section)
		}
		chunks = packSegments(nonEmpty(segments), maxChars, overlapSegments)
	}

	if len(chunks) == 0 {
		return []string{strings.Join(sections, chunkSeparator)}
	}
	return chunks
}

func packSegments(segments []string, maxChars, overlapSegments int) []string {
	var chunks []string
	var buf []string
	bufLen := 0

	for _, seg := range segments {
		segLen := runeLen(seg)
		if len(buf) > 0 && bufLen+chunkSeparatorLen+segLen > maxChars {
			chunks = append(chunks, strings.Join(buf, chunkSeparator))

			carry := tail(buf, overlapSegments)
			for len(carry) > 0 && joinedLen(carry)+chunkSeparatorLen+segLen > maxChars {
				carry = carry[1:]
			}
			buf = append([]string(nil), carry...)
			bufLen = joinedLen(buf)
		}
		if len(buf) > 0 {
			bufLen += chunkSeparatorLen
		}
		buf = append(buf, seg)
		bufLen += segLen
	}

	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, chunkSeparator))
	}
	return chunks
}

// repairQuestionBoundaries merges every non-final chunk that ends with a
// question into the chunk after it.
func repairQuestionBoundaries(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	carry := ""
	for i, c := range chunks {
		if carry != "" {
			c = carry + chunkSeparator + c
			carry = ""
		}
		if i < len(chunks)-1 && strings.HasSuffix(strings.TrimSpace(c), "?") {
			carry = c
			continue
		}
		out = append(out, c)
	}
	return out
}

func tail(segments []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(segments) {
		n = len(segments)
	}
	return segments[len(segments)-n:]
}

func joinedLen(segments []string) int {
	if len(segments) == 0 {
		return 0
	}
	total := chunkSeparatorLen * (len(segments) - 1)
	for _, s := range segments {
		total += runeLen(s)
	}
	return total
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
