package chunking

import (
	"regexp"
	"strings"
)

// MinFAQSections is the number of sections required before text is treated as FAQ-shaped.
const MinFAQSections = 2

var (
	numberedHeaderPattern = regexp.MustCompile(`^\d+(\.\d+)*\.?\s+`)
	questionHeaderPattern = regexp.MustCompile(`^¿.+\?`)
)

// SectionDetector recognizes documents made of self-contained sections.
// DetectSections returns nil when text is not section-shaped.
type SectionDetector interface {
	DetectSections(text string) []string
}

// RegexSectionDetector opens a new section on every line matching one of Headers.
type RegexSectionDetector struct {
	Headers     []*regexp.Regexp
	MinSections int
}

// DefaultSectionDetector matches numbered headers ("1.", "2.3 ") and
// Spanish-style questions ("¿...?").
func DefaultSectionDetector() *RegexSectionDetector {
	return &RegexSectionDetector{
		Headers:     []*regexp.Regexp{numberedHeaderPattern, questionHeaderPattern},
		MinSections: MinFAQSections,
	}
}

// DetectFAQSections runs the default detector.
func DetectFAQSections(text string) []string {
	return DefaultSectionDetector().DetectSections(text)
}

// DetectSections implements SectionDetector.
//
// The first non-empty line must be a header: any content before the first
// header means the text is not FAQ-shaped and nil is returned.
func (d *RegexSectionDetector) DetectSections(text string) []string {
	clean := Normalize(text)
	if clean == "" {
		return nil
	}

	var sections [][]string
	for _, line := range strings.Split(clean, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if d.isHeader(line) {
			sections = append(sections, []string{line})
			continue
		}
		if len(sections) == 0 {
			return nil
		}
		last := len(sections) - 1
		sections[last] = append(sections[last], line)
	}

	minSections := d.MinSections
	if minSections <= 0 {
		minSections = MinFAQSections
	}
	if len(sections) < minSections {
		return nil
	}

	out := make([]string, 0, len(sections))
	for _, lines := range sections {
		out = append(out, strings.TrimSpace(strings.Join(lines, "\n")))
	}
	return out
}

func (d *RegexSectionDetector) isHeader(line string) bool {
	for _, re := range d.Headers {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
