// Package placeholder hides markup that must survive a round trip through
// machine translation: fenced and inline code, LaTeX math, URLs and HTML
// tags. Each span becomes a numbered marker such as [[0]].
//
// A zh→en→zh round trip may come back with full-width brackets or padded
// numbers (【【 0 】】); Restore accepts those forms too.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Instruction is appended to LLM prompts so that markers are left alone.
const Instruction = "Keep every [[n]] marker exactly as written; do not translate, renumber or remove it."

// patterns are applied in order; earlier ones win on overlapping spans.
var patterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```.*?```"),
	regexp.MustCompile("`[^`\n]+`"),
	regexp.MustCompile(`(?s)\$\$.+?\$\$`),
	regexp.MustCompile(`\$[^$\n]+\$`),
	regexp.MustCompile(`https?://[^\s<>()（）\p{Han}，。；]+`),
	regexp.MustCompile(`<[^>\n]+>`),
}

var reMarker = regexp.MustCompile(`(?:\[\[|【【|［［)\s*(\d+)\s*(?:\]\]|】】|］］)`)

// Markup holds the spans hidden by Protect, indexed by marker number.
type Markup struct {
	spans []string
}

// Protect replaces every protected span of text with a marker.
func Protect(text string) (string, *Markup) {
	m := &Markup{}
	for _, re := range patterns {
		text = re.ReplaceAllStringFunc(text, func(span string) string {
			// a span that already contains a marker was captured by an
			// earlier pattern
			if reMarker.MatchString(span) {
				return span
			}
			m.spans = append(m.spans, span)
			return marker(len(m.spans) - 1)
		})
	}
	return text, m
}

func marker(i int) string {
	return fmt.Sprintf("[[%d]]", i)
}

// Len is the number of hidden spans.
func (m *Markup) Len() int {
	if m == nil {
		return 0
	}
	return len(m.spans)
}

// Restore puts the hidden spans back. Markers with an unknown number are
// left untouched.
func (m *Markup) Restore(text string) string {
	if m.Len() == 0 {
		return text
	}
	return reMarker.ReplaceAllStringFunc(text, func(match string) string {
		i, err := strconv.Atoi(reMarker.FindStringSubmatch(match)[1])
		if err != nil || i >= len(m.spans) {
			return match
		}
		return m.spans[i]
	})
}

// Missing returns the numbers of markers that no longer occur in text.
func (m *Markup) Missing(text string) []int {
	seen := make(map[int]bool)
	for _, sub := range reMarker.FindAllStringSubmatch(text, -1) {
		if i, err := strconv.Atoi(sub[1]); err == nil {
			seen[i] = true
		}
	}
	var missing []int
	for i := 0; i < m.Len(); i++ {
		if !seen[i] {
			missing = append(missing, i)
		}
	}
	return missing
}

// Strip removes all markers, leaving only the surrounding prose.
func Strip(text string) string {
	return strings.TrimSpace(reMarker.ReplaceAllString(text, ""))
}
