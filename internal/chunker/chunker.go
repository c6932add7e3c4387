// Package chunker splits long documents into passages small enough to embed
// and to send through a translation round trip, preferring paragraph and
// sentence boundaries. Chinese and Japanese sentence punctuation counts as a
// boundary even without a following space.
package chunker

import (
	"strings"
	"unicode"
)

// Chunk splits text into pieces each no longer than maxChars unicode
// code points. Splits are attempted (in order of preference) at:
//  1. Paragraph boundaries (a blank line)
//  2. Sentence-ending punctuation (. ! ? followed by space, or 。！？；…)
//  3. Whitespace or a CJK comma
//  4. Hard cut at maxChars if no suitable boundary is found
//
// If maxChars ≤ 0 it is treated as unlimited. Blank input yields no chunks.
func Chunk(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 || len([]rune(text)) <= maxChars {
		return []string{text}
	}

	var chunks []string
	remaining := []rune(text)

	for len(remaining) > maxChars {
		split := findSplit(remaining, maxChars)
		if chunk := strings.TrimSpace(string(remaining[:split])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = []rune(strings.TrimSpace(string(remaining[split:])))
	}

	if len(remaining) > 0 {
		chunks = append(chunks, string(remaining))
	}
	return chunks
}

// findSplit returns the rune index at which to split, searching backwards
// from maxChars for the best boundary. The result is always in (0, maxChars].
func findSplit(runes []rune, maxChars int) int {
	candidate := runes[:maxChars]

	// paragraph
	for i := len(candidate) - 1; i > 0; i-- {
		if candidate[i] == '\n' && candidate[i-1] == '\n' {
			return i + 1
		}
		if candidate[i] == '\n' && i > 2 && candidate[i-1] == '\r' && candidate[i-2] == '\n' {
			return i + 1
		}
	}

	// sentence
	for i := len(candidate) - 1; i > 0; i-- {
		r := candidate[i]
		if isCJKTerminal(r) {
			return i + 1
		}
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}

	// word or clause
	for i := len(candidate) - 1; i > 0; i-- {
		if unicode.IsSpace(candidate[i]) {
			return i
		}
		if candidate[i] == '，' || candidate[i] == '、' {
			return i + 1
		}
	}

	return maxChars
}

func isCJKTerminal(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '…':
		return true
	}
	return false
}
