// Package postprocess strips model chatter from generated text.
//
// Every LLM-backed stage (providers, judge and answerer) passes its raw
// reply through Clean before using it.
package postprocess

import (
	"regexp"
	"strings"
)

type step func(string) string

var pipeline = []step{
	dropReasoning,
	dropLeadIn,
	unwrapQuotes,
	dropTrailingNote,
	tidyWhitespace,
}

// Clean runs text through every cleanup step and returns the trimmed result.
func Clean(text string) string {
	for _, s := range pipeline {
		text = strings.TrimSpace(s(text))
	}
	return text
}

var reasoningTags = []string{"think", "thinking", "reasoning", "reflection"}

var closedReasoning, openReasoning = reasoningPatterns(reasoningTags)

// reasoningPatterns builds one regexp for complete tag pairs and one for an
// opening tag left dangling by a truncated reply. RE2 has no backreferences,
// so each pair is spelled out.
func reasoningPatterns(tags []string) (*regexp.Regexp, *regexp.Regexp) {
	pairs := make([]string, len(tags))
	opens := make([]string, len(tags))
	for i, tag := range tags {
		pairs[i] = "<" + tag + ">.*?</" + tag + ">"
		opens[i] = "<" + tag + ">"
	}
	return regexp.MustCompile(`(?is)` + strings.Join(pairs, "|")),
		regexp.MustCompile(`(?is)(?:` + strings.Join(opens, "|") + `).*$`)
}

func dropReasoning(text string) string {
	text = closedReasoning.ReplaceAllString(text, "")
	return openReasoning.ReplaceAllString(text, "")
}

// leadIns are anchored at the start and must end in a colon, so ordinary
// sentences that merely mention a translation survive.
var leadIns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:(?:certainly|sure|of course|okay)[,.!]?\s*)?here(?:'s| is)(?: the| your)? (?:refined |polished |translated |rewritten )?(?:translation|text|version)\s*:`),
	regexp.MustCompile(`(?i)^(?:the )?(?:refined |polished )?(?:translation|translated text)\s*:`),
	regexp.MustCompile(`^(?:好的[，,]\s*)?(?:以下是|下面是)?(?:您的|你的)?(?:译文|翻译|翻译结果|润色后的文本|润色结果|修改后的文本)(?:如下)?\s*[:：]`),
}

func dropLeadIn(text string) string {
	for _, re := range leadIns {
		if loc := re.FindStringIndex(text); loc != nil {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

var quotePairs = map[rune]rune{
	'"':      '"',
	'\'':     '\'',
	'«':      '»',
	'\u201C': '\u201D',
	'\u2018': '\u2019',
	'「':      '」',
	'『':      '』',
}

// unwrapQuotes removes one pair of quotes enclosing the whole reply. Text
// such as “甲”和“乙” keeps its quotes because the closing rune also appears
// inside.
func unwrapQuotes(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	closing, ok := quotePairs[runes[0]]
	if !ok || runes[n-1] != closing {
		return text
	}
	inner := string(runes[1 : n-1])
	if strings.ContainsRune(inner, closing) {
		return text
	}
	return inner
}

// trailingNote matches a translator's note appended on its own line, for
// example "（注：原文中的术语已保留）" or "Note: kept the acronym".
var trailingNote = regexp.MustCompile(`(?i)\n\s*(?:[（(]\s*(?:注|说明|note)\s*[:：][^\n]*[）)]|(?:注|说明|note)\s*[:：][^\n]*)\s*$`)

func dropTrailingNote(text string) string {
	return trailingNote.ReplaceAllString(text, "")
}

var (
	lineTail   = regexp.MustCompile(`[ \t\x{3000}]+\n`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

func tidyWhitespace(text string) string {
	text = lineTail.ReplaceAllString(text, "\n")
	return blankLines.ReplaceAllString(text, "\n\n")
}
