// Package markdown renders Markdown documents to plain text for ingestion.
package markdown

import (
	"bytes"
	"html"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

func ToHTML(md []byte) string {
	opts := mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	}
	renderer := mdhtml.NewRenderer(opts)
	ext := parser.CommonExtensions | parser.Attributes
	p := parser.NewWithExtensions(ext)
	doc := p.Parse(md)
	return string(markdown.Render(doc, renderer))
}

// ToPlainText renders md and drops the markup. Paragraphs stay separated by
// a single blank line.
func ToPlainText(md []byte) string {
	text := html.UnescapeString(StripHTMLTags(ToHTML(md)))

	var paragraphs []string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(current) > 0 {
				paragraphs = append(paragraphs, strings.Join(current, "\n"))
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, "\n"))
	}
	return strings.Join(paragraphs, "\n\n")
}

// StripHTMLTags removes everything between angle brackets. Block-level
// closing tags become line breaks so adjacent blocks do not run together.
func StripHTMLTags(htmlContent string) string {
	var result bytes.Buffer
	var tag bytes.Buffer
	inTag := false

	for _, ch := range htmlContent {
		switch {
		case ch == '<':
			inTag = true
			tag.Reset()
		case ch == '>' && inTag:
			inTag = false
			if isBlockEnd(tag.String()) {
				result.WriteString("\n\n")
			}
		case inTag:
			tag.WriteRune(ch)
		default:
			result.WriteRune(ch)
		}
	}

	return result.String()
}

func isBlockEnd(tag string) bool {
	switch strings.ToLower(strings.Fields(tag + " ")[0]) {
	case "/p", "/h1", "/h2", "/h3", "/h4", "/h5", "/h6", "/li", "/pre", "/blockquote", "/tr", "br", "br/", "hr", "hr/":
		return true
	}
	return false
}
