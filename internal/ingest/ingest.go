// Package ingest turns uploaded documents into knowledge-base records.
// The format is chosen by file extension.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/valpere/dzerkalo/internal/chunker"
	"github.com/valpere/dzerkalo/internal/index"
	"github.com/valpere/dzerkalo/internal/markdown"
)

var ErrUnsupported = errors.New("unsupported file type")

// Extensions lists the file extensions Parse accepts.
var Extensions = []string{".txt", ".md", ".markdown", ".json", ".docx", ".pdf"}

// Parser converts documents into records. A positive MaxChars splits long
// texts into chunks labelled "name#1", "name#2", ...
type Parser struct {
	MaxChars int
}

// Parse reads the file at path with a zero Parser.
func Parse(path string) ([]index.Record, error) {
	return Parser{}.Parse(path)
}

func (p Parser) Parse(path string) ([]index.Record, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.ParseBytes(filepath.Base(path), data)
}

// ParseBytes parses data as if it were read from a file called name.
func (p Parser) ParseBytes(name string, data []byte) ([]index.Record, error) {
	name = filepath.Base(name)

	var records []index.Record
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		records = []index.Record{{Text: decodeText(data), Source: name}}
	case ".md", ".markdown":
		records = []index.Record{{Text: markdown.ToPlainText([]byte(decodeText(data))), Source: name}}
	case ".json":
		recs, err := parseJSON(name, data)
		if err != nil {
			return nil, err
		}
		records = recs
	case ".docx":
		text, err := docxText(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		records = []index.Record{{Text: text, Source: name}}
	case ".pdf":
		text, err := pdfText(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		records = []index.Record{{Text: text, Source: name}}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(name))
	}

	return p.split(records), nil
}

// Supported reports whether path has an extension Parse understands.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (p Parser) split(records []index.Record) []index.Record {
	out := make([]index.Record, 0, len(records))
	for _, r := range records {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		chunks := chunker.Chunk(text, p.MaxChars)
		if len(chunks) == 1 {
			out = append(out, index.Record{Text: chunks[0], Source: r.Source})
			continue
		}
		for i, c := range chunks {
			out = append(out, index.Record{Text: c, Source: fmt.Sprintf("%s#%d", r.Source, i+1)})
		}
	}
	return out
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return strings.ToValidUTF8(string(data), "�")
}

// parseJSON accepts an exported knowledge base (an array of {text, source}
// objects). Array elements that are not records, and any non-array value,
// are kept as their compact JSON text.
func parseJSON(name string, data []byte) ([]index.Record, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	items, ok := raw.([]any)
	if !ok {
		return []index.Record{{Text: stringify(raw), Source: name}}, nil
	}

	records := make([]index.Record, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			records = append(records, index.Record{Text: stringify(item), Source: name})
			continue
		}
		text, ok := obj["text"].(string)
		if !ok {
			records = append(records, index.Record{Text: stringify(item), Source: name})
			continue
		}
		source, _ := obj["source"].(string)
		if source == "" {
			source = name
		}
		records = append(records, index.Record{Text: text, Source: source})
	}
	return records, nil
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(buf.String())
}
