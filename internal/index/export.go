package index

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

type exportRecord struct {
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Export writes the corpus as a compact JSON array of {text, source}
// objects, optionally with each record's embedding. Non-ASCII text is
// written as-is.
func (ix *Index) Export(w io.Writer, withEmbeddings bool) error {
	snap := ix.snap.Load()
	if withEmbeddings && len(snap.vectors) != len(snap.records) {
		return ErrStaleIndex
	}

	out := make([]exportRecord, len(snap.records))
	for i, r := range snap.records {
		out[i] = exportRecord{Text: r.Text, Source: r.Source}
		if withEmbeddings {
			out[i].Embedding = snap.vectors[i]
		}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode knowledge base: %w", err)
	}
	return nil
}

// Save exports to path, creating its parent directory. The file is written
// to a temporary name first and renamed into place.
func (ix *Index) Save(path string, withEmbeddings bool) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if err := ix.Export(f, withEmbeddings); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close file: %w", err)
	}
	return os.Rename(tmp, path)
}

// DefaultExportName returns knowledge_base_YYYYMMDD_HHMMSS.json for t.
func DefaultExportName(t time.Time) string {
	return "knowledge_base_" + t.Format("20060102_150405") + ".json"
}
