// Package report polishes a document record by record and renders the
// result as a plain-text report: each original followed by every provider's
// rewrite and analysis, and the comparative summary when there is one.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/valpere/dzerkalo/internal/index"
	"github.com/valpere/dzerkalo/internal/orchestrator"
)

const separator = "=================================================="

type Polisher interface {
	Polish(ctx context.Context, req orchestrator.PolishRequest) (*orchestrator.PolishResult, error)
}

// Entry is the report section for one input record.
type Entry struct {
	Index     int               `json:"index"`
	Source    string            `json:"source"`
	Original  string            `json:"original"`
	Suggested map[string]string `json:"suggested,omitempty"`
	Analysis  map[string]string `json:"analysis,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	Summary   string            `json:"summary,omitempty"`
	// Error is set when the whole polish of this record failed.
	Error string `json:"error,omitempty"`
}

func NewEntry(i int, rec index.Record, res *orchestrator.PolishResult) Entry {
	resp := res.Response()
	return Entry{
		Index:     i,
		Source:    rec.Source,
		Original:  rec.Text,
		Suggested: resp.Suggested,
		Analysis:  resp.Analysis,
		Errors:    resp.Errors,
		Summary:   resp.Summary,
	}
}

// Run polishes records in order with the given provider selection. Indices
// present in done are taken from there instead of being polished again.
// onEntry, when set, sees every freshly polished entry; an error from it
// stops the run. A failed polish is recorded in the entry and the run goes
// on, unless ctx itself is done.
func Run(ctx context.Context, p Polisher, records []index.Record, provider string,
	done map[int]Entry, onEntry func(Entry) error, log logrus.FieldLogger) ([]Entry, error) {

	if log == nil {
		log = logrus.StandardLogger()
	}

	entries := make([]Entry, 0, len(records))
	for i, rec := range records {
		if e, ok := done[i]; ok {
			entries = append(entries, e)
			continue
		}
		if err := ctx.Err(); err != nil {
			return entries, err
		}

		res, err := p.Polish(ctx, orchestrator.PolishRequest{Text: rec.Text, Provider: provider})
		var e Entry
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return entries, err
			}
			log.WithError(err).WithField("record", i).Warn("record polish failed")
			e = Entry{Index: i, Source: rec.Source, Original: rec.Text, Error: orchestrator.ErrorResponse(err).Error}
		} else {
			e = NewEntry(i, rec, res)
		}

		if onEntry != nil {
			if err := onEntry(e); err != nil {
				return entries, fmt.Errorf("record %d: %w", i, err)
			}
		}
		entries = append(entries, e)
		log.WithFields(logrus.Fields{"record": i + 1, "total": len(records)}).Info("record polished")
	}
	return entries, nil
}

// WriteText renders entries in the plain-text report format.
func WriteText(w io.Writer, entries []Entry) error {
	var parts []string
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("原文：\n%s\n", e.Original))

		if e.Error != "" {
			parts = append(parts, fmt.Sprintf("\n润色失败：\n%s", e.Error))
		}
		for _, name := range providers(e) {
			if s, ok := e.Suggested[name]; ok {
				parts = append(parts, fmt.Sprintf("\n%s 润色：\n%s", name, s))
				parts = append(parts, fmt.Sprintf("\n%s 分析：\n%s", name, e.Analysis[name]))
			}
			if msg, ok := e.Errors[name]; ok {
				parts = append(parts, fmt.Sprintf("\n%s 错误：\n%s", name, msg))
			}
		}
		if e.Summary != "" {
			parts = append(parts, fmt.Sprintf("\n综合分析：\n%s", e.Summary))
		}
		parts = append(parts, "\n"+separator+"\n")
	}

	_, err := io.WriteString(w, strings.Join(parts, "\n"))
	return err
}

func providers(e Entry) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range []map[string]string{e.Suggested, e.Errors} {
		for name := range m {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// OutputName derives the report file name for an input document, e.g.
// "paper_polished_20250102_150405.txt".
func OutputName(input string, t time.Time) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_polished_%s.txt", stem, t.Format("20060102_150405"))
}
