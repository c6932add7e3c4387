// Package index holds the in-memory knowledge base: an ordered corpus of
// records and the embedding matrix aligned with it.
//
// Readers always see a fully consistent snapshot. Appends are serialised
// and publish a new snapshot in one atomic swap, so a query never observes
// a corpus whose matrix has not been recomputed yet.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/valpere/dzerkalo/internal/embedding"
)

var (
	// ErrEmptyRecord is returned by Append when a record has no text.
	ErrEmptyRecord = errors.New("record text is empty")
	// ErrStaleIndex is returned when a snapshot's matrix does not line up
	// with its corpus.
	ErrStaleIndex = errors.New("embedding matrix does not match corpus")
)

// Record is one retrievable passage. Records are immutable once appended.
type Record struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Hit is a ranked query result.
type Hit struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
}

type snapshot struct {
	records []Record
	vectors [][]float32
	norms   []float64
}

type Index struct {
	embedder embedding.Embedder
	log      logrus.FieldLogger

	mu   sync.Mutex // serialises Append
	snap atomic.Pointer[snapshot]
}

type Option func(*Index)

func WithLogger(log logrus.FieldLogger) Option {
	return func(ix *Index) {
		if log != nil {
			ix.log = log
		}
	}
}

func New(e embedding.Embedder, opts ...Option) *Index {
	ix := &Index{
		embedder: e,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.snap.Store(&snapshot{})
	return ix
}

// Append adds records to the corpus and recomputes the embedding of the
// whole corpus. The cost is linear in the corpus size on every call, which
// is acceptable for the single-user knowledge bases this tool targets.
func (ix *Index) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for i, r := range records {
		if strings.TrimSpace(r.Text) == "" {
			return fmt.Errorf("record %d from %q: %w", i, r.Source, ErrEmptyRecord)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	cur := ix.snap.Load()
	corpus := make([]Record, 0, len(cur.records)+len(records))
	corpus = append(corpus, cur.records...)
	corpus = append(corpus, records...)

	texts := make([]string, len(corpus))
	for i, r := range corpus {
		texts[i] = r.Text
	}

	start := time.Now()
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed corpus: %w", err)
	}
	if len(vectors) != len(corpus) {
		return fmt.Errorf("embedder returned %d vectors for %d records: %w", len(vectors), len(corpus), ErrStaleIndex)
	}

	norms := make([]float64, len(vectors))
	for i, v := range vectors {
		norms[i] = norm(v)
	}

	ix.snap.Store(&snapshot{records: corpus, vectors: vectors, norms: norms})

	ix.log.WithFields(logrus.Fields{
		"added":    len(records),
		"total":    len(corpus),
		"embedder": ix.embedder.Name(),
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("knowledge base updated")

	return nil
}

// Query returns the k records most similar to text, best first. Ties keep
// insertion order. An empty corpus or k <= 0 yields an empty slice.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	snap := ix.snap.Load()
	if len(snap.vectors) != len(snap.records) {
		return nil, ErrStaleIndex
	}
	if len(snap.records) == 0 || k <= 0 {
		return []Hit{}, nil
	}
	if k > len(snap.records) {
		k = len(snap.records)
	}

	qv, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qv) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(qv))
	}
	q := qv[0]
	qn := norm(q)

	hits := make([]Hit, len(snap.records))
	for i, r := range snap.records {
		if len(snap.vectors[i]) != len(q) {
			return nil, fmt.Errorf("record %d has dimension %d, query has %d: %w", i, len(snap.vectors[i]), len(q), ErrStaleIndex)
		}
		hits[i] = Hit{Record: r, Score: cosine(q, qn, snap.vectors[i], snap.norms[i])}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	return hits[:k], nil
}

// Retrieve returns the texts of the top k matches.
func (ix *Index) Retrieve(ctx context.Context, text string, k int) ([]string, error) {
	hits, err := ix.Query(ctx, text, k)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Record.Text
	}
	return out, nil
}

func (ix *Index) Len() int {
	return len(ix.snap.Load().records)
}

// Records returns a copy of the corpus in insertion order.
func (ix *Index) Records() []Record {
	snap := ix.snap.Load()
	out := make([]Record, len(snap.records))
	copy(out, snap.records)
	return out
}

// Sources returns the distinct record sources in first-seen order.
func (ix *Index) Sources() []string {
	snap := ix.snap.Load()
	seen := make(map[string]bool)
	var out []string
	for _, r := range snap.records {
		if !seen[r.Source] {
			seen[r.Source] = true
			out = append(out, r.Source)
		}
	}
	return out
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

// cosine treats a zero vector as orthogonal to everything.
func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
