// Package cache holds translation results keyed by provider, language pair
// and a hash of the normalised input text.
//
// Memory is the bounded front tier shared by every provider client in the
// process. Layered puts a persistent Backend (the sqlite store) behind it.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultSize = 4096
	DefaultTTL  = 24 * time.Hour
)

// Key identifies one cached translation.
type Key struct {
	Provider   string
	SourceLang string
	TargetLang string
	TextHash   string
}

// Entry is a cached translation together with its creation time.
type Entry struct {
	Key       Key
	Value     string
	CreatedAt time.Time
}

// Cache is the lookup used by provider clients. Implementations must be safe
// for concurrent use.
type Cache interface {
	Get(ctx context.Context, key Key) (string, bool)
	Set(ctx context.Context, key Key, value string)
}

// Backend is a persistent tier behind the in-memory cache.
type Backend interface {
	LoadTranslation(ctx context.Context, key Key) (string, bool, error)
	SaveTranslation(ctx context.Context, entry Entry) error
}

// Stats counts lookups since the cache was created.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// NewKey builds a key from raw text. The text is trimmed and NFC-normalised
// before hashing so visually identical inputs share an entry.
func NewKey(provider, sourceLang, targetLang, text string) Key {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return Key{
		Provider:   provider,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		TextHash:   hex.EncodeToString(sum[:]),
	}
}

// NormalizeText trims whitespace and applies Unicode NFC normalization.
func NormalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// Memory is a size- and TTL-bounded LRU.
type Memory struct {
	lru    *expirable.LRU[Key, Entry]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemory creates an in-memory cache. size <= 0 and ttl <= 0 fall back to
// DefaultSize and DefaultTTL.
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{lru: expirable.NewLRU[Key, Entry](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key Key) (string, bool) {
	e, ok := m.lru.Get(key)
	if !ok {
		m.misses.Add(1)
		return "", false
	}
	m.hits.Add(1)
	return e.Value, true
}

func (m *Memory) Set(_ context.Context, key Key, value string) {
	m.lru.Add(key, Entry{Key: key, Value: value, CreatedAt: time.Now()})
}

// Stats reports hit and miss counters and the current entry count.
func (m *Memory) Stats() Stats {
	return Stats{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Entries: m.lru.Len(),
	}
}

// Purge drops every entry.
func (m *Memory) Purge() {
	m.lru.Purge()
}

// Layered reads through the memory tier to a persistent backend and writes
// to both. Backend errors are logged and treated as misses.
type Layered struct {
	front *Memory
	back  Backend
	log   logrus.FieldLogger
}

func NewLayered(front *Memory, back Backend, log logrus.FieldLogger) *Layered {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Layered{front: front, back: back, log: log}
}

func (l *Layered) Get(ctx context.Context, key Key) (string, bool) {
	if v, ok := l.front.Get(ctx, key); ok {
		return v, true
	}
	v, ok, err := l.back.LoadTranslation(ctx, key)
	if err != nil {
		l.log.WithError(err).WithField("provider", key.Provider).Warn("cache backend lookup failed")
		return "", false
	}
	if ok {
		l.front.Set(ctx, key, v)
	}
	return v, ok
}

func (l *Layered) Set(ctx context.Context, key Key, value string) {
	l.front.Set(ctx, key, value)
	if err := l.back.SaveTranslation(ctx, Entry{Key: key, Value: value, CreatedAt: time.Now()}); err != nil {
		l.log.WithError(err).WithField("provider", key.Provider).Warn("cache backend write failed")
	}
}
