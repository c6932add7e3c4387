package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/valpere/dzerkalo/internal/cache"
)

// CachedTranslation is a row from the translation_cache table.
type CachedTranslation struct {
	Provider   string
	SourceLang string
	TargetLang string
	TextHash   string
	Value      string
	Hits       int
	CreatedAt  time.Time
	LastUsed   time.Time
}

// CacheStats summarises the persistent cache tier.
type CacheStats struct {
	TotalEntries int
	TotalHits    int
	ByProvider   map[string]int
	Oldest       time.Time
	Newest       time.Time
}

// LoadTranslation implements cache.Backend.
func (s *Store) LoadTranslation(ctx context.Context, key cache.Key) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM translation_cache WHERE provider = ? AND source_lang = ? AND target_lang = ? AND text_hash = ?`,
		key.Provider, key.SourceLang, key.TargetLang, key.TextHash).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE translation_cache SET hits = hits + 1, last_used = ? WHERE provider = ? AND source_lang = ? AND target_lang = ? AND text_hash = ?`,
		time.Now(), key.Provider, key.SourceLang, key.TargetLang, key.TextHash)

	return value, true, err
}

// SaveTranslation implements cache.Backend. A later write for the same key
// replaces the stored value.
func (s *Store) SaveTranslation(ctx context.Context, e cache.Entry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translation_cache (provider, source_lang, target_lang, text_hash, value, hits, created_at, last_used)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT (provider, source_lang, target_lang, text_hash)
		 DO UPDATE SET value = excluded.value, created_at = excluded.created_at, last_used = excluded.last_used`,
		e.Key.Provider, e.Key.SourceLang, e.Key.TargetLang, e.Key.TextHash, e.Value, created, created)
	return err
}

// ListTranslations returns cached translations, most recently used first.
// An empty provider lists every provider; limit <= 0 means no limit.
func (s *Store) ListTranslations(ctx context.Context, provider string, limit int) ([]CachedTranslation, error) {
	query := `SELECT provider, source_lang, target_lang, text_hash, value, hits, created_at, last_used FROM translation_cache`
	var args []interface{}
	if provider != "" {
		query += ` WHERE provider = ?`
		args = append(args, provider)
	}
	query += ` ORDER BY last_used DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []CachedTranslation
	for rows.Next() {
		var e CachedTranslation
		if err := rows.Scan(&e.Provider, &e.SourceLang, &e.TargetLang, &e.TextHash, &e.Value, &e.Hits, &e.CreatedAt, &e.LastUsed); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func (s *Store) CacheStats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{ByProvider: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, COUNT(*), COALESCE(SUM(hits), 0) FROM translation_cache GROUP BY provider ORDER BY provider`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var provider string
		var count, hits int
		if err := rows.Scan(&provider, &count, &hits); err != nil {
			return nil, err
		}
		stats.ByProvider[provider] = count
		stats.TotalEntries += count
		stats.TotalHits += hits
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.TotalEntries > 0 {
		oldest, err := s.cacheTime(ctx, "ASC")
		if err != nil {
			return nil, err
		}
		newest, err := s.cacheTime(ctx, "DESC")
		if err != nil {
			return nil, err
		}
		stats.Oldest, stats.Newest = oldest, newest
	}
	return stats, nil
}

func (s *Store) cacheTime(ctx context.Context, order string) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM translation_cache ORDER BY created_at `+order+` LIMIT 1`).Scan(&t)
	return t, err
}

// PruneCache deletes entries created before cutoff and reports how many
// were removed.
func (s *Store) PruneCache(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ClearCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_cache`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
