package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/valpere/dzerkalo/internal"
)

// SavePolish stores a completed polish and its per-provider outcomes in one
// transaction.
func (s *Store) SavePolish(ctx context.Context, rec internal.PolishRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO polish_requests (id, original_text, provider_selection, context_hint, summary, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OriginalText, rec.ProviderSelection, rec.ContextHint, rec.Summary, ts); err != nil {
		return fmt.Errorf("insert polish request: %w", err)
	}

	for _, o := range rec.Outcomes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO polish_results (request_id, provider, intermediate_text, final_text, preferred, original_score, rewritten_score, analysis, error, error_kind, latency_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, o.Provider, o.IntermediateText, o.FinalText, o.Preferred,
			nullFloat(o.OriginalScore), nullFloat(o.RewrittenScore),
			o.Analysis, o.Error, o.ErrorKind, o.Latency.Milliseconds()); err != nil {
			return fmt.Errorf("insert outcome for %s: %w", o.Provider, err)
		}
	}

	return tx.Commit()
}

// GetPolish loads one polish by id. It returns ErrNotFound for an unknown id.
func (s *Store) GetPolish(ctx context.Context, id string) (*internal.PolishRecord, error) {
	var rec internal.PolishRecord
	var hint, summary sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, original_text, provider_selection, context_hint, summary, created_at FROM polish_requests WHERE id = ?`,
		id).Scan(&rec.ID, &rec.OriginalText, &rec.ProviderSelection, &hint, &summary, &rec.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("polish %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	rec.ContextHint, rec.Summary = hint.String, summary.String

	rec.Outcomes, err = s.outcomes(ctx, id)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListPolishes returns the most recent polishes first, without outcomes.
func (s *Store) ListPolishes(ctx context.Context, limit int) ([]internal.PolishRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, original_text, provider_selection, created_at FROM polish_requests ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.PolishRecord
	for rows.Next() {
		var rec internal.PolishRecord
		if err := rows.Scan(&rec.ID, &rec.OriginalText, &rec.ProviderSelection, &rec.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) outcomes(ctx context.Context, id string) ([]internal.ProviderOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, intermediate_text, final_text, preferred, original_score, rewritten_score, analysis, error, error_kind, latency_ms
		 FROM polish_results WHERE request_id = ? ORDER BY provider`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ProviderOutcome
	for rows.Next() {
		var o internal.ProviderOutcome
		var inter, final, pref, analysis, errMsg, errKind sql.NullString
		var origScore, rewScore sql.NullFloat64
		var latencyMs int64
		if err := rows.Scan(&o.Provider, &inter, &final, &pref, &origScore, &rewScore, &analysis, &errMsg, &errKind, &latencyMs); err != nil {
			return nil, err
		}
		o.IntermediateText, o.FinalText, o.Preferred = inter.String, final.String, pref.String
		o.Analysis, o.Error, o.ErrorKind = analysis.String, errMsg.String, errKind.String
		if origScore.Valid {
			v := origScore.Float64
			o.OriginalScore = &v
		}
		if rewScore.Valid {
			v := rewScore.Float64
			o.RewrittenScore = &v
		}
		o.Latency = time.Duration(latencyMs) * time.Millisecond
		out = append(out, o)
	}
	return out, rows.Err()
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
