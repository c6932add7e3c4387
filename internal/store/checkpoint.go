package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocCheckpoint represents a polish-doc job's checkpoint record.
type DocCheckpoint struct {
	ID         string
	InputFile  string
	OutputFile string
	Provider   string
	Status     string
	CreatedAt  time.Time
}

// CreateDocCheckpoint creates a new checkpoint record and returns its ID.
func (s *Store) CreateDocCheckpoint(ctx context.Context, inputFile, outputFile, provider string) (string, error) {
	id := "cp_" + uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO doc_checkpoints (id, input_file, output_file, provider) VALUES (?, ?, ?, ?)`,
		id, inputFile, outputFile, provider)
	return id, err
}

// GetDocCheckpoint retrieves a checkpoint by ID.
func (s *Store) GetDocCheckpoint(ctx context.Context, checkpointID string) (*DocCheckpoint, error) {
	var cp DocCheckpoint
	err := s.db.QueryRowContext(ctx,
		`SELECT id, input_file, output_file, provider, status, created_at FROM doc_checkpoints WHERE id = ?`,
		checkpointID).Scan(&cp.ID, &cp.InputFile, &cp.OutputFile, &cp.Provider, &cp.Status, &cp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checkpoint %s: %w", checkpointID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// SaveDocRecord persists the finished report entry for one input record.
func (s *Store) SaveDocRecord(ctx context.Context, checkpointID string, idx int, payload string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO doc_checkpoint_records (checkpoint_id, record_idx, payload) VALUES (?, ?, ?)`,
		checkpointID, idx, payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE doc_checkpoints SET updated_at = ? WHERE id = ?`, time.Now(), checkpointID)
	return err
}

// GetDocRecords returns every saved report entry for a checkpoint keyed by
// record index.
func (s *Store) GetDocRecords(ctx context.Context, checkpointID string) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_idx, payload FROM doc_checkpoint_records WHERE checkpoint_id = ?`,
		checkpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make(map[int]string)
	for rows.Next() {
		var idx int
		var payload string
		if err := rows.Scan(&idx, &payload); err != nil {
			return nil, err
		}
		records[idx] = payload
	}
	return records, rows.Err()
}

// CompleteDocCheckpoint marks a checkpoint as completed.
func (s *Store) CompleteDocCheckpoint(ctx context.Context, checkpointID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE doc_checkpoints SET status = 'completed', updated_at = ? WHERE id = ?`,
		time.Now(), checkpointID)
	return err
}
