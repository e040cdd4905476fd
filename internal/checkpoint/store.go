// internal/checkpoint/store.go
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/SarthakGarg19/social-support-ai/internal/common/errors"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
)

// Store persists checkpoint records append-only. Records are never updated or
// deleted; the latest record for a run is the one with the highest seq.
type Store interface {
	Append(ctx context.Context, rec *models.CheckpointRecord) error
	Latest(ctx context.Context, runID string) (*models.CheckpointRecord, error)
	History(ctx context.Context, runID string) ([]models.CheckpointRecord, error)
}

// PostgresStore is the durable checkpoint store.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const insertCheckpointQuery = `
	INSERT INTO workflow_checkpoints (id, run_id, seq, stage, state, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

const latestCheckpointQuery = `
	SELECT id, run_id, seq, stage, state, created_at
	FROM workflow_checkpoints
	WHERE run_id = $1
	ORDER BY seq DESC
	LIMIT 1`

const historyCheckpointQuery = `
	SELECT id, run_id, seq, stage, state, created_at
	FROM workflow_checkpoints
	WHERE run_id = $1
	ORDER BY seq ASC`

func (s *PostgresStore) Append(ctx context.Context, rec *models.CheckpointRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	stateJSON, err := json.Marshal(rec.State)
	if err != nil {
		return errors.NewCheckpointWriteFailedError(rec.RunID, err)
	}

	_, err = s.db.ExecContext(ctx, insertCheckpointQuery,
		rec.ID, rec.RunID, rec.Seq, string(rec.Stage), stateJSON, rec.CreatedAt)
	if err != nil {
		return errors.NewCheckpointWriteFailedError(rec.RunID, err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, runID string) (*models.CheckpointRecord, error) {
	row := s.db.QueryRowContext(ctx, latestCheckpointQuery, runID)
	rec, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewCheckpointNotFoundError(runID)
	}
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	return rec, nil
}

func (s *PostgresStore) History(ctx context.Context, runID string) ([]models.CheckpointRecord, error) {
	rows, err := s.db.QueryContext(ctx, historyCheckpointQuery, runID)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer rows.Close()

	var records []models.CheckpointRecord
	for rows.Next() {
		rec, err := scanCheckpoint(rows)
		if err != nil {
			return nil, errors.NewDatabaseConnectionFailedError(err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCheckpoint(row rowScanner) (*models.CheckpointRecord, error) {
	var rec models.CheckpointRecord
	var stage string
	var stateJSON []byte

	if err := row.Scan(&rec.ID, &rec.RunID, &rec.Seq, &stage, &stateJSON, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Stage = models.Stage(stage)
	if err := json.Unmarshal(stateJSON, &rec.State); err != nil {
		return nil, err
	}
	return &rec, nil
}
