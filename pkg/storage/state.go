package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yurykabanov/logrotate/pkg/domain"
)

const (
	stateUpsertQuery = `
		INSERT INTO rotation_states (target_path, last_rotated_at)
		VALUES (?, ?)
		ON CONFLICT (target_path) DO UPDATE SET last_rotated_at = excluded.last_rotated_at
	`

	stateSelectOneQuery = `
		SELECT target_path, last_rotated_at
		FROM rotation_states
		WHERE target_path = ?
	`

	stateSelectAllQuery = `
		SELECT target_path, last_rotated_at
		FROM rotation_states
		ORDER BY target_path
	`

	stateDeleteQuery = `
		DELETE FROM rotation_states
		WHERE target_path = ?
	`
)

// StateRepository keeps rotation state in a sql database. Every write goes
// straight to the database, so Flush has nothing to do.
type StateRepository struct {
	db *sqlx.DB
}

func NewStateRepository(db *sqlx.DB) *StateRepository {
	return &StateRepository{
		db: db,
	}
}

func (r *StateRepository) LastRotatedAt(ctx context.Context, targetPath string) (time.Time, bool, error) {
	var state domain.RotationState

	err := r.db.GetContext(ctx, &state, stateSelectOneQuery, targetPath)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	return state.LastRotatedAt, true, nil
}

func (r *StateRepository) RecordSuccess(ctx context.Context, targetPath string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, stateUpsertQuery, targetPath, at.UTC())
	return err
}

func (r *StateRepository) Prune(ctx context.Context, keep func(targetPath string) bool) error {
	states, err := r.All(ctx)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	for _, state := range states {
		if keep(state.TargetPath) {
			continue
		}

		_, err = tx.ExecContext(ctx, stateDeleteQuery, state.TargetPath)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (r *StateRepository) Flush(context.Context) error {
	return nil
}

func (r *StateRepository) All(ctx context.Context) ([]domain.RotationState, error) {
	var states []domain.RotationState

	err := r.db.SelectContext(ctx, &states, stateSelectAllQuery)
	if err != nil {
		return nil, err
	}

	return states, nil
}
