package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"planets-engine/internal/shared/database"
)

// State is the single scheduler row: when the last tick ran and how many
// ticks have run in total.
type State struct {
	LastTickAt database.Millis `db:"last_tick_at" json:"last_tick_at"`
	TickCount  int64           `db:"tick_count" json:"tick_count"`
}

type StateRepository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewStateRepository(db *database.DB, logger *slog.Logger) *StateRepository {
	logger.Debug("Initializing scheduler state repository")

	return &StateRepository{
		db:     db,
		logger: logger,
	}
}

func (r *StateRepository) getExecutor(tx *database.Tx) database.Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

// Get returns the recorded state, or nil before the first tick.
func (r *StateRepository) Get(ctx context.Context, tx *database.Tx) (*State, error) {
	exec := r.getExecutor(tx)

	var st State
	if err := exec.GetContext(ctx, &st, `SELECT last_tick_at, tick_count FROM scheduler_state WHERE id = 1`); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to load scheduler state",
			"component", "scheduler_state_repository",
			"operation", "get",
			"error", err)
		return nil, fmt.Errorf("failed to load scheduler state: %w", err)
	}
	return &st, nil
}

// Save records st unless a later tick has already been stored. It reports
// whether the row was written.
func (r *StateRepository) Save(ctx context.Context, st State, tx *database.Tx) (bool, error) {
	exec := r.getExecutor(tx)

	query := exec.Rebind(`
		INSERT INTO scheduler_state (id, last_tick_at, tick_count)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET last_tick_at = excluded.last_tick_at, tick_count = excluded.tick_count
		WHERE scheduler_state.last_tick_at <= excluded.last_tick_at`)

	res, err := exec.ExecContext(ctx, query, st.LastTickAt, st.TickCount)
	if err != nil {
		r.logger.Error("Failed to save scheduler state",
			"component", "scheduler_state_repository",
			"operation", "save",
			"tick_count", st.TickCount,
			"error", err)
		return false, fmt.Errorf("failed to save scheduler state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}
