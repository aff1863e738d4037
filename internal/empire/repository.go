package empire

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"planets-engine/internal/shared/database"
	apperrors "planets-engine/internal/shared/errors"
)

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing empire repository")

	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) getExecutor(tx *database.Tx) database.Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *Repository) Create(ctx context.Context, e *Empire, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With(
		"component", "empire_repository",
		"operation", "create",
		"empire_id", e.ID,
		"name", e.Name,
	)
	logger.Info("Creating new empire")

	query := exec.Rebind(`
		INSERT INTO empires (id, name, role, credits, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)

	if _, err := exec.ExecContext(ctx, query, e.ID, e.Name, e.Role, e.Credits, e.CreatedAt, e.UpdatedAt); err != nil {
		logger.Error("Failed to create empire", "error", err)
		return fmt.Errorf("failed to create empire: %w", err)
	}

	logger.Info("Empire created successfully")
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string, tx *database.Tx) (*Empire, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "empire_repository", "operation", "get_by_id", "empire_id", id)

	var e Empire
	query := exec.Rebind(`SELECT id, name, role, credits, created_at, updated_at FROM empires WHERE id = ?`)
	if err := exec.GetContext(ctx, &e, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug("No empire found")
			return nil, apperrors.NotFound(apperrors.CodeEmpireNotFound, "empire not found")
		}
		logger.Error("Database error getting empire", "error", err)
		return nil, fmt.Errorf("failed to get empire: %w", err)
	}

	return &e, nil
}

func (r *Repository) GetAll(ctx context.Context) ([]Empire, error) {
	logger := r.logger.With("component", "empire_repository", "operation", "get_all")

	var empires []Empire
	query := `SELECT id, name, role, credits, created_at, updated_at FROM empires ORDER BY created_at DESC, id`
	if err := r.db.SelectContext(ctx, &empires, query); err != nil {
		logger.Error("Failed to query empires", "error", err)
		return nil, fmt.Errorf("failed to query empires: %w", err)
	}

	logger.Debug("Empires retrieved successfully", "count", len(empires))
	return empires, nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM empires`); err != nil {
		return 0, fmt.Errorf("failed to get empire count: %w", err)
	}
	return count, nil
}

// Debit subtracts amount only if the balance covers it. It reports false when
// the balance was too low and nothing changed. Negative amounts are refused.
func (r *Repository) Debit(ctx context.Context, id string, amount int64, now time.Time, tx *database.Tx) (bool, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "empire_repository", "operation", "debit", "empire_id", id, "amount", amount)

	if amount < 0 {
		logger.Warn("Refusing negative debit")
		return false, apperrors.Validationf("debit amount must not be negative, got %d", amount)
	}

	query := exec.Rebind(`
		UPDATE empires SET credits = credits - ?, updated_at = ?
		WHERE id = ? AND credits >= ?`)

	res, err := exec.ExecContext(ctx, query, amount, now.UnixMilli(), id, amount)
	if err != nil {
		logger.Error("Failed to debit credits", "error", err)
		return false, fmt.Errorf("failed to debit credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	logger.Debug("Debit applied", "debited", affected == 1)
	return affected == 1, nil
}

func (r *Repository) Credit(ctx context.Context, id string, amount int64, now time.Time, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "empire_repository", "operation", "credit", "empire_id", id, "amount", amount)

	query := exec.Rebind(`UPDATE empires SET credits = credits + ?, updated_at = ? WHERE id = ?`)
	res, err := exec.ExecContext(ctx, query, amount, now.UnixMilli(), id)
	if err != nil {
		logger.Error("Failed to credit empire", "error", err)
		return fmt.Errorf("failed to credit empire: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NotFound(apperrors.CodeEmpireNotFound, "empire not found")
	}

	logger.Debug("Credits added")
	return nil
}
