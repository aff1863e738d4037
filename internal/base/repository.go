package base

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

const baseColumns = `id, empire_id, name, coordinate, environment, total_area, population,
	structures_json, techs_json, units_json, defenses_json, energy_produced, energy_consumed,
	version, created_at, updated_at`

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing base repository")

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

func (r *Repository) Create(ctx context.Context, b *Base, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With(
		"component", "base_repository",
		"operation", "create",
		"base_id", b.ID,
		"empire_id", b.EmpireID,
	)
	logger.Debug("Creating base")

	if b.Version == 0 {
		b.Version = 1
	}
	b.ensureMaps()

	query := exec.Rebind(`
		INSERT INTO bases (` + baseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := exec.ExecContext(ctx, query,
		b.ID, b.EmpireID, b.Name, b.Coordinate, b.Environment, b.TotalArea, b.Population,
		b.Structures, b.Techs, b.Units, b.Defenses, b.EnergyProduced, b.EnergyConsumed,
		b.Version, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		logger.Error("Failed to create base", "error", err)
		return fmt.Errorf("failed to create base: %w", err)
	}

	logger.Info("Base created")
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string, tx *database.Tx) (*Base, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "base_repository", "operation", "get_by_id", "base_id", id)

	var b Base
	query := exec.Rebind(`SELECT ` + baseColumns + ` FROM bases WHERE id = ?`)
	if err := exec.GetContext(ctx, &b, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(apperrors.CodeBaseNotFound, "base not found")
		}
		logger.Error("Failed to get base", "error", err)
		return nil, fmt.Errorf("failed to get base: %w", err)
	}

	b.ensureMaps()
	return &b, nil
}

func (r *Repository) ListByEmpire(ctx context.Context, empireID string) ([]Base, error) {
	logger := r.logger.With("component", "base_repository", "operation", "list_by_empire", "empire_id", empireID)

	var bases []Base
	query := r.db.Rebind(`SELECT ` + baseColumns + ` FROM bases WHERE empire_id = ? ORDER BY created_at, id`)
	if err := r.db.SelectContext(ctx, &bases, query, empireID); err != nil {
		logger.Error("Failed to list bases", "error", err)
		return nil, fmt.Errorf("failed to list bases: %w", err)
	}

	for i := range bases {
		bases[i].ensureMaps()
	}
	logger.Debug("Bases retrieved", "count", len(bases))
	return bases, nil
}

// ListAll returns every base ordered by id.
func (r *Repository) ListAll(ctx context.Context, tx *database.Tx) ([]Base, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "base_repository", "operation", "list_all")

	var bases []Base
	if err := exec.SelectContext(ctx, &bases, `SELECT `+baseColumns+` FROM bases ORDER BY id`); err != nil {
		logger.Error("Failed to list bases", "error", err)
		return nil, fmt.Errorf("failed to list bases: %w", err)
	}

	for i := range bases {
		bases[i].ensureMaps()
	}
	return bases, nil
}

// Update writes every mutable column when the stored version still matches
// b.Version, then bumps the version. A stale version returns a
// CONCURRENT_MODIFICATION conflict and leaves the row untouched.
func (r *Repository) Update(ctx context.Context, b *Base, now time.Time, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With(
		"component", "base_repository",
		"operation", "update",
		"base_id", b.ID,
		"version", b.Version,
	)

	updatedAt := database.NewMillis(now)
	query := exec.Rebind(`
		UPDATE bases
		SET name = ?, total_area = ?, population = ?,
			structures_json = ?, techs_json = ?, units_json = ?, defenses_json = ?,
			energy_produced = ?, energy_consumed = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`)

	res, err := exec.ExecContext(ctx, query,
		b.Name, b.TotalArea, b.Population,
		b.Structures, b.Techs, b.Units, b.Defenses,
		b.EnergyProduced, b.EnergyConsumed,
		updatedAt, b.ID, b.Version,
	)
	if err != nil {
		logger.Error("Failed to update base", "error", err)
		return fmt.Errorf("failed to update base: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		logger.Warn("Base version changed underneath update")
		return apperrors.Conflict(apperrors.CodeConcurrentModification, "base was modified concurrently")
	}

	b.Version++
	b.UpdatedAt = updatedAt
	logger.Debug("Base updated", "new_version", b.Version)
	return nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM bases`); err != nil {
		return 0, fmt.Errorf("failed to count bases: %w", err)
	}
	return count, nil
}
