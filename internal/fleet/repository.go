package fleet

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

const fleetColumns = `id, empire_id, home_base_id, name, coordinate, units_json, size, version, created_at, updated_at`

const movementColumns = `id, fleet_id, origin, destination, status, distance, fleet_speed, travel_time_hours,
	departure_at, estimated_arrival_at, actual_arrival_at, recall_at, recall_reason, created_at, updated_at`

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing fleet repository")

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

func (r *Repository) Create(ctx context.Context, f *Fleet, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With(
		"component", "fleet_repository",
		"operation", "create",
		"fleet_id", f.ID,
		"empire_id", f.EmpireID,
	)

	if f.Version == 0 {
		f.Version = 1
	}
	f.Size = f.Units.Total()

	query := exec.Rebind(`INSERT INTO fleets (` + fleetColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := exec.ExecContext(ctx, query,
		f.ID, f.EmpireID, f.HomeBaseID, f.Name, f.Coordinate, f.Units, f.Size, f.Version, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		logger.Error("Failed to create fleet", "error", err)
		return fmt.Errorf("failed to create fleet: %w", err)
	}

	logger.Info("Fleet created", "size", f.Size)
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string, tx *database.Tx) (*Fleet, error) {
	exec := r.getExecutor(tx)

	var f Fleet
	query := exec.Rebind(`SELECT ` + fleetColumns + ` FROM fleets WHERE id = ?`)
	if err := exec.GetContext(ctx, &f, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(apperrors.CodeFleetNotFound, "fleet not found")
		}
		r.logger.Error("Failed to get fleet",
			"component", "fleet_repository",
			"operation", "get_by_id",
			"fleet_id", id,
			"error", err)
		return nil, fmt.Errorf("failed to get fleet: %w", err)
	}

	if f.Units == nil {
		f.Units = database.Counts{}
	}
	return &f, nil
}

func (r *Repository) ListByEmpire(ctx context.Context, empireID string) ([]Fleet, error) {
	var fleets []Fleet
	query := r.db.Rebind(`SELECT ` + fleetColumns + ` FROM fleets WHERE empire_id = ? ORDER BY created_at, id`)
	if err := r.db.SelectContext(ctx, &fleets, query, empireID); err != nil {
		return nil, fmt.Errorf("failed to list fleets: %w", err)
	}
	return fleets, nil
}

// Update writes the fleet when its stored version still matches, then bumps
// the version.
func (r *Repository) Update(ctx context.Context, f *Fleet, now time.Time, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With(
		"component", "fleet_repository",
		"operation", "update",
		"fleet_id", f.ID,
		"version", f.Version,
	)

	f.Size = f.Units.Total()
	updatedAt := database.NewMillis(now)
	query := exec.Rebind(`
		UPDATE fleets
		SET name = ?, coordinate = ?, units_json = ?, size = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`)

	res, err := exec.ExecContext(ctx, query, f.Name, f.Coordinate, f.Units, f.Size, updatedAt, f.ID, f.Version)
	if err != nil {
		logger.Error("Failed to update fleet", "error", err)
		return fmt.Errorf("failed to update fleet: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		logger.Warn("Fleet version changed underneath update")
		return apperrors.Conflict(apperrors.CodeConcurrentModification, "fleet was modified concurrently")
	}

	f.Version++
	f.UpdatedAt = updatedAt
	return nil
}

// CreateMovement inserts a movement. The partial unique index on active
// movements rejects a second pending or travelling movement for the fleet.
func (r *Repository) CreateMovement(ctx context.Context, m *Movement, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With(
		"component", "fleet_repository",
		"operation", "create_movement",
		"movement_id", m.ID,
		"fleet_id", m.FleetID,
	)

	query := exec.Rebind(`
		INSERT INTO fleet_movements (` + movementColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := exec.ExecContext(ctx, query,
		m.ID, m.FleetID, m.Origin, m.Destination, m.Status, m.Distance, m.FleetSpeed, m.TravelTimeHours,
		m.DepartureAt, m.EstimatedArrivalAt, m.ActualArrivalAt, m.RecallAt, m.RecallReason,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			logger.Info("Fleet already has an active movement")
		} else {
			logger.Error("Failed to create movement", "error", err)
		}
		return fmt.Errorf("failed to create movement: %w", err)
	}
	return nil
}

func (r *Repository) GetMovement(ctx context.Context, id string, tx *database.Tx) (*Movement, error) {
	exec := r.getExecutor(tx)

	var m Movement
	query := exec.Rebind(`SELECT ` + movementColumns + ` FROM fleet_movements WHERE id = ?`)
	if err := exec.GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(apperrors.CodeMovementNotFound, "movement not found")
		}
		return nil, fmt.Errorf("failed to get movement: %w", err)
	}
	return &m, nil
}

// ActiveMovement returns the fleet's pending or travelling movement, or nil.
func (r *Repository) ActiveMovement(ctx context.Context, fleetID string, tx *database.Tx) (*Movement, error) {
	exec := r.getExecutor(tx)

	var m Movement
	query := exec.Rebind(`
		SELECT ` + movementColumns + ` FROM fleet_movements
		WHERE fleet_id = ? AND status IN ('pending', 'travelling')`)
	if err := exec.GetContext(ctx, &m, query, fleetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active movement: %w", err)
	}
	return &m, nil
}

// ListDue returns travelling movements whose estimated arrival is at or
// before now, oldest first.
func (r *Repository) ListDue(ctx context.Context, now time.Time, tx *database.Tx) ([]Movement, error) {
	exec := r.getExecutor(tx)

	var movements []Movement
	query := exec.Rebind(`
		SELECT ` + movementColumns + ` FROM fleet_movements
		WHERE status = ? AND estimated_arrival_at <= ?
		ORDER BY estimated_arrival_at, id`)
	if err := exec.SelectContext(ctx, &movements, query, StatusTravelling, now.UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to list due movements: %w", err)
	}
	return movements, nil
}

// Transition moves a movement from one status to another. It reports false
// when the movement is no longer in from, leaving the row untouched.
func (r *Repository) Transition(ctx context.Context, id string, from, to MovementStatus, now time.Time, tx *database.Tx) (bool, error) {
	exec := r.getExecutor(tx)
	stamp := database.NewMillis(now)

	var query string
	args := []interface{}{to, stamp}
	switch to {
	case StatusArrived:
		query = `UPDATE fleet_movements SET status = ?, updated_at = ?, actual_arrival_at = ? WHERE id = ? AND status = ?`
		args = append(args, stamp)
	default:
		query = `UPDATE fleet_movements SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	}
	args = append(args, id, from)

	return r.affectedOne(ctx, exec, exec.Rebind(query), "transition", id, args...)
}

// Recall marks a pending or travelling movement as recalled.
func (r *Repository) Recall(ctx context.Context, id string, reason *string, now time.Time, tx *database.Tx) (bool, error) {
	exec := r.getExecutor(tx)
	stamp := database.NewMillis(now)

	query := exec.Rebind(`
		UPDATE fleet_movements
		SET status = ?, recall_at = ?, recall_reason = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'travelling')`)

	return r.affectedOne(ctx, exec, query, "recall", id, StatusRecalled, stamp, reason, stamp, id)
}

func (r *Repository) affectedOne(ctx context.Context, exec database.Executor, query, operation, id string, args ...interface{}) (bool, error) {
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update movement",
			"component", "fleet_repository",
			"operation", operation,
			"movement_id", id,
			"error", err)
		return false, fmt.Errorf("failed to %s movement: %w", operation, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}
