package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"planets-engine/internal/catalog"
	"planets-engine/internal/energy"
	"planets-engine/internal/shared/database"
	apperrors "planets-engine/internal/shared/errors"
)

const itemColumns = `id, identity_key, base_id, queue_kind, catalog_key, target_level, status,
	cost, duration_ms, elapsed_ms, last_tick_at, completed_at, cancelled_at, created_at, updated_at`

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing queue repository")

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

// ClaimIdentity records identityKey as the in-flight request for the base and
// kind. It reports false, without error, when another request already holds
// the claim. Inside a transaction the claim lives and dies with it.
func (r *Repository) ClaimIdentity(ctx context.Context, baseID string, kind catalog.Kind, identityKey string, now time.Time, tx *database.Tx) (bool, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With(
		"component", "queue_repository",
		"operation", "claim_identity",
		"base_id", baseID,
		"queue_kind", kind,
		"identity_key", identityKey,
	)

	query := exec.Rebind(`
		INSERT INTO queue_claims (base_id, queue_kind, identity_key, claimed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (base_id, queue_kind) DO NOTHING`)

	res, err := exec.ExecContext(ctx, query, baseID, kind, identityKey, now.UnixMilli())
	if err != nil {
		logger.Error("Failed to claim identity", "error", err)
		return false, fmt.Errorf("failed to claim identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	logger.Debug("Identity claim attempted", "claimed", affected == 1)
	return affected == 1, nil
}

func (r *Repository) ReleaseIdentity(ctx context.Context, baseID string, kind catalog.Kind, identityKey string, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	query := exec.Rebind(`DELETE FROM queue_claims WHERE base_id = ? AND queue_kind = ? AND identity_key = ?`)
	if _, err := exec.ExecContext(ctx, query, baseID, kind, identityKey); err != nil {
		r.logger.Error("Failed to release identity",
			"component", "queue_repository",
			"operation", "release_identity",
			"base_id", baseID,
			"identity_key", identityKey,
			"error", err)
		return fmt.Errorf("failed to release identity: %w", err)
	}
	return nil
}

// ClaimHolder returns the identity key currently holding the claim, or ""
// when the queue is free.
func (r *Repository) ClaimHolder(ctx context.Context, baseID string, kind catalog.Kind, tx *database.Tx) (string, error) {
	exec := r.getExecutor(tx)

	var key string
	query := exec.Rebind(`SELECT identity_key FROM queue_claims WHERE base_id = ? AND queue_kind = ?`)
	if err := exec.GetContext(ctx, &key, query, baseID, kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read claim: %w", err)
	}
	return key, nil
}

func (r *Repository) CreateItem(ctx context.Context, item *Item, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With(
		"component", "queue_repository",
		"operation", "create_item",
		"queue_item_id", item.ID,
		"base_id", item.BaseID,
	)

	query := exec.Rebind(`
		INSERT INTO queue_items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := exec.ExecContext(ctx, query,
		item.ID, item.IdentityKey, item.BaseID, item.Kind, item.CatalogKey, item.TargetLevel, item.Status,
		item.Cost, item.DurationMs, item.ElapsedMs, item.LastTickAt, item.CompletedAt, item.CancelledAt,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		logger.Error("Failed to create queue item", "error", err)
		return fmt.Errorf("failed to create queue item: %w", err)
	}

	logger.Debug("Queue item created")
	return nil
}

func (r *Repository) GetItem(ctx context.Context, id string, tx *database.Tx) (*Item, error) {
	exec := r.getExecutor(tx)

	var item Item
	query := exec.Rebind(`SELECT ` + itemColumns + ` FROM queue_items WHERE id = ?`)
	if err := exec.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(apperrors.CodeQueueItemNotFound, "queue item not found")
		}
		r.logger.Error("Failed to get queue item", "component", "queue_repository", "queue_item_id", id, "error", err)
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}
	return &item, nil
}

func (r *Repository) ListActiveByBase(ctx context.Context, baseID string, tx *database.Tx) ([]Item, error) {
	exec := r.getExecutor(tx)

	var items []Item
	query := exec.Rebind(`SELECT ` + itemColumns + ` FROM queue_items
		WHERE base_id = ? AND status = ? ORDER BY created_at, id`)
	if err := exec.SelectContext(ctx, &items, query, baseID, StatusQueued); err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	return items, nil
}

// ListActive returns every queued item across all bases in a stable order.
func (r *Repository) ListActive(ctx context.Context, tx *database.Tx) ([]Item, error) {
	exec := r.getExecutor(tx)

	var items []Item
	query := exec.Rebind(`SELECT ` + itemColumns + ` FROM queue_items WHERE status = ? ORDER BY created_at, id`)
	if err := exec.SelectContext(ctx, &items, query, StatusQueued); err != nil {
		return nil, fmt.Errorf("failed to list active queue items: %w", err)
	}
	return items, nil
}

// Advance stores new progress only if the item is still queued and nobody
// has ticked it since lastSeen.
func (r *Repository) Advance(ctx context.Context, id string, lastSeen time.Time, elapsedMs int64, now time.Time, tx *database.Tx) (bool, error) {
	exec := r.getExecutor(tx)

	query := exec.Rebind(`
		UPDATE queue_items SET elapsed_ms = ?, last_tick_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND last_tick_at = ?`)

	res, err := exec.ExecContext(ctx, query, elapsedMs, now.UnixMilli(), now.UnixMilli(), id, StatusQueued, lastSeen.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to advance queue item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

// Complete moves a queued item to completed under the same guard as Advance,
// so only one caller can ever complete it.
func (r *Repository) Complete(ctx context.Context, id string, lastSeen time.Time, elapsedMs int64, now time.Time, tx *database.Tx) (bool, error) {
	exec := r.getExecutor(tx)

	query := exec.Rebind(`
		UPDATE queue_items
		SET status = ?, elapsed_ms = ?, last_tick_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND last_tick_at = ?`)

	ms := now.UnixMilli()
	res, err := exec.ExecContext(ctx, query, StatusCompleted, elapsedMs, ms, ms, ms, id, StatusQueued, lastSeen.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to complete queue item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

func (r *Repository) Cancel(ctx context.Context, id string, now time.Time, tx *database.Tx) (bool, error) {
	exec := r.getExecutor(tx)

	query := exec.Rebind(`
		UPDATE queue_items SET status = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`)

	ms := now.UnixMilli()
	res, err := exec.ExecContext(ctx, query, StatusCancelled, ms, ms, id, StatusQueued)
	if err != nil {
		return false, fmt.Errorf("failed to cancel queue item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

func (r *Repository) CreateReservation(ctx context.Context, res *Reservation, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	query := exec.Rebind(`
		INSERT INTO energy_reservations (id, queue_item_id, base_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err := exec.ExecContext(ctx, query, res.ID, res.QueueItemID, res.BaseID, res.Amount, res.CreatedAt); err != nil {
		return fmt.Errorf("failed to create energy reservation: %w", err)
	}
	return nil
}

func (r *Repository) ReleaseReservation(ctx context.Context, queueItemID string, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	query := exec.Rebind(`DELETE FROM energy_reservations WHERE queue_item_id = ?`)
	if _, err := exec.ExecContext(ctx, query, queueItemID); err != nil {
		return fmt.Errorf("failed to release energy reservation: %w", err)
	}
	return nil
}

// Reservations returns the energy currently held by queued items on a base.
func (r *Repository) Reservations(ctx context.Context, baseID string, tx *database.Tx) ([]energy.Reservation, error) {
	exec := r.getExecutor(tx)

	var rows []Reservation
	query := exec.Rebind(`SELECT id, queue_item_id, base_id, amount, created_at
		FROM energy_reservations WHERE base_id = ? ORDER BY created_at, id`)
	if err := exec.SelectContext(ctx, &rows, query, baseID); err != nil {
		return nil, fmt.Errorf("failed to list energy reservations: %w", err)
	}

	out := make([]energy.Reservation, 0, len(rows))
	for _, row := range rows {
		out = append(out, energy.Reservation{QueueItemID: row.QueueItemID, Amount: row.Amount})
	}
	return out, nil
}
