package queue

import (
	"fmt"

	"planets-engine/internal/catalog"
	"planets-engine/internal/shared/database"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Item is one production order. ElapsedMs accumulates whole milliseconds
// between ticks; the item completes once it reaches DurationMs.
type Item struct {
	ID          string           `db:"id" json:"id"`
	IdentityKey string           `db:"identity_key" json:"identity_key"`
	BaseID      string           `db:"base_id" json:"base_id"`
	Kind        catalog.Kind     `db:"queue_kind" json:"kind"`
	CatalogKey  string           `db:"catalog_key" json:"catalog_key"`
	TargetLevel int              `db:"target_level" json:"target_level"`
	Status      Status           `db:"status" json:"status"`
	Cost        int64            `db:"cost" json:"cost"`
	DurationMs  int64            `db:"duration_ms" json:"duration_ms"`
	ElapsedMs   int64            `db:"elapsed_ms" json:"elapsed_ms"`
	LastTickAt  database.Millis  `db:"last_tick_at" json:"last_tick_at"`
	CompletedAt *database.Millis `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt *database.Millis `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt   database.Millis  `db:"created_at" json:"created_at"`
	UpdatedAt   database.Millis  `db:"updated_at" json:"updated_at"`
}

func (i *Item) RemainingMs() int64 {
	if remaining := i.DurationMs - i.ElapsedMs; remaining > 0 {
		return remaining
	}
	return 0
}

// IdentityKey derives the idempotency key of a request: the same base, kind
// and target always yield the same key.
func IdentityKey(baseID string, kind catalog.Kind, catalogKey string, target int) string {
	return fmt.Sprintf("%s:%s:%s:%d", baseID, kind, catalogKey, target)
}

type Reservation struct {
	ID          string          `db:"id"`
	QueueItemID string          `db:"queue_item_id"`
	BaseID      string          `db:"base_id"`
	Amount      int             `db:"amount"`
	CreatedAt   database.Millis `db:"created_at"`
}
