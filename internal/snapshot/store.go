package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"planets-engine/internal/base"
	"planets-engine/internal/shared/database"

	"github.com/google/uuid"
)

const snapshotColumns = `id, tick_count, taken_at, base_count, hash, prev_hash, state_blob`

type Store struct {
	db     *database.DB
	logger *slog.Logger
}

func NewStore(db *database.DB, logger *slog.Logger) *Store {
	logger.Debug("Initializing snapshot store")

	return &Store{
		db:     db,
		logger: logger,
	}
}

func (s *Store) getExecutor(tx *database.Tx) database.Executor {
	if tx != nil {
		return tx
	}
	return s.db
}

// Capture appends a snapshot of bases to the chain.
func (s *Store) Capture(ctx context.Context, tick int64, at time.Time, bases []base.Base, tx *database.Tx) (*Snapshot, error) {
	exec := s.getExecutor(tx)
	logger := s.logger.With(
		"component", "snapshot_store",
		"operation", "capture",
		"tick_count", tick,
	)

	blob, err := Encode(tick, at, bases)
	if err != nil {
		logger.Error("Failed to encode snapshot", "error", err)
		return nil, err
	}

	prev, err := s.latest(ctx, exec)
	if err != nil {
		return nil, err
	}
	prevHash := GenesisHash
	if prev != nil {
		prevHash = prev.Hash
	}

	snap := &Snapshot{
		ID:        uuid.NewString(),
		TickCount: tick,
		TakenAt:   database.NewMillis(at),
		BaseCount: len(bases),
		Hash:      ChainHash(blob, prevHash),
		PrevHash:  prevHash,
		StateBlob: blob,
	}

	query := exec.Rebind(`INSERT INTO ledger_snapshots (` + snapshotColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := exec.ExecContext(ctx, query,
		snap.ID, snap.TickCount, snap.TakenAt, snap.BaseCount, snap.Hash, snap.PrevHash, snap.StateBlob); err != nil {
		logger.Error("Failed to store snapshot", "error", err)
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}

	logger.Info("Ledger snapshot captured",
		"snapshot_id", snap.ID,
		"bases", snap.BaseCount,
		"bytes", len(blob),
		"hash", snap.Hash)
	return snap, nil
}

func (s *Store) Latest(ctx context.Context) (*Snapshot, error) {
	return s.latest(ctx, s.db)
}

func (s *Store) latest(ctx context.Context, exec database.Executor) (*Snapshot, error) {
	var snap Snapshot
	query := `SELECT ` + snapshotColumns + ` FROM ledger_snapshots ORDER BY tick_count DESC, taken_at DESC LIMIT 1`
	if err := exec.GetContext(ctx, &snap, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	return &snap, nil
}

// Verify walks the chain from the first snapshot and checks every link and
// hash. It returns the number of snapshots verified.
func (s *Store) Verify(ctx context.Context) (int, error) {
	var chain []Snapshot
	query := `SELECT ` + snapshotColumns + ` FROM ledger_snapshots ORDER BY tick_count, taken_at`
	if err := s.db.SelectContext(ctx, &chain, query); err != nil {
		return 0, fmt.Errorf("failed to load snapshots: %w", err)
	}

	prevHash := GenesisHash
	for i, snap := range chain {
		if snap.PrevHash != prevHash {
			return i, fmt.Errorf("snapshot %s at tick %d does not link to its predecessor", snap.ID, snap.TickCount)
		}
		if got := ChainHash(snap.StateBlob, snap.PrevHash); got != snap.Hash {
			return i, fmt.Errorf("snapshot %s at tick %d has hash %s, stored %s", snap.ID, snap.TickCount, got, snap.Hash)
		}
		prevHash = snap.Hash
	}
	return len(chain), nil
}
