// Package scheduler advances production and movements over time. Each tick
// moves every queued item forward by the milliseconds since it was last
// seen, completes the ones that are done exactly once, and lands fleets
// whose arrival time has passed.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"planets-engine/internal/base"
	"planets-engine/internal/catalog"
	"planets-engine/internal/energy"
	"planets-engine/internal/events"
	"planets-engine/internal/fleet"
	"planets-engine/internal/queue"
	"planets-engine/internal/shared/clock"
	"planets-engine/internal/shared/database"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/snapshot"
)

type Completion struct {
	QueueItemID string       `json:"queue_item_id"`
	BaseID      string       `json:"base_id"`
	Kind        catalog.Kind `json:"kind"`
	CatalogKey  string       `json:"catalog_key"`
	TargetLevel int          `json:"target_level"`
}

type TickReport struct {
	At         time.Time    `json:"at"`
	TickCount  int64        `json:"tick_count"`
	Advanced   int          `json:"advanced"`
	Completed  []Completion `json:"completed"`
	Arrived    int          `json:"arrived"`
	SnapshotID string       `json:"snapshot_id,omitempty"`
}

type Deps struct {
	DB            *database.DB
	Queue         *queue.Repository
	Bases         *base.Repository
	Energy        *energy.Calculator
	Fleets        *fleet.Service
	State         *StateRepository
	Snapshots     *snapshot.Store
	Leader        Leader
	Events        events.Publisher
	Clock         clock.Clock
	Interval      time.Duration
	SnapshotEvery int
	Logger        *slog.Logger
}

type Scheduler struct {
	db            *database.DB
	queue         *queue.Repository
	bases         *base.Repository
	energy        *energy.Calculator
	fleets        *fleet.Service
	state         *StateRepository
	snapshots     *snapshot.Store
	leader        Leader
	events        events.Publisher
	clock         clock.Clock
	interval      time.Duration
	snapshotEvery int
	logger        *slog.Logger

	// mu keeps ticks from overlapping inside one process.
	mu sync.Mutex
}

func New(deps Deps) *Scheduler {
	deps.Logger.Debug("Initializing scheduler")

	if deps.Leader == nil {
		deps.Leader = LocalLeader{}
	}
	if deps.Events == nil {
		deps.Events = events.Discard{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Minute
	}
	return &Scheduler{
		db:            deps.DB,
		queue:         deps.Queue,
		bases:         deps.Bases,
		energy:        deps.Energy,
		fleets:        deps.Fleets,
		state:         deps.State,
		snapshots:     deps.Snapshots,
		leader:        deps.Leader,
		events:        deps.Events,
		clock:         deps.Clock,
		interval:      deps.Interval,
		snapshotEvery: deps.SnapshotEvery,
		logger:        deps.Logger.With("component", "scheduler"),
	}
}

// Run ticks on every interval until ctx is cancelled. Ticks only run while
// this instance holds leadership.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.leader.Release(releaseCtx); err != nil {
			s.logger.Warn("Failed to release leadership", "error", err)
		}
		s.logger.Info("Scheduler stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			leader, err := s.leader.Acquire(ctx)
			if err != nil {
				s.logger.Error("Leader check failed", "error", err)
				continue
			}
			if !leader {
				s.logger.Debug("Another instance holds leadership, skipping tick")
				continue
			}
			if _, err := s.TickNow(ctx); err != nil {
				s.logger.Error("Tick failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) TickNow(ctx context.Context) (*TickReport, error) {
	return s.Tick(ctx, s.clock.Now())
}

// Tick advances all state to now. A now earlier than the last recorded tick
// is refused; repeating the same now does nothing new.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (*TickReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now = now.UTC().Truncate(time.Millisecond)
	logger := s.logger.With("operation", "tick", "now", now.UnixMilli())

	st, err := s.state.Get(ctx, nil)
	if err != nil {
		return nil, errors.WrapInternal("failed to load scheduler state", err)
	}
	if st != nil && now.Before(st.LastTickAt.Time) {
		return nil, errors.Validationf("tick at %s precedes the last tick at %s",
			now.Format(time.RFC3339Nano), st.LastTickAt.Format(time.RFC3339Nano))
	}

	report := &TickReport{At: now, Completed: []Completion{}}

	items, err := s.queue.ListActive(ctx, nil)
	if err != nil {
		return nil, errors.WrapInternal("failed to list queue items", err)
	}
	for i := range items {
		item := &items[i]
		delta := now.Sub(item.LastTickAt.Time).Milliseconds()
		if delta <= 0 {
			continue
		}

		elapsed := item.ElapsedMs + delta
		if elapsed < item.DurationMs {
			advanced, err := s.queue.Advance(ctx, item.ID, item.LastTickAt.Time, elapsed, now, nil)
			if err != nil {
				logger.Error("Failed to advance queue item", "queue_item_id", item.ID, "error", err)
				continue
			}
			if advanced {
				report.Advanced++
			}
			continue
		}

		completed, err := s.complete(ctx, item, elapsed, now)
		if err != nil {
			logger.Error("Failed to complete queue item", "queue_item_id", item.ID, "error", err)
			continue
		}
		if completed {
			report.Completed = append(report.Completed, Completion{
				QueueItemID: item.ID,
				BaseID:      item.BaseID,
				Kind:        item.Kind,
				CatalogKey:  item.CatalogKey,
				TargetLevel: item.TargetLevel,
			})
		}
	}

	if s.fleets != nil {
		arrived, err := s.fleets.ArriveDue(ctx, now)
		if err != nil {
			logger.Error("Failed to process arrivals", "error", err)
		}
		report.Arrived = len(arrived)
	}

	next := State{LastTickAt: database.NewMillis(now), TickCount: 1}
	if st != nil {
		next.TickCount = st.TickCount + 1
	}
	saved, err := s.state.Save(ctx, next, nil)
	if err != nil {
		return nil, errors.WrapInternal("failed to save scheduler state", err)
	}
	if !saved {
		logger.Warn("A later tick was recorded concurrently")
	}
	report.TickCount = next.TickCount

	if s.snapshots != nil && s.snapshotEvery > 0 && next.TickCount%int64(s.snapshotEvery) == 0 {
		if id, err := s.snapshot(ctx, next.TickCount, now); err != nil {
			logger.Error("Failed to capture snapshot", "error", err)
		} else {
			report.SnapshotID = id
		}
	}

	logger.Info("Tick applied",
		"tick_count", report.TickCount,
		"advanced", report.Advanced,
		"completed", len(report.Completed),
		"arrived", report.Arrived)
	return report, nil
}

// complete finishes item in one transaction: status, reservation, claim and
// the effect on the base. It reports false when another tick or a cancel got
// there first.
func (s *Scheduler) complete(ctx context.Context, item *queue.Item, elapsed int64, now time.Time) (bool, error) {
	var completed bool
	var empireID string

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		ok, err := s.queue.Complete(ctx, item.ID, item.LastTickAt.Time, elapsed, now, tx)
		if err != nil || !ok {
			return err
		}

		if err := s.queue.ReleaseReservation(ctx, item.ID, tx); err != nil {
			return err
		}
		if err := s.queue.ReleaseIdentity(ctx, item.BaseID, item.Kind, item.IdentityKey, tx); err != nil {
			return err
		}

		b, err := s.bases.GetByID(ctx, item.BaseID, tx)
		if err != nil {
			return err
		}
		if err := b.ApplyCompletion(item.Kind, item.CatalogKey, item.TargetLevel); err != nil {
			return err
		}
		b.RefreshEnergy(s.energy)
		if err := s.bases.Update(ctx, b, now, tx); err != nil {
			return err
		}

		completed = true
		empireID = b.EmpireID
		return nil
	})
	if err != nil || !completed {
		return false, err
	}

	s.events.Publish(events.Event{
		Type:      events.QueueCompleted,
		EmpireID:  empireID,
		SubjectID: item.ID,
		BaseID:    item.BaseID,
		At:        now,
		Data: map[string]interface{}{
			"kind":         item.Kind.String(),
			"catalog_key":  item.CatalogKey,
			"target_level": item.TargetLevel,
		},
	})
	return true, nil
}

func (s *Scheduler) snapshot(ctx context.Context, tick int64, now time.Time) (string, error) {
	bases, err := s.bases.ListAll(ctx, nil)
	if err != nil {
		return "", err
	}
	snap, err := s.snapshots.Capture(ctx, tick, now, bases, nil)
	if err != nil {
		return "", err
	}
	return snap.ID, nil
}
