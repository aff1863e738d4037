package queue

import (
	"context"
	"fmt"
	"log/slog"

	"planets-engine/internal/base"
	"planets-engine/internal/eligibility"
	"planets-engine/internal/empire"
	"planets-engine/internal/energy"
	"planets-engine/internal/events"
	"planets-engine/internal/shared/clock"
	"planets-engine/internal/shared/database"
	"planets-engine/internal/shared/errors"

	"github.com/google/uuid"
)

// Manager accepts and cancels production requests. Every write it performs
// for one request commits or rolls back as a unit, claim included.
type Manager struct {
	db            *database.DB
	repo          *Repository
	bases         *base.Repository
	empires       *empire.Repository
	eligibility   *eligibility.Service
	events        events.Publisher
	clock         clock.Clock
	refundPercent int
	logger        *slog.Logger
}

type ManagerDeps struct {
	DB            *database.DB
	Repo          *Repository
	Bases         *base.Repository
	Empires       *empire.Repository
	Eligibility   *eligibility.Service
	Events        events.Publisher
	Clock         clock.Clock
	RefundPercent int
	Logger        *slog.Logger
}

func NewManager(deps ManagerDeps) *Manager {
	deps.Logger.Debug("Initializing queue manager")

	if deps.Events == nil {
		deps.Events = events.Discard{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	return &Manager{
		db:            deps.DB,
		repo:          deps.Repo,
		bases:         deps.Bases,
		empires:       deps.Empires,
		eligibility:   deps.Eligibility,
		events:        deps.Events,
		clock:         deps.Clock,
		refundPercent: deps.RefundPercent,
		logger:        deps.Logger,
	}
}

// Enqueue claims the request's identity, checks eligibility and, when the
// request may start, creates the queued item, its energy reservation and
// the credit debit. A held claim yields ALREADY_IN_PROGRESS; a failed check
// yields NOT_ELIGIBLE with every reason and leaves the identity free.
func (m *Manager) Enqueue(ctx context.Context, baseID string, req eligibility.Request) (*Item, error) {
	identityKey := IdentityKey(baseID, req.Kind, req.CatalogKey, req.TargetLevel)
	logger := m.logger.With(
		"component", "queue_manager",
		"operation", "enqueue",
		"base_id", baseID,
		"queue_kind", req.Kind,
		"catalog_key", req.CatalogKey,
		"identity_key", identityKey,
	)

	if !req.Kind.IsValid() {
		return nil, errors.Validationf("unknown queue kind %v", req.Kind)
	}

	now := m.clock.Now()
	var item *Item
	var empireID string

	err := m.db.WithTx(ctx, func(tx *database.Tx) error {
		claimed, err := m.repo.ClaimIdentity(ctx, baseID, req.Kind, identityKey, now, tx)
		if err != nil {
			return errors.WrapInternal("failed to claim queue identity", err)
		}
		if !claimed {
			holder, _ := m.repo.ClaimHolder(ctx, baseID, req.Kind, tx)
			logger.Info("Queue already has an item in flight", "holder", holder)
			return errors.Conflict(errors.CodeAlreadyInProgress,
				fmt.Sprintf("%s queue already has an item in progress", req.Kind))
		}

		b, err := m.bases.GetByID(ctx, baseID, tx)
		if err != nil {
			return errors.OrInternal("failed to load base", err)
		}
		owner, err := m.empires.GetByID(ctx, b.EmpireID, tx)
		if err != nil {
			return errors.OrInternal("failed to load empire", err)
		}
		reservations, err := m.repo.Reservations(ctx, baseID, tx)
		if err != nil {
			return errors.WrapInternal("failed to load reservations", err)
		}

		result := m.eligibility.CheckEligibility(eligibility.Subject{
			Base:         b,
			Credits:      owner.Credits,
			Reservations: reservations,
		}, req)
		if !result.CanStart {
			return errors.NotEligible(result.Reasons)
		}

		debited, err := m.empires.Debit(ctx, owner.ID, result.Cost, now, tx)
		if err != nil {
			return errors.WrapInternal("failed to debit credits", err)
		}
		if !debited {
			return errors.NotEligible([]string{"insufficient credits"})
		}

		stamp := database.NewMillis(now)
		item = &Item{
			ID:          uuid.NewString(),
			IdentityKey: identityKey,
			BaseID:      baseID,
			Kind:        req.Kind,
			CatalogKey:  req.CatalogKey,
			TargetLevel: req.TargetLevel,
			Status:      StatusQueued,
			Cost:        result.Cost,
			DurationMs:  result.EtaMs,
			LastTickAt:  stamp,
			CreatedAt:   stamp,
			UpdatedAt:   stamp,
		}
		if err := m.repo.CreateItem(ctx, item, tx); err != nil {
			return errors.WrapInternal("failed to create queue item", err)
		}

		if err := m.repo.CreateReservation(ctx, &Reservation{
			ID:          uuid.NewString(),
			QueueItemID: item.ID,
			BaseID:      baseID,
			Amount:      result.EnergyDelta,
			CreatedAt:   stamp,
		}, tx); err != nil {
			return errors.WrapInternal("failed to reserve energy", err)
		}

		// Bumping the base version serialises this request against other
		// writers of the same base ledger.
		if err := m.bases.Update(ctx, b, now, tx); err != nil {
			return errors.OrInternal("failed to update base", err)
		}

		empireID = owner.ID
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errors.Conflict(errors.CodeAlreadyInProgress,
				fmt.Sprintf("%s queue already has an item in progress", req.Kind))
		}
		return nil, err
	}

	logger.Info("Queue item accepted",
		"queue_item_id", item.ID,
		"cost", item.Cost,
		"duration_ms", item.DurationMs)

	m.events.Publish(events.Event{
		Type:      events.QueueEnqueued,
		EmpireID:  empireID,
		SubjectID: item.ID,
		BaseID:    baseID,
		At:        now,
		Data: map[string]interface{}{
			"kind":         item.Kind.String(),
			"catalog_key":  item.CatalogKey,
			"target_level": item.TargetLevel,
			"duration_ms":  item.DurationMs,
		},
	})
	return item, nil
}

// Cancel stops a queued item, releases its reservation and claim, and
// refunds the configured share of its cost.
func (m *Manager) Cancel(ctx context.Context, itemID string) (*Item, int64, error) {
	logger := m.logger.With(
		"component", "queue_manager",
		"operation", "cancel",
		"queue_item_id", itemID,
	)

	now := m.clock.Now()
	var item *Item
	var refund int64
	var empireID string

	err := m.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		item, err = m.repo.GetItem(ctx, itemID, tx)
		if err != nil {
			return errors.OrInternal("failed to load queue item", err)
		}
		if item.Status != StatusQueued {
			return errors.Conflict(errors.CodeInvalidState,
				fmt.Sprintf("queue item is %s and can no longer be cancelled", item.Status))
		}

		cancelled, err := m.repo.Cancel(ctx, itemID, now, tx)
		if err != nil {
			return errors.WrapInternal("failed to cancel queue item", err)
		}
		if !cancelled {
			return errors.Conflict(errors.CodeInvalidState, "queue item finished before it could be cancelled")
		}

		if err := m.repo.ReleaseReservation(ctx, itemID, tx); err != nil {
			return errors.WrapInternal("failed to release reservation", err)
		}
		if err := m.repo.ReleaseIdentity(ctx, item.BaseID, item.Kind, item.IdentityKey, tx); err != nil {
			return errors.WrapInternal("failed to release queue identity", err)
		}

		b, err := m.bases.GetByID(ctx, item.BaseID, tx)
		if err != nil {
			return errors.OrInternal("failed to load base", err)
		}
		empireID = b.EmpireID

		refund = RefundFor(item.Cost, m.refundPercent)
		if refund > 0 {
			if err := m.empires.Credit(ctx, b.EmpireID, refund, now, tx); err != nil {
				return errors.OrInternal("failed to refund credits", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	stamp := database.NewMillis(now)
	item.Status = StatusCancelled
	item.CancelledAt = &stamp
	item.UpdatedAt = stamp

	logger.Info("Queue item cancelled", "refund", refund)
	m.events.Publish(events.Event{
		Type:      events.QueueCancelled,
		EmpireID:  empireID,
		SubjectID: item.ID,
		BaseID:    item.BaseID,
		At:        now,
		Data: map[string]interface{}{
			"kind":        item.Kind.String(),
			"catalog_key": item.CatalogKey,
			"refund":      refund,
		},
	})
	return item, refund, nil
}

// RefundFor returns percent of cost, rounded down and clamped to 0-100%.
func RefundFor(cost int64, percent int) int64 {
	if percent <= 0 || cost <= 0 {
		return 0
	}
	if percent > 100 {
		percent = 100
	}
	return cost * int64(percent) / 100
}

// CheckEligibility evaluates a request against current state without
// claiming or reserving anything.
func (m *Manager) CheckEligibility(ctx context.Context, baseID string, req eligibility.Request) (eligibility.Result, error) {
	b, err := m.bases.GetByID(ctx, baseID, nil)
	if err != nil {
		return eligibility.Result{}, errors.OrInternal("failed to load base", err)
	}
	owner, err := m.empires.GetByID(ctx, b.EmpireID, nil)
	if err != nil {
		return eligibility.Result{}, errors.OrInternal("failed to load empire", err)
	}
	reservations, err := m.repo.Reservations(ctx, baseID, nil)
	if err != nil {
		return eligibility.Result{}, errors.WrapInternal("failed to load reservations", err)
	}

	return m.eligibility.CheckEligibility(eligibility.Subject{
		Base:         b,
		Credits:      owner.Credits,
		Reservations: reservations,
	}, req), nil
}

type EnergyReport struct {
	BaseID       string               `json:"base_id"`
	Environment  string               `json:"environment"`
	Balance      energy.Balance       `json:"balance"`
	Reservations []energy.Reservation `json:"reservations"`
	Accounting   bool                 `json:"reservation_accounting"`
}

func (m *Manager) Energy(ctx context.Context, baseID string, calc *energy.Calculator) (*EnergyReport, error) {
	b, err := m.bases.GetByID(ctx, baseID, nil)
	if err != nil {
		return nil, errors.OrInternal("failed to load base", err)
	}
	reservations, err := m.repo.Reservations(ctx, baseID, nil)
	if err != nil {
		return nil, errors.WrapInternal("failed to load reservations", err)
	}

	return &EnergyReport{
		BaseID:       b.ID,
		Environment:  b.Environment,
		Balance:      calc.ComputeEnergyBalance(b.EnergyLevels(), calc.ContextFor(b.Environment), reservations),
		Reservations: reservations,
		Accounting:   calc.ReservationAccounting(),
	}, nil
}

func (m *Manager) ListActive(ctx context.Context, baseID string) ([]Item, error) {
	if _, err := m.bases.GetByID(ctx, baseID, nil); err != nil {
		return nil, errors.OrInternal("failed to load base", err)
	}
	items, err := m.repo.ListActiveByBase(ctx, baseID, nil)
	if err != nil {
		return nil, errors.WrapInternal("failed to list queue items", err)
	}
	return items, nil
}

func (m *Manager) GetItem(ctx context.Context, id string) (*Item, error) {
	item, err := m.repo.GetItem(ctx, id, nil)
	if err != nil {
		return nil, errors.OrInternal("failed to load queue item", err)
	}
	return item, nil
}

// OwnerOf resolves the empire owning a queue item.
func (m *Manager) OwnerOf(ctx context.Context, itemID string) (string, error) {
	item, err := m.GetItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	b, err := m.bases.GetByID(ctx, item.BaseID, nil)
	if err != nil {
		return "", errors.OrInternal("failed to load base", err)
	}
	return b.EmpireID, nil
}
