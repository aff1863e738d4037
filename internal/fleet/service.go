package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"planets-engine/internal/base"
	"planets-engine/internal/catalog"
	"planets-engine/internal/events"
	"planets-engine/internal/shared/clock"
	"planets-engine/internal/shared/database"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/spatial"

	"github.com/google/uuid"
)

// Service forms fleets and runs the movement lifecycle. Estimates and
// dispatches share one planning path so the two can never disagree.
type Service struct {
	db             *database.DB
	repo           *Repository
	bases          *base.Repository
	catalog        *catalog.Catalog
	metric         spatial.Metric
	minTravelHours float64
	events         events.Publisher
	clock          clock.Clock
	logger         *slog.Logger
}

type ServiceDeps struct {
	DB             *database.DB
	Repo           *Repository
	Bases          *base.Repository
	Catalog        *catalog.Catalog
	Metric         spatial.Metric
	MinTravelHours float64
	Events         events.Publisher
	Clock          clock.Clock
	Logger         *slog.Logger
}

func NewService(deps ServiceDeps) *Service {
	deps.Logger.Debug("Initializing fleet service")

	if deps.Events == nil {
		deps.Events = events.Discard{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	return &Service{
		db:             deps.DB,
		repo:           deps.Repo,
		bases:          deps.Bases,
		catalog:        deps.Catalog,
		metric:         deps.Metric,
		minTravelHours: deps.MinTravelHours,
		events:         deps.Events,
		clock:          deps.Clock,
		logger:         deps.Logger,
	}
}

// Form moves units out of a base's stock into a new fleet stationed at the
// base coordinate.
func (s *Service) Form(ctx context.Context, baseID, name string, units database.Counts) (*Fleet, error) {
	logger := s.logger.With(
		"component", "fleet_service",
		"operation", "form",
		"base_id", baseID,
	)

	if units.Total() == 0 {
		return nil, errors.ValidationCode(errors.CodeEmptyFleet, "a fleet needs at least one unit")
	}
	for key, count := range units {
		if count < 0 {
			return nil, errors.Validationf("unit count for %q cannot be negative", key)
		}
		entry, ok := s.catalog.Get(key)
		if !ok || entry.Kind != catalog.KindUnit {
			return nil, errors.Validationf("%q is not a unit", key)
		}
	}

	now := s.clock.Now()
	var fleet *Fleet

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		b, err := s.bases.GetByID(ctx, baseID, tx)
		if err != nil {
			return errors.OrInternal("failed to load base", err)
		}

		var reasons []string
		for _, key := range units.Keys() {
			if have := b.Units[key]; have < units[key] {
				reasons = append(reasons, fmt.Sprintf("requires %d %s, base has %d", units[key], key, have))
			}
		}
		if len(reasons) > 0 {
			return errors.NotEligible(reasons)
		}

		for _, key := range units.Keys() {
			b.Units[key] -= units[key]
			if b.Units[key] == 0 {
				delete(b.Units, key)
			}
		}
		if err := s.bases.Update(ctx, b, now, tx); err != nil {
			return errors.OrInternal("failed to update base", err)
		}

		fleetName := strings.TrimSpace(name)
		if fleetName == "" {
			fleetName = "Fleet " + b.Coordinate
		}
		stamp := database.NewMillis(now)
		homeBase := b.ID
		fleet = &Fleet{
			ID:         uuid.NewString(),
			EmpireID:   b.EmpireID,
			HomeBaseID: &homeBase,
			Name:       fleetName,
			Coordinate: b.Coordinate,
			Units:      positive(units),
			CreatedAt:  stamp,
			UpdatedAt:  stamp,
		}
		if err := s.repo.Create(ctx, fleet, tx); err != nil {
			return errors.WrapInternal("failed to create fleet", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Fleet formed", "fleet_id", fleet.ID, "size", fleet.Size)
	return fleet, nil
}

func (s *Service) GetFleet(ctx context.Context, id string) (*View, error) {
	f, err := s.repo.GetByID(ctx, id, nil)
	if err != nil {
		return nil, errors.OrInternal("failed to load fleet", err)
	}
	active, err := s.repo.ActiveMovement(ctx, id, nil)
	if err != nil {
		return nil, errors.WrapInternal("failed to load movement", err)
	}
	return &View{Fleet: f, ActiveMovement: active}, nil
}

func (s *Service) ListEmpireFleets(ctx context.Context, empireID string) ([]Fleet, error) {
	fleets, err := s.repo.ListByEmpire(ctx, empireID)
	if err != nil {
		return nil, errors.WrapInternal("failed to list fleets", err)
	}
	if fleets == nil {
		fleets = []Fleet{}
	}
	return fleets, nil
}

// EstimateTravel projects a trip without changing any state.
func (s *Service) EstimateTravel(ctx context.Context, fleetID string, destination spatial.Coordinate) (*Estimate, error) {
	f, err := s.repo.GetByID(ctx, fleetID, nil)
	if err != nil {
		return nil, errors.OrInternal("failed to load fleet", err)
	}
	_, estimate, err := s.plan(f, destination)
	if err != nil {
		return nil, err
	}
	return estimate, nil
}

// plan validates a trip for f and computes its figures.
func (s *Service) plan(f *Fleet, destination spatial.Coordinate) (spatial.Coordinate, *Estimate, error) {
	if err := destination.Validate(); err != nil {
		return spatial.Coordinate{}, nil, errors.ValidationCode(errors.CodeInvalidCoordinate, err.Error())
	}
	if f.Units.Total() == 0 {
		return spatial.Coordinate{}, nil, errors.ValidationCode(errors.CodeEmptyFleet, "fleet has no units")
	}

	origin, err := spatial.ParseCoordinate(f.Coordinate)
	if err != nil {
		return spatial.Coordinate{}, nil, errors.WrapInternal("fleet has a malformed coordinate", err)
	}
	if origin == destination {
		return spatial.Coordinate{}, nil, errors.ValidationCode(errors.CodeSameLocation,
			fmt.Sprintf("fleet is already at %s", origin))
	}

	speed, err := CalculateFleetSpeed(f.Units, s.catalog)
	if err != nil {
		return spatial.Coordinate{}, nil, errors.Validation(err.Error())
	}
	distance := s.metric.CalculateDistance(origin, destination)

	return origin, &Estimate{
		TravelTimeHours: CalculateTravelTime(distance, speed, s.minTravelHours),
		Distance:        distance,
		FleetSpeed:      speed,
	}, nil
}

// Dispatch starts a movement toward destination. The movement is written as
// pending and promoted to travelling in the same transaction.
func (s *Service) Dispatch(ctx context.Context, fleetID string, destination spatial.Coordinate) (*Movement, error) {
	logger := s.logger.With(
		"component", "fleet_service",
		"operation", "dispatch",
		"fleet_id", fleetID,
		"destination", destination.String(),
	)

	now := s.clock.Now()
	var movement *Movement
	var empireID string

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		f, err := s.repo.GetByID(ctx, fleetID, tx)
		if err != nil {
			return errors.OrInternal("failed to load fleet", err)
		}
		empireID = f.EmpireID

		active, err := s.repo.ActiveMovement(ctx, fleetID, tx)
		if err != nil {
			return errors.WrapInternal("failed to load movement", err)
		}
		if active != nil {
			return errors.Conflict(errors.CodeAlreadyMoving, "fleet is already moving")
		}

		origin, estimate, err := s.plan(f, destination)
		if err != nil {
			return err
		}

		stamp := database.NewMillis(now)
		movement = &Movement{
			ID:                 uuid.NewString(),
			FleetID:            fleetID,
			Origin:             origin.String(),
			Destination:        destination.String(),
			Status:             StatusPending,
			Distance:           estimate.Distance,
			FleetSpeed:         estimate.FleetSpeed,
			TravelTimeHours:    estimate.TravelTimeHours,
			DepartureAt:        stamp,
			EstimatedArrivalAt: database.NewMillis(now.Add(TravelDuration(estimate.TravelTimeHours))),
			CreatedAt:          stamp,
			UpdatedAt:          stamp,
		}
		if err := s.repo.CreateMovement(ctx, movement, tx); err != nil {
			return err
		}

		promoted, err := s.repo.Transition(ctx, movement.ID, StatusPending, StatusTravelling, now, tx)
		if err != nil {
			return errors.WrapInternal("failed to start movement", err)
		}
		if !promoted {
			return errors.WrapInternal("failed to start movement", fmt.Errorf("movement %s left pending", movement.ID))
		}
		movement.Status = StatusTravelling
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errors.Conflict(errors.CodeAlreadyMoving, "fleet is already moving")
		}
		return nil, errors.OrInternal("failed to dispatch fleet", err)
	}

	logger.Info("Fleet dispatched",
		"movement_id", movement.ID,
		"distance", movement.Distance,
		"travel_time_hours", movement.TravelTimeHours)

	s.events.Publish(events.Event{
		Type:      events.MovementDispatched,
		EmpireID:  empireID,
		SubjectID: movement.ID,
		FleetID:   fleetID,
		At:        now,
		Data: map[string]interface{}{
			"origin":               movement.Origin,
			"destination":          movement.Destination,
			"estimated_arrival_at": movement.EstimatedArrivalAt.UnixMilli(),
		},
	})
	return movement, nil
}

// Recall stops a pending or travelling movement. The fleet stays at its
// origin and elapsed travel time is not returned.
func (s *Service) Recall(ctx context.Context, movementID, reason string) (*Movement, error) {
	logger := s.logger.With(
		"component", "fleet_service",
		"operation", "recall",
		"movement_id", movementID,
	)

	now := s.clock.Now()
	var movement *Movement
	var empireID string

	var reasonPtr *string
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		reasonPtr = &trimmed
	}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		movement, err = s.repo.GetMovement(ctx, movementID, tx)
		if err != nil {
			return errors.OrInternal("failed to load movement", err)
		}
		if !movement.Status.CanTransition(StatusRecalled) {
			return errors.Conflict(errors.CodeInvalidState,
				fmt.Sprintf("movement is %s and can no longer be recalled", movement.Status))
		}

		recalled, err := s.repo.Recall(ctx, movementID, reasonPtr, now, tx)
		if err != nil {
			return errors.WrapInternal("failed to recall movement", err)
		}
		if !recalled {
			return errors.Conflict(errors.CodeInvalidState, "movement finished before it could be recalled")
		}

		f, err := s.repo.GetByID(ctx, movement.FleetID, tx)
		if err != nil {
			return errors.OrInternal("failed to load fleet", err)
		}
		empireID = f.EmpireID
		return nil
	})
	if err != nil {
		return nil, err
	}

	stamp := database.NewMillis(now)
	movement.Status = StatusRecalled
	movement.RecallAt = &stamp
	movement.RecallReason = reasonPtr
	movement.UpdatedAt = stamp

	logger.Info("Movement recalled", "fleet_id", movement.FleetID)
	s.events.Publish(events.Event{
		Type:      events.MovementRecalled,
		EmpireID:  empireID,
		SubjectID: movement.ID,
		FleetID:   movement.FleetID,
		At:        now,
		Data:      map[string]interface{}{"reason": reason},
	})
	return movement, nil
}

// ArriveDue completes every travelling movement whose ETA is at or before
// now and moves its fleet to the destination. Each arrival commits on its
// own; a movement recalled in the meantime is skipped.
func (s *Service) ArriveDue(ctx context.Context, now time.Time) ([]Movement, error) {
	logger := s.logger.With("component", "fleet_service", "operation", "arrive_due")

	due, err := s.repo.ListDue(ctx, now, nil)
	if err != nil {
		return nil, err
	}

	var arrived []Movement
	for i := range due {
		m := due[i]
		var empireID string
		var outcome MovementStatus

		err := s.db.WithTx(ctx, func(tx *database.Tx) error {
			f, err := s.repo.GetByID(ctx, m.FleetID, tx)
			if err != nil {
				return err
			}
			empireID = f.EmpireID

			outcome = StatusArrived
			if _, parseErr := spatial.ParseCoordinate(m.Destination); parseErr != nil {
				outcome = StatusFailed
			}

			ok, err := s.repo.Transition(ctx, m.ID, StatusTravelling, outcome, now, tx)
			if err != nil || !ok {
				outcome = ""
				return err
			}
			if outcome == StatusFailed {
				return nil
			}

			f.Coordinate = m.Destination
			return s.repo.Update(ctx, f, now, tx)
		})
		if err != nil {
			logger.Error("Failed to complete movement", "movement_id", m.ID, "error", err)
			continue
		}
		if outcome == "" {
			continue
		}
		if outcome == StatusFailed {
			logger.Warn("Movement failed on arrival", "movement_id", m.ID, "destination", m.Destination)
			continue
		}

		stamp := database.NewMillis(now)
		m.Status = StatusArrived
		m.ActualArrivalAt = &stamp
		m.UpdatedAt = stamp
		arrived = append(arrived, m)

		s.events.Publish(events.Event{
			Type:      events.MovementArrived,
			EmpireID:  empireID,
			SubjectID: m.ID,
			FleetID:   m.FleetID,
			At:        now,
			Data:      map[string]interface{}{"destination": m.Destination},
		})
	}

	if len(arrived) > 0 {
		logger.Info("Movements arrived", "count", len(arrived))
	}
	return arrived, nil
}

// OwnerOf resolves the empire owning a fleet.
func (s *Service) OwnerOf(ctx context.Context, fleetID string) (string, error) {
	f, err := s.repo.GetByID(ctx, fleetID, nil)
	if err != nil {
		return "", errors.OrInternal("failed to load fleet", err)
	}
	return f.EmpireID, nil
}

// MovementOwner resolves the empire owning a movement's fleet.
func (s *Service) MovementOwner(ctx context.Context, movementID string) (string, error) {
	m, err := s.repo.GetMovement(ctx, movementID, nil)
	if err != nil {
		return "", errors.OrInternal("failed to load movement", err)
	}
	return s.OwnerOf(ctx, m.FleetID)
}

func positive(units database.Counts) database.Counts {
	out := database.Counts{}
	for _, key := range units.Keys() {
		out[key] = units[key]
	}
	return out
}
