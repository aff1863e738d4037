package fleet

import (
	"planets-engine/internal/shared/database"
)

type Fleet struct {
	ID         string          `db:"id" json:"id"`
	EmpireID   string          `db:"empire_id" json:"empire_id"`
	HomeBaseID *string         `db:"home_base_id" json:"home_base_id,omitempty"`
	Name       string          `db:"name" json:"name"`
	Coordinate string          `db:"coordinate" json:"coordinate"`
	Units      database.Counts `db:"units_json" json:"units"`
	Size       int             `db:"size" json:"size"`
	Version    int64           `db:"version" json:"version"`
	CreatedAt  database.Millis `db:"created_at" json:"created_at"`
	UpdatedAt  database.Millis `db:"updated_at" json:"updated_at"`
}

type MovementStatus string

const (
	StatusPending    MovementStatus = "pending"
	StatusTravelling MovementStatus = "travelling"
	StatusArrived    MovementStatus = "arrived"
	StatusRecalled   MovementStatus = "recalled"
	StatusFailed     MovementStatus = "failed"
)

func (s MovementStatus) IsTerminal() bool {
	switch s {
	case StatusArrived, StatusRecalled, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a movement may move from s to next. Status
// only ever moves forward: pending, then travelling, then a terminal state.
func (s MovementStatus) CanTransition(next MovementStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusTravelling || next == StatusRecalled || next == StatusFailed
	case StatusTravelling:
		return next == StatusArrived || next == StatusRecalled || next == StatusFailed
	default:
		return false
	}
}

type Movement struct {
	ID                 string           `db:"id" json:"id"`
	FleetID            string           `db:"fleet_id" json:"fleet_id"`
	Origin             string           `db:"origin" json:"origin"`
	Destination        string           `db:"destination" json:"destination"`
	Status             MovementStatus   `db:"status" json:"status"`
	Distance           float64          `db:"distance" json:"distance"`
	FleetSpeed         float64          `db:"fleet_speed" json:"fleet_speed"`
	TravelTimeHours    float64          `db:"travel_time_hours" json:"travel_time_hours"`
	DepartureAt        database.Millis  `db:"departure_at" json:"departure_at"`
	EstimatedArrivalAt database.Millis  `db:"estimated_arrival_at" json:"estimated_arrival_at"`
	ActualArrivalAt    *database.Millis `db:"actual_arrival_at" json:"actual_arrival_at,omitempty"`
	RecallAt           *database.Millis `db:"recall_at" json:"recall_at,omitempty"`
	RecallReason       *string          `db:"recall_reason" json:"recall_reason,omitempty"`
	CreatedAt          database.Millis  `db:"created_at" json:"created_at"`
	UpdatedAt          database.Millis  `db:"updated_at" json:"updated_at"`
}

// Estimate is the projected cost of a trip. Dispatch stores exactly these
// figures on the movement it creates.
type Estimate struct {
	TravelTimeHours float64 `json:"travelTimeHours"`
	Distance        float64 `json:"distance"`
	FleetSpeed      float64 `json:"fleetSpeed"`
}

// View is a fleet with its in-flight movement, if any.
type View struct {
	*Fleet
	ActiveMovement *Movement `json:"active_movement"`
}
