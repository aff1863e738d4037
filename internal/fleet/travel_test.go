package fleet

import (
	"math"
	"testing"
	"time"

	"planets-engine/internal/catalog"
	"planets-engine/internal/shared/database"
)

func TestCalculateFleetSpeedUsesSlowestUnit(t *testing.T) {
	cat, err := catalog.LoadDefault()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	tests := []struct {
		name    string
		units   database.Counts
		want    float64
		wantErr bool
	}{
		{name: "single type", units: database.Counts{"corvette": 4}, want: 8},
		{name: "mixed", units: database.Counts{"corvette": 4, "fighter": 10, "outpost_ship": 1}, want: 3},
		{name: "zero counts ignored", units: database.Counts{"corvette": 2, "outpost_ship": 0}, want: 8},
		{name: "empty", units: database.Counts{}, want: 0},
		{name: "structure is not a unit", units: database.Counts{"shipyard": 1}, wantErr: true},
		{name: "unknown key", units: database.Counts{"dreadnought": 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateFleetSpeed(tt.units, cat)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("speed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateTravelTimeMonotonic(t *testing.T) {
	const floor = 0.05

	prev := 0.0
	for distance := 0.0; distance <= 200; distance += 0.5 {
		got := CalculateTravelTime(distance, 4, floor)
		if got < prev {
			t.Fatalf("travel time fell from %v to %v at distance %v", prev, got, distance)
		}
		if got < floor {
			t.Fatalf("travel time %v below floor at distance %v", got, distance)
		}
		prev = got
	}

	prev = math.Inf(1)
	for speed := 0.5; speed <= 20; speed += 0.5 {
		got := CalculateTravelTime(42, speed, floor)
		if got > prev {
			t.Fatalf("travel time rose from %v to %v at speed %v", prev, got, speed)
		}
		prev = got
	}

	if got := CalculateTravelTime(0, 5, floor); got != floor {
		t.Fatalf("zero distance = %v, want floor %v", got, floor)
	}
	if got := CalculateTravelTime(10, 0, floor); !math.IsInf(got, 1) {
		t.Fatalf("zero speed = %v, want +Inf", got)
	}
}

func TestTravelDuration(t *testing.T) {
	if got := TravelDuration(0.5); got != 30*time.Minute {
		t.Fatalf("TravelDuration(0.5) = %v", got)
	}
	if got := TravelDuration(1.0 / 3); got != 20*time.Minute {
		t.Fatalf("TravelDuration(1/3) = %v", got)
	}
}

func TestMovementTransitions(t *testing.T) {
	allowed := map[MovementStatus][]MovementStatus{
		StatusPending:    {StatusTravelling, StatusRecalled, StatusFailed},
		StatusTravelling: {StatusArrived, StatusRecalled, StatusFailed},
	}
	all := []MovementStatus{StatusPending, StatusTravelling, StatusArrived, StatusRecalled, StatusFailed}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
		if from.IsTerminal() == (len(allowed[from]) > 0) {
			t.Errorf("%s IsTerminal = %v", from, from.IsTerminal())
		}
	}
}
