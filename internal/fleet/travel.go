package fleet

import (
	"fmt"
	"math"
	"time"

	"planets-engine/internal/catalog"
	"planets-engine/internal/shared/database"
)

// CalculateFleetSpeed returns the speed of the slowest unit type present in
// units. An empty composition has speed 0.
func CalculateFleetSpeed(units database.Counts, cat *catalog.Catalog) (float64, error) {
	speed := 0.0
	for _, key := range units.Keys() {
		entry, ok := cat.Get(key)
		if !ok || entry.Kind != catalog.KindUnit {
			return 0, fmt.Errorf("%q is not a unit", key)
		}
		if entry.Speed <= 0 {
			return 0, fmt.Errorf("unit %q cannot move", key)
		}
		if speed == 0 || entry.Speed < speed {
			speed = entry.Speed
		}
	}
	return speed, nil
}

// CalculateTravelTime converts a distance into hours at speed, never
// returning less than minHours.
func CalculateTravelTime(distance, speed, minHours float64) float64 {
	if speed <= 0 {
		return math.Inf(1)
	}
	return math.Max(minHours, distance/speed)
}

// TravelDuration converts hours to a duration rounded to the millisecond.
func TravelDuration(hours float64) time.Duration {
	return time.Duration(math.Round(hours*float64(time.Hour)/float64(time.Millisecond))) * time.Millisecond
}
