package spatial

import (
	"math"

	"planets-engine/internal/shared/config"
)

// Metric weighs each level of the hierarchy when measuring distance.
type Metric struct {
	RegionWeight float64
	SystemWeight float64
	BodyWeight   float64
}

func DefaultMetric() Metric {
	return Metric{RegionWeight: 10, SystemWeight: 1, BodyWeight: 0.2}
}

func MetricFromConfig(cfg config.MovementConfig) Metric {
	return Metric{
		RegionWeight: cfg.RegionWeight,
		SystemWeight: cfg.SystemWeight,
		BodyWeight:   cfg.BodyWeight,
	}
}

// CalculateDistance sums the weighted grid distance between regions, the
// weighted grid distance between systems, and the weighted body offset. It is
// symmetric and zero only when both coordinates are equal.
func (m Metric) CalculateDistance(origin, destination Coordinate) float64 {
	return m.RegionWeight*gridDistance(origin.Region, destination.Region) +
		m.SystemWeight*gridDistance(origin.System, destination.System) +
		m.BodyWeight*math.Abs(float64(origin.Body-destination.Body))
}

func gridDistance(a, b int) float64 {
	ax, ay := GridPosition(a)
	bx, by := GridPosition(b)
	return math.Hypot(float64(ax-bx), float64(ay-by))
}
