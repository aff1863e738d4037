// Package eligibility decides whether a production request may start on a
// base and how long it will take. It only reads state.
package eligibility

import (
	"fmt"
	"math"
	"sort"

	"planets-engine/internal/base"
	"planets-engine/internal/catalog"
	"planets-engine/internal/energy"
	"planets-engine/internal/shared/config"
)

// Request is a production action. TargetLevel is the level to reach for
// structures and techs, and the quantity to build for units and defenses.
type Request struct {
	Kind        catalog.Kind `json:"kind"`
	CatalogKey  string       `json:"catalogKey"`
	TargetLevel int          `json:"targetLevel"`
}

type Result struct {
	CanStart    bool     `json:"canStart"`
	Reasons     []string `json:"reasons"`
	EtaMs       int64    `json:"etaMs,omitempty"`
	Cost        int64    `json:"cost"`
	DurationMs  int64    `json:"durationMs"`
	EnergyDelta int      `json:"energyDelta"`
	// Balance is the net energy seen before the request, after queued
	// reservations when accounting is enabled.
	Balance energy.Balance `json:"balance"`
}

// Subject is the state a request is evaluated against.
type Subject struct {
	Base         *base.Base
	Credits      int64
	Reservations []energy.Reservation
}

type Service struct {
	catalog   *catalog.Catalog
	energy    *energy.Calculator
	threshold float64
	floor     float64
	maxBatch  int
}

func NewService(cat *catalog.Catalog, calc *energy.Calculator, cfg config.QueueConfig) *Service {
	return &Service{
		catalog:   cat,
		energy:    calc,
		threshold: cfg.SaturationThreshold,
		floor:     cfg.SaturationFloor,
		maxBatch:  cfg.MaxBatch,
	}
}

// CheckEligibility evaluates every constraint and reports each one that
// fails. CanStart is true exactly when Reasons is empty.
func (s *Service) CheckEligibility(subject Subject, req Request) Result {
	res := Result{Reasons: []string{}}
	b := subject.Base

	entry, ok := s.catalog.Get(req.CatalogKey)
	if !ok {
		res.Reasons = append(res.Reasons, fmt.Sprintf("unknown catalog entry %q", req.CatalogKey))
		return res
	}
	if entry.Kind != req.Kind {
		res.Reasons = append(res.Reasons, fmt.Sprintf("%s is a %s, not a %s", entry.Name, entry.Kind, req.Kind))
		return res
	}

	current := b.Level(req.Kind, entry.Key)
	units := s.checkTarget(&res, entry, current, req.TargetLevel)
	s.checkPrerequisites(&res, b, entry)

	// Energy, capacity and cost are evaluated for the requested step.
	ctx := s.energy.ContextFor(b.Environment)
	res.Balance = s.energy.ComputeEnergyBalance(b.EnergyLevels(), ctx, subject.Reservations)
	if units > 0 {
		from, to := current, current+units
		if entry.Kind.Leveled() {
			from, to = req.TargetLevel-1, req.TargetLevel
		}
		res.EnergyDelta = s.energy.Delta(entry, from, to, ctx)
	}
	if !energy.CanStartWithDelta(res.Balance.Net, res.EnergyDelta, res.EnergyDelta >= 0) {
		res.Reasons = append(res.Reasons, fmt.Sprintf(
			"insufficient energy: requires %d, available %d", -res.EnergyDelta, res.Balance.Net))
	}

	capacity := b.Capacity(s.catalog)
	needArea := entry.Area * units
	needPopulation := entry.Population * units
	if capacity.UsedArea+needArea > capacity.AreaCapacity {
		res.Reasons = append(res.Reasons, fmt.Sprintf(
			"insufficient area: requires %d, available %d", needArea, capacity.AreaCapacity-capacity.UsedArea))
	}
	if capacity.UsedPopulation+needPopulation > capacity.PopulationCap {
		res.Reasons = append(res.Reasons, fmt.Sprintf(
			"insufficient population: requires %d, available %d", needPopulation, capacity.PopulationCap-capacity.UsedPopulation))
	}

	if req.TargetLevel > 0 && (units > 0 || req.Kind.Leveled()) {
		res.Cost = entry.CostFor(req.TargetLevel)
		res.DurationMs = entry.DurationFor(req.TargetLevel)
	}
	if res.Cost > subject.Credits {
		res.Reasons = append(res.Reasons, fmt.Sprintf(
			"insufficient credits: requires %d, available %d", res.Cost, subject.Credits))
	}

	res.CanStart = len(res.Reasons) == 0
	if res.CanStart {
		multiplier := s.ProductionRateMultiplier(b, req.Kind) *
			s.saturationFactor(capacity, needArea, needPopulation)
		res.EtaMs = int64(math.Ceil(float64(res.DurationMs) / multiplier))
	}
	return res
}

// checkTarget validates the requested level or quantity and returns how many
// levels or items the request adds.
func (s *Service) checkTarget(res *Result, entry catalog.Entry, current, target int) int {
	switch entry.Kind {
	case catalog.KindStructure, catalog.KindTech:
		if target != current+1 {
			res.Reasons = append(res.Reasons, fmt.Sprintf(
				"target level %d must be the next level of %s (current %d)", target, entry.Name, current))
		}
		if entry.MaxLevel > 0 && target > entry.MaxLevel {
			res.Reasons = append(res.Reasons, fmt.Sprintf(
				"%s is capped at level %d", entry.Name, entry.MaxLevel))
		}
		if target > current {
			return 1
		}
		return 0
	case catalog.KindUnit, catalog.KindDefense:
		if target < 1 {
			res.Reasons = append(res.Reasons, "quantity must be at least 1")
			return 0
		}
		if s.maxBatch > 0 && target > s.maxBatch {
			res.Reasons = append(res.Reasons, fmt.Sprintf(
				"quantity %d exceeds the batch limit of %d", target, s.maxBatch))
			return 0
		}
		return target
	default:
		res.Reasons = append(res.Reasons, fmt.Sprintf("unsupported queue kind %v", entry.Kind))
		return 0
	}
}

func (s *Service) checkPrerequisites(res *Result, b *base.Base, entry catalog.Entry) {
	keys := make([]string, 0, len(entry.Requires))
	for key := range entry.Requires {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		dep, _ := s.catalog.Get(key)
		have := b.Level(dep.Kind, key)
		if need := entry.Requires[key]; have < need {
			res.Reasons = append(res.Reasons, fmt.Sprintf(
				"requires %s level %d (current %d)", dep.Name, need, have))
		}
	}
}

// ProductionRateMultiplier is 1 plus the boost every built structure grants
// to kind. Structures are summed in key order so the result is stable.
func (s *Service) ProductionRateMultiplier(b *base.Base, kind catalog.Kind) float64 {
	multiplier := 1.0
	for _, key := range b.Structures.Keys() {
		level := b.Structures[key]
		entry, ok := s.catalog.Get(key)
		if !ok || level <= 0 {
			continue
		}
		multiplier += float64(level) * entry.Boosts[kind.String()]
	}
	return multiplier
}

// saturationFactor slows production once the base would be close to full.
// Above the threshold the factor falls linearly to the floor at full usage.
func (s *Service) saturationFactor(c base.Capacity, needArea, needPopulation int) float64 {
	ratio := math.Max(
		usage(c.UsedArea+needArea, c.AreaCapacity),
		usage(c.UsedPopulation+needPopulation, c.PopulationCap),
	)
	if ratio <= s.threshold || s.threshold >= 1 {
		return 1
	}
	span := (math.Min(ratio, 1) - s.threshold) / (1 - s.threshold)
	return math.Max(s.floor, 1-span*(1-s.floor))
}

func usage(used, capacity int) float64 {
	if capacity <= 0 {
		if used > 0 {
			return 1
		}
		return 0
	}
	return float64(used) / float64(capacity)
}
