// Package energy computes a base's energy balance from its structure and
// defense levels. Everything here is a pure function of its inputs and safe
// for concurrent use.
package energy

import (
	"math"
	"sort"

	"planets-engine/internal/catalog"
)

// Reservation is energy held by a queued item. Negative amounts are
// consumption that has not been built yet.
type Reservation struct {
	QueueItemID string `json:"queue_item_id"`
	Amount      int    `json:"amount"`
}

// Context carries the per-base multipliers applied to linked entries.
type Context struct {
	Environment string
	Multipliers map[string]float64
}

func (c Context) multiplier(link string) float64 {
	if link == "" {
		return 1
	}
	if m, ok := c.Multipliers[link]; ok {
		return m
	}
	return 1
}

type Balance struct {
	Produced            int `json:"produced"`
	Consumed            int `json:"consumed"`
	Net                 int `json:"net"`
	ReservedConsumption int `json:"reserved_consumption"`
}

type Calculator struct {
	catalog       *catalog.Catalog
	reserveQueued bool
}

// NewCalculator returns a calculator over cat. When reserveQueued is false,
// reservations passed to ComputeEnergyBalance are reported but never
// subtracted from Net.
func NewCalculator(cat *catalog.Catalog, reserveQueued bool) *Calculator {
	return &Calculator{catalog: cat, reserveQueued: reserveQueued}
}

func (c *Calculator) ReservationAccounting() bool {
	return c.reserveQueued
}

// ContextFor builds the multiplier context for a base environment.
func (c *Calculator) ContextFor(environment string) Context {
	return Context{
		Environment: environment,
		Multipliers: c.catalog.Multipliers(environment),
	}
}

func (c *Calculator) ComputeEnergyBalance(levels map[string]int, ctx Context, reservations []Reservation) Balance {
	b := Balance{Produced: c.catalog.BaselineEnergy}

	keys := make([]string, 0, len(levels))
	for key := range levels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entry, ok := c.catalog.Get(key)
		if !ok {
			continue
		}
		amount := c.Contribution(entry, levels[key], ctx)
		if amount >= 0 {
			b.Produced += amount
		} else {
			b.Consumed -= amount
		}
	}

	for _, r := range reservations {
		if r.Amount < 0 {
			b.ReservedConsumption -= r.Amount
		}
	}

	b.Net = b.Produced - b.Consumed
	if c.reserveQueued {
		b.Net -= b.ReservedConsumption
	}
	return b
}

// Contribution is the signed energy of entry at level (or quantity) under ctx.
func (c *Calculator) Contribution(entry catalog.Entry, level int, ctx Context) int {
	if level <= 0 {
		return 0
	}
	rate := entry.EnergyPerLevel()
	if rate == 0 {
		return 0
	}
	return int(math.Round(float64(level) * float64(rate) * ctx.multiplier(entry.Energy.Link)))
}

// Delta is the change in energy caused by moving entry from one level (or
// quantity) to another.
func (c *Calculator) Delta(entry catalog.Entry, from, to int, ctx Context) int {
	return c.Contribution(entry, to, ctx) - c.Contribution(entry, from, ctx)
}

// CanStartWithDelta decides whether an action changing energy by delta may
// start. Producers always may; consumers need the balance to stay at or
// above zero.
func CanStartWithDelta(currentBalance, delta int, isProducer bool) bool {
	if isProducer {
		return true
	}
	return currentBalance+delta >= 0
}
