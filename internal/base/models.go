package base

import (
	"fmt"

	"planets-engine/internal/catalog"
	"planets-engine/internal/energy"
	"planets-engine/internal/shared/database"
)

type Base struct {
	ID             string          `db:"id" json:"id"`
	EmpireID       string          `db:"empire_id" json:"empire_id"`
	Name           string          `db:"name" json:"name"`
	Coordinate     string          `db:"coordinate" json:"coordinate"`
	Environment    string          `db:"environment" json:"environment"`
	TotalArea      int             `db:"total_area" json:"total_area"`
	Population     int             `db:"population" json:"population"`
	Structures     database.Counts `db:"structures_json" json:"structures"`
	Techs          database.Counts `db:"techs_json" json:"techs"`
	Units          database.Counts `db:"units_json" json:"units"`
	Defenses       database.Counts `db:"defenses_json" json:"defenses"`
	EnergyProduced int             `db:"energy_produced" json:"energy_produced"`
	EnergyConsumed int             `db:"energy_consumed" json:"energy_consumed"`
	Version        int64           `db:"version" json:"version"`
	CreatedAt      database.Millis `db:"created_at" json:"created_at"`
	UpdatedAt      database.Millis `db:"updated_at" json:"updated_at"`
}

// Capacity is the area and population a base has in use and available.
type Capacity struct {
	UsedArea       int `json:"used_area"`
	AreaCapacity   int `json:"area_capacity"`
	UsedPopulation int `json:"used_population"`
	PopulationCap  int `json:"population_capacity"`
}

// Holdings returns the level or quantity map that kind draws from.
func (b *Base) Holdings(kind catalog.Kind) (database.Counts, error) {
	switch kind {
	case catalog.KindStructure:
		return b.Structures, nil
	case catalog.KindTech:
		return b.Techs, nil
	case catalog.KindUnit:
		return b.Units, nil
	case catalog.KindDefense:
		return b.Defenses, nil
	default:
		return nil, fmt.Errorf("unsupported queue kind %v", kind)
	}
}

// Level returns the current level (structures, techs) or stock (units,
// defenses) of key.
func (b *Base) Level(kind catalog.Kind, key string) int {
	holdings, err := b.Holdings(kind)
	if err != nil {
		return 0
	}
	return holdings[key]
}

// ApplyCompletion applies the effect of a completed queue item. Structures
// and techs jump to the target level; units and defenses add the quantity.
func (b *Base) ApplyCompletion(kind catalog.Kind, key string, target int) error {
	b.ensureMaps()
	switch kind {
	case catalog.KindStructure:
		if target > b.Structures[key] {
			b.Structures[key] = target
		}
	case catalog.KindTech:
		if target > b.Techs[key] {
			b.Techs[key] = target
		}
	case catalog.KindUnit:
		b.Units[key] += target
	case catalog.KindDefense:
		b.Defenses[key] += target
	default:
		return fmt.Errorf("unsupported queue kind %v", kind)
	}
	return nil
}

// EnergyLevels merges structure levels and defense counts, the two holdings
// that produce or draw energy.
func (b *Base) EnergyLevels() map[string]int {
	levels := make(map[string]int, len(b.Structures)+len(b.Defenses))
	for k, v := range b.Structures {
		levels[k] = v
	}
	for k, v := range b.Defenses {
		levels[k] += v
	}
	return levels
}

// RefreshEnergy recomputes the stored energy ledger from current levels.
func (b *Base) RefreshEnergy(calc *energy.Calculator) energy.Balance {
	balance := calc.ComputeEnergyBalance(b.EnergyLevels(), calc.ContextFor(b.Environment), nil)
	b.EnergyProduced = balance.Produced
	b.EnergyConsumed = balance.Consumed
	return balance
}

func (b *Base) Capacity(cat *catalog.Catalog) Capacity {
	c := Capacity{AreaCapacity: b.TotalArea, PopulationCap: b.Population}
	for key, level := range b.Structures {
		entry, ok := cat.Get(key)
		if !ok || level <= 0 {
			continue
		}
		c.UsedArea += level * entry.Area
		c.AreaCapacity += level * entry.AreaProvided
		c.UsedPopulation += level * entry.Population
		c.PopulationCap += level * entry.Housing
	}
	for key, count := range b.Defenses {
		entry, ok := cat.Get(key)
		if !ok || count <= 0 {
			continue
		}
		c.UsedArea += count * entry.Area
		c.UsedPopulation += count * entry.Population
	}
	return c
}

func (b *Base) ensureMaps() {
	if b.Structures == nil {
		b.Structures = database.Counts{}
	}
	if b.Techs == nil {
		b.Techs = database.Counts{}
	}
	if b.Units == nil {
		b.Units = database.Counts{}
	}
	if b.Defenses == nil {
		b.Defenses = database.Counts{}
	}
}
