package catalog

import (
	"database/sql/driver"
	"fmt"
	"math"
)

// Kind identifies one of the four production queues. Every switch over Kind
// must cover Structure, Tech, Unit and Defense.
type Kind int

const (
	KindStructure Kind = iota + 1
	KindTech
	KindUnit
	KindDefense
)

// AllKinds lists every queue kind in display order.
var AllKinds = []Kind{KindStructure, KindTech, KindUnit, KindDefense}

func (k Kind) String() string {
	switch k {
	case KindStructure:
		return "structure"
	case KindTech:
		return "tech"
	case KindUnit:
		return "unit"
	case KindDefense:
		return "defense"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) IsValid() bool {
	return k >= KindStructure && k <= KindDefense
}

// Leveled reports whether the queue targets a level (structure, tech) rather
// than a quantity (unit, defense).
func (k Kind) Leveled() bool {
	return k == KindStructure || k == KindTech
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "structure":
		return KindStructure, nil
	case "tech":
		return KindTech, nil
	case "unit":
		return KindUnit, nil
	case "defense":
		return KindDefense, nil
	default:
		return 0, fmt.Errorf("unknown queue kind %q", s)
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("invalid queue kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Value stores the kind by name.
func (k Kind) Value() (driver.Value, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("invalid queue kind %d", int(k))
	}
	return k.String(), nil
}

func (k *Kind) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return k.UnmarshalText([]byte(v))
	case []byte:
		return k.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Kind", src)
	}
}

type Energy struct {
	Produces int    `yaml:"produces" json:"produces,omitempty"`
	Consumes int    `yaml:"consumes" json:"consumes,omitempty"`
	Link     string `yaml:"link" json:"link,omitempty"`
}

type Entry struct {
	Key            string             `yaml:"key" json:"key"`
	Name           string             `yaml:"name" json:"name"`
	Kind           Kind               `yaml:"kind" json:"kind"`
	Energy         Energy             `yaml:"energy" json:"energy"`
	Area           int                `yaml:"area" json:"area,omitempty"`
	AreaProvided   int                `yaml:"area_provided" json:"area_provided,omitempty"`
	Population     int                `yaml:"population" json:"population,omitempty"`
	Housing        int                `yaml:"housing" json:"housing,omitempty"`
	BaseCost       int64              `yaml:"base_cost" json:"base_cost"`
	CostGrowth     float64            `yaml:"cost_growth" json:"cost_growth,omitempty"`
	BaseDurationMs int64              `yaml:"base_duration_ms" json:"base_duration_ms"`
	DurationGrowth float64            `yaml:"duration_growth" json:"duration_growth,omitempty"`
	MaxLevel       int                `yaml:"max_level" json:"max_level,omitempty"`
	Requires       map[string]int     `yaml:"requires" json:"requires,omitempty"`
	Speed          float64            `yaml:"speed" json:"speed,omitempty"`
	Boosts         map[string]float64 `yaml:"boosts" json:"boosts,omitempty"`
}

// IsProducer reports whether the entry adds energy rather than consuming it.
func (e Entry) IsProducer() bool {
	return e.Energy.Produces > 0
}

// EnergyPerLevel is the signed energy contribution of one level (or one unit
// for defenses) before context multipliers.
func (e Entry) EnergyPerLevel() int {
	return e.Energy.Produces - e.Energy.Consumes
}

// CostFor returns the credit cost of reaching level target (structure, tech)
// or of producing target items (unit, defense). Results that do not fit in
// an int64 saturate at math.MaxInt64.
func (e Entry) CostFor(target int) int64 {
	if target <= 0 {
		return 0
	}
	if !e.Kind.Leveled() {
		return mulSaturating(e.BaseCost, int64(target))
	}
	return roundSaturating(float64(e.BaseCost) * growth(e.CostGrowth, target))
}

// DurationFor returns the unboosted build time in milliseconds, saturating
// like CostFor.
func (e Entry) DurationFor(target int) int64 {
	if target <= 0 {
		return 0
	}
	if !e.Kind.Leveled() {
		return mulSaturating(e.BaseDurationMs, int64(target))
	}
	return roundSaturating(float64(e.BaseDurationMs) * growth(e.DurationGrowth, target))
}

// mulSaturating multiplies two non-negative values.
func mulSaturating(a, b int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

func roundSaturating(v float64) int64 {
	v = math.Round(v)
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	default:
		return int64(v)
	}
}

func growth(factor float64, level int) float64 {
	if factor <= 0 {
		factor = 1
	}
	return math.Pow(factor, float64(level-1))
}
