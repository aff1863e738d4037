package catalog

import (
	"math"
	"strings"
	"testing"
)

func TestLoadDefault(t *testing.T) {
	c, err := LoadDefault()
	if err != nil {
		t.Fatalf("load default catalog: %v", err)
	}

	if c.BaselineEnergy != 2 {
		t.Fatalf("baseline energy = %d, want 2", c.BaselineEnergy)
	}
	for _, kind := range AllKinds {
		if len(c.ByKind(kind)) == 0 {
			t.Fatalf("no entries of kind %s", kind)
		}
	}

	solar, ok := c.Get("solar_plant")
	if !ok {
		t.Fatal("solar_plant missing")
	}
	if solar.Kind != KindStructure || !solar.IsProducer() || solar.Energy.Link != "solar" {
		t.Fatalf("unexpected solar_plant entry: %+v", solar)
	}
	if got := c.Multipliers("solar")["solar"]; got != 1.2 {
		t.Fatalf("solar multiplier in solar environment = %v, want 1.2", got)
	}
	if len(c.Multipliers("standard")) != 0 {
		t.Fatal("standard environment should have no multipliers")
	}
	if !c.HasEnvironment("crystalline") || c.HasEnvironment("lava") {
		t.Fatal("environment lookup mismatch")
	}
}

func TestParseKind(t *testing.T) {
	for _, kind := range AllKinds {
		parsed, err := ParseKind(kind.String())
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", kind.String(), err)
		}
		if parsed != kind {
			t.Fatalf("ParseKind(%q) = %v", kind.String(), parsed)
		}
	}
	if _, err := ParseKind("building"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestCostAndDurationGrowth(t *testing.T) {
	leveled := Entry{Kind: KindStructure, BaseCost: 100, CostGrowth: 1.5, BaseDurationMs: 1000, DurationGrowth: 2}
	if got := leveled.CostFor(1); got != 100 {
		t.Fatalf("level 1 cost = %d", got)
	}
	if got := leveled.CostFor(3); got != 225 {
		t.Fatalf("level 3 cost = %d, want 225", got)
	}
	if got := leveled.DurationFor(3); got != 4000 {
		t.Fatalf("level 3 duration = %d, want 4000", got)
	}

	counted := Entry{Kind: KindUnit, BaseCost: 5, BaseDurationMs: 5000, Speed: 5}
	if got := counted.CostFor(10); got != 50 {
		t.Fatalf("10 units cost = %d, want 50", got)
	}
	if got := counted.DurationFor(10); got != 50000 {
		t.Fatalf("10 units duration = %d, want 50000", got)
	}
}

func TestCostAndDurationSaturate(t *testing.T) {
	counted := Entry{Kind: KindUnit, BaseCost: 5, BaseDurationMs: 5000, Speed: 5}
	huge := int(math.MaxInt64 / 5)
	if got := counted.CostFor(huge + 1); got != math.MaxInt64 {
		t.Fatalf("overflowing cost = %d, want MaxInt64", got)
	}
	if got := counted.DurationFor(huge); got != math.MaxInt64 {
		t.Fatalf("overflowing duration = %d, want MaxInt64", got)
	}

	leveled := Entry{Kind: KindTech, BaseCost: 100, CostGrowth: 10, BaseDurationMs: 1000, DurationGrowth: 10}
	if got := leveled.CostFor(400); got != math.MaxInt64 {
		t.Fatalf("level 400 cost = %d, want MaxInt64", got)
	}
	if got := leveled.DurationFor(400); got <= 0 {
		t.Fatalf("level 400 duration = %d, want positive", got)
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown kind",
			doc: `
baseline_energy: 2
environments: {standard: {}}
entries:
  - {key: hut, name: Hut, kind: building, base_cost: 1, base_duration_ms: 1}
`,
			want: "schema",
		},
		{
			name: "unit without speed",
			doc: `
baseline_energy: 2
environments: {standard: {}}
entries:
  - {key: scout, name: Scout, kind: unit, base_cost: 1, base_duration_ms: 1}
`,
			want: "schema",
		},
		{
			name: "produces and consumes",
			doc: `
baseline_energy: 2
environments: {standard: {}}
entries:
  - {key: odd, name: Odd, kind: structure, energy: {produces: 1, consumes: 1}, base_cost: 1, base_duration_ms: 1}
`,
			want: "schema",
		},
		{
			name: "unknown prerequisite",
			doc: `
baseline_energy: 2
environments: {standard: {}}
entries:
  - {key: lab, name: Lab, kind: structure, base_cost: 1, base_duration_ms: 1, requires: {library: 1}}
`,
			want: "unknown entry",
		},
		{
			name: "energy on a tech",
			doc: `
baseline_energy: 2
environments: {standard: {}}
entries:
  - {key: fusion, name: Fusion, kind: tech, energy: {produces: 3}, base_cost: 1, base_duration_ms: 1}
`,
			want: "cannot produce or consume energy",
		},
		{
			name: "energy on a unit",
			doc: `
baseline_energy: 2
environments: {standard: {}}
entries:
  - {key: drone, name: Drone, kind: unit, speed: 4, energy: {consumes: 1}, base_cost: 1, base_duration_ms: 1}
`,
			want: "cannot produce or consume energy",
		},
		{
			name: "duplicate key",
			doc: `
baseline_energy: 2
environments: {standard: {}}
entries:
  - {key: lab, name: Lab, kind: structure, base_cost: 1, base_duration_ms: 1}
  - {key: lab, name: Lab, kind: structure, base_cost: 1, base_duration_ms: 1}
`,
			want: "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
