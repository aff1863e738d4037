package eligibility

import (
	"math"
	"strings"
	"testing"

	"planets-engine/internal/base"
	"planets-engine/internal/catalog"
	"planets-engine/internal/energy"
	"planets-engine/internal/shared/config"
	"planets-engine/internal/shared/database"
)

func newTestService(t *testing.T, reserveQueued bool) *Service {
	t.Helper()
	cat, err := catalog.LoadDefault()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return NewService(cat, energy.NewCalculator(cat, reserveQueued), config.Default().Queue)
}

func newBase(area, population int, structures database.Counts) *base.Base {
	if structures == nil {
		structures = database.Counts{}
	}
	return &base.Base{
		ID:          "base-1",
		EmpireID:    "empire-1",
		Environment: "standard",
		TotalArea:   area,
		Population:  population,
		Structures:  structures,
		Techs:       database.Counts{},
		Units:       database.Counts{},
		Defenses:    database.Counts{},
	}
}

func hasReason(reasons []string, fragment string) bool {
	for _, r := range reasons {
		if strings.Contains(r, fragment) {
			return true
		}
	}
	return false
}

func TestCheckEligibility(t *testing.T) {
	svc := newTestService(t, true)

	tests := []struct {
		name        string
		subject     Subject
		req         Request
		wantStart   bool
		wantReasons []string
		wantEta     int64
	}{
		{
			name:      "first solar plant",
			subject:   Subject{Base: newBase(10, 5, nil), Credits: 1000},
			req:       Request{Kind: catalog.KindStructure, CatalogKey: "solar_plant", TargetLevel: 1},
			wantStart: true,
			wantEta:   60000,
		},
		{
			name:        "consumer beyond energy",
			subject:     Subject{Base: newBase(10, 5, database.Counts{"metal_refinery": 2}), Credits: 1000},
			req:         Request{Kind: catalog.KindStructure, CatalogKey: "metal_refinery", TargetLevel: 3},
			wantReasons: []string{"insufficient energy"},
		},
		{
			name:        "every failing constraint is reported",
			subject:     Subject{Base: newBase(1, 5, database.Counts{"solar_plant": 1}), Credits: 0},
			req:         Request{Kind: catalog.KindStructure, CatalogKey: "metal_refinery", TargetLevel: 1},
			wantReasons: []string{"insufficient area", "insufficient credits"},
		},
		{
			name:        "population exhausted",
			subject:     Subject{Base: newBase(10, 1, database.Counts{"metal_refinery": 1, "solar_plant": 1}), Credits: 1000},
			req:         Request{Kind: catalog.KindStructure, CatalogKey: "shipyard", TargetLevel: 1},
			wantReasons: []string{"insufficient population"},
		},
		{
			name:        "skipping a level",
			subject:     Subject{Base: newBase(10, 5, nil), Credits: 1000},
			req:         Request{Kind: catalog.KindStructure, CatalogKey: "solar_plant", TargetLevel: 3},
			wantReasons: []string{"must be the next level"},
		},
		{
			name:        "max level",
			subject:     Subject{Base: newBase(100, 5, database.Counts{"solar_plant": 30}), Credits: 1 << 40},
			req:         Request{Kind: catalog.KindStructure, CatalogKey: "solar_plant", TargetLevel: 31},
			wantReasons: []string{"capped at level 30"},
		},
		{
			name:        "missing prerequisite",
			subject:     Subject{Base: newBase(10, 5, database.Counts{"solar_plant": 1}), Credits: 1000},
			req:         Request{Kind: catalog.KindStructure, CatalogKey: "fusion_plant", TargetLevel: 1},
			wantReasons: []string{"requires Energy Technology level 6 (current 0)"},
		},
		{
			name:        "kind mismatch",
			subject:     Subject{Base: newBase(10, 5, nil), Credits: 1000},
			req:         Request{Kind: catalog.KindTech, CatalogKey: "solar_plant", TargetLevel: 1},
			wantReasons: []string{"is a structure, not a tech"},
		},
		{
			name:        "unknown entry",
			subject:     Subject{Base: newBase(10, 5, nil), Credits: 1000},
			req:         Request{Kind: catalog.KindStructure, CatalogKey: "space_elevator", TargetLevel: 1},
			wantReasons: []string{"unknown catalog entry"},
		},
		{
			name:        "zero quantity",
			subject:     Subject{Base: newBase(10, 5, database.Counts{"shipyard": 1}), Credits: 1000},
			req:         Request{Kind: catalog.KindUnit, CatalogKey: "fighter", TargetLevel: 0},
			wantReasons: []string{"quantity must be at least 1"},
		},
		{
			name:        "quantity above the batch limit",
			subject:     Subject{Base: newBase(10, 5, database.Counts{"shipyard": 1}), Credits: 1 << 62},
			req:         Request{Kind: catalog.KindUnit, CatalogKey: "fighter", TargetLevel: 10001},
			wantReasons: []string{"exceeds the batch limit of 10000"},
		},
		{
			name:        "quantity that would overflow the cost",
			subject:     Subject{Base: newBase(10, 5, database.Counts{"shipyard": 1}), Credits: 1000},
			req:         Request{Kind: catalog.KindUnit, CatalogKey: "fighter", TargetLevel: 3689348814741910323},
			wantReasons: []string{"exceeds the batch limit"},
		},
		{
			name:      "boosted fighters",
			subject:   Subject{Base: newBase(10, 5, database.Counts{"shipyard": 1}), Credits: 1000},
			req:       Request{Kind: catalog.KindUnit, CatalogKey: "fighter", TargetLevel: 10},
			wantStart: true,
			wantEta:   45455,
		},
		{
			name:      "saturated base builds slower",
			subject:   Subject{Base: newBase(10, 5, database.Counts{"solar_plant": 9}), Credits: 1000},
			req:       Request{Kind: catalog.KindStructure, CatalogKey: "metal_refinery", TargetLevel: 1},
			wantStart: true,
			wantEta:   90000,
		},
		{
			name: "queued reservation holds energy",
			subject: Subject{
				Base:         newBase(10, 5, database.Counts{"solar_plant": 1}),
				Credits:      1000,
				Reservations: []energy.Reservation{{QueueItemID: "q1", Amount: -7}},
			},
			req:         Request{Kind: catalog.KindStructure, CatalogKey: "metal_refinery", TargetLevel: 1},
			wantReasons: []string{"insufficient energy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.CheckEligibility(tt.subject, tt.req)

			if res.CanStart != (len(res.Reasons) == 0) {
				t.Fatalf("CanStart=%v but reasons=%v", res.CanStart, res.Reasons)
			}
			if res.CanStart != tt.wantStart {
				t.Fatalf("CanStart=%v, want %v (reasons %v)", res.CanStart, tt.wantStart, res.Reasons)
			}
			if len(tt.wantReasons) > 0 && len(res.Reasons) != len(tt.wantReasons) {
				t.Fatalf("reasons = %v, want %d reasons", res.Reasons, len(tt.wantReasons))
			}
			for _, want := range tt.wantReasons {
				if !hasReason(res.Reasons, want) {
					t.Fatalf("reasons %v missing %q", res.Reasons, want)
				}
			}
			if res.EtaMs != tt.wantEta {
				t.Fatalf("EtaMs = %d, want %d", res.EtaMs, tt.wantEta)
			}
		})
	}
}

func TestOverflowingQuantityHasNoCost(t *testing.T) {
	svc := newTestService(t, true)
	subject := Subject{Base: newBase(10, 5, database.Counts{"shipyard": 1}), Credits: 1000}

	res := svc.CheckEligibility(subject, Request{Kind: catalog.KindDefense, CatalogKey: "laser_turret", TargetLevel: 1 << 62})
	if res.CanStart {
		t.Fatal("overflowing quantity was accepted")
	}
	if res.Cost < 0 || res.DurationMs < 0 || res.EnergyDelta != 0 {
		t.Fatalf("result = %+v, want no negative cost or duration", res)
	}
}

func TestProductionRateMultiplierIsStable(t *testing.T) {
	svc := newTestService(t, true)
	b := newBase(100, 100, database.Counts{
		"robotic_factory": 3,
		"shipyard":        7,
		"research_lab":    2,
		"solar_plant":     4,
		"metal_refinery":  1,
	})

	want := svc.ProductionRateMultiplier(b, catalog.KindUnit)
	if math.Abs(want-1.85) > 1e-9 {
		t.Fatalf("unit multiplier = %v", want)
	}
	for i := 0; i < 200; i++ {
		if got := svc.ProductionRateMultiplier(b, catalog.KindUnit); got != want {
			t.Fatalf("multiplier changed between calls: %v then %v", want, got)
		}
	}
}

func TestReservationIgnoredWhenAccountingDisabled(t *testing.T) {
	svc := newTestService(t, false)
	subject := Subject{
		Base:         newBase(10, 5, database.Counts{"solar_plant": 1}),
		Credits:      1000,
		Reservations: []energy.Reservation{{QueueItemID: "q1", Amount: -7}},
	}

	res := svc.CheckEligibility(subject, Request{Kind: catalog.KindStructure, CatalogKey: "metal_refinery", TargetLevel: 1})
	if !res.CanStart {
		t.Fatalf("expected start with accounting disabled, reasons %v", res.Reasons)
	}
	if res.Balance.ReservedConsumption != 7 || res.Balance.Net != 7 {
		t.Fatalf("balance = %+v", res.Balance)
	}
}

func TestEveryKindIsHandled(t *testing.T) {
	svc := newTestService(t, true)
	b := newBase(50, 50, database.Counts{"shipyard": 10, "research_lab": 10, "metal_refinery": 5, "solar_plant": 10})
	b.Techs = database.Counts{"laser": 5, "energy_technology": 5}

	keys := map[catalog.Kind]string{
		catalog.KindStructure: "robotic_factory",
		catalog.KindTech:      "armour",
		catalog.KindUnit:      "fighter",
		catalog.KindDefense:   "laser_turret",
	}
	for _, kind := range catalog.AllKinds {
		key, ok := keys[kind]
		if !ok {
			t.Fatalf("no sample entry for kind %s", kind)
		}
		req := Request{Kind: kind, CatalogKey: key, TargetLevel: 1}
		if res := svc.CheckEligibility(Subject{Base: b, Credits: 1 << 30}, req); !res.CanStart {
			t.Fatalf("%s %s: reasons %v", kind, key, res.Reasons)
		}
	}
}
