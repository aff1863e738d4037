package energy

import (
	"sync"
	"testing"

	"planets-engine/internal/catalog"
)

func newTestCalculator(t *testing.T, reserveQueued bool) *Calculator {
	t.Helper()
	cat, err := catalog.LoadDefault()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return NewCalculator(cat, reserveQueued)
}

func TestBaselineOnly(t *testing.T) {
	calc := newTestCalculator(t, true)

	for _, levels := range []map[string]int{nil, {}, {"solar_plant": 0, "shipyard": 0}} {
		b := calc.ComputeEnergyBalance(levels, calc.ContextFor("standard"), nil)
		if b.Net != 2 {
			t.Fatalf("baseline net = %d, want 2 (levels %v)", b.Net, levels)
		}
		if b.Consumed != 0 || b.ReservedConsumption != 0 {
			t.Fatalf("unexpected baseline balance %+v", b)
		}
	}
}

func TestSolarPlantInSolarContext(t *testing.T) {
	calc := newTestCalculator(t, true)
	levels := map[string]int{"solar_plant": 3}
	ctx := calc.ContextFor("solar")

	first := calc.ComputeEnergyBalance(levels, ctx, nil)
	if first.Net != 20 {
		t.Fatalf("net = %d, want 20 (2 baseline + round(3*5*1.2))", first.Net)
	}
	for i := 0; i < 10; i++ {
		if again := calc.ComputeEnergyBalance(levels, ctx, nil); again != first {
			t.Fatalf("call %d returned %+v, want %+v", i, again, first)
		}
	}

	standard := calc.ComputeEnergyBalance(levels, calc.ContextFor("standard"), nil)
	if standard.Net != 17 {
		t.Fatalf("standard net = %d, want 17", standard.Net)
	}
}

func TestConsumersReduceNet(t *testing.T) {
	calc := newTestCalculator(t, true)
	levels := map[string]int{"solar_plant": 2, "shipyard": 3, "laser_turret": 4}

	b := calc.ComputeEnergyBalance(levels, calc.ContextFor("standard"), nil)
	if b.Produced != 12 || b.Consumed != 7 || b.Net != 5 {
		t.Fatalf("balance = %+v, want produced 12 consumed 7 net 5", b)
	}
}

func TestReservationAccountingToggle(t *testing.T) {
	levels := map[string]int{"solar_plant": 2}
	reservations := []Reservation{
		{QueueItemID: "a", Amount: -3},
		{QueueItemID: "b", Amount: 5},
	}

	on := newTestCalculator(t, true)
	b := on.ComputeEnergyBalance(levels, on.ContextFor("standard"), reservations)
	if b.ReservedConsumption != 3 || b.Net != 9 {
		t.Fatalf("accounting on: %+v, want reserved 3 net 9", b)
	}

	off := newTestCalculator(t, false)
	b = off.ComputeEnergyBalance(levels, off.ContextFor("standard"), reservations)
	if b.Net != 12 {
		t.Fatalf("accounting off: net = %d, want 12", b.Net)
	}
}

func TestCanStartWithDelta(t *testing.T) {
	tests := []struct {
		balance    int
		delta      int
		isProducer bool
		want       bool
	}{
		{balance: -50, delta: 5, isProducer: true, want: true},
		{balance: -50, delta: -5, isProducer: true, want: true},
		{balance: 3, delta: -3, isProducer: false, want: true},
		{balance: 3, delta: -4, isProducer: false, want: false},
		{balance: 0, delta: 0, isProducer: false, want: true},
		{balance: -1, delta: 0, isProducer: false, want: false},
	}

	for _, tt := range tests {
		if got := CanStartWithDelta(tt.balance, tt.delta, tt.isProducer); got != tt.want {
			t.Errorf("CanStartWithDelta(%d, %d, %v) = %v, want %v", tt.balance, tt.delta, tt.isProducer, got, tt.want)
		}
	}
}

func TestDeltaMatchesContribution(t *testing.T) {
	calc := newTestCalculator(t, true)
	cat, _ := catalog.LoadDefault()
	solar, _ := cat.Get("solar_plant")
	ctx := calc.ContextFor("solar")

	if got := calc.Delta(solar, 2, 3, ctx); got != 6 {
		t.Fatalf("delta 2->3 = %d, want 6", got)
	}
	turret, _ := cat.Get("photon_turret")
	if got := calc.Delta(turret, 5, 8, ctx); got != -6 {
		t.Fatalf("3 more photon turrets = %d, want -6", got)
	}
}

func TestConcurrentUse(t *testing.T) {
	calc := newTestCalculator(t, true)
	levels := map[string]int{"solar_plant": 4, "research_lab": 2}
	ctx := calc.ContextFor("solar")
	want := calc.ComputeEnergyBalance(levels, ctx, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := calc.ComputeEnergyBalance(levels, ctx, nil); got != want {
				t.Errorf("concurrent result %+v, want %+v", got, want)
			}
		}()
	}
	wg.Wait()
}
