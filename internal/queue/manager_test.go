package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"planets-engine/internal/base"
	"planets-engine/internal/catalog"
	"planets-engine/internal/eligibility"
	"planets-engine/internal/empire"
	"planets-engine/internal/energy"
	"planets-engine/internal/events"
	"planets-engine/internal/shared/clock"
	"planets-engine/internal/shared/config"
	"planets-engine/internal/shared/database"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/shared/logger"
)

type fixture struct {
	db      *database.DB
	clock   *clock.Manual
	manager *Manager
	repo    *Repository
	bases   *base.Repository
	empires *empire.Repository
	bus     *events.Bus
	empire  *empire.Empire
	base    *base.Base
}

func newFixture(t *testing.T, credits int64) *fixture {
	t.Helper()
	ctx := context.Background()
	log := logger.Discard()

	db, err := database.OpenSQLiteMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cat, err := catalog.LoadDefault()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	cfg := config.Default()
	calc := energy.NewCalculator(cat, cfg.Energy.ReservationAccounting)
	clk := clock.NewManual(time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC))

	f := &fixture{
		db:      db,
		clock:   clk,
		repo:    NewRepository(db, log),
		bases:   base.NewRepository(db, log),
		empires: empire.NewRepository(db, log),
		bus:     events.NewBus(log),
	}
	f.manager = NewManager(ManagerDeps{
		DB:            db,
		Repo:          f.repo,
		Bases:         f.bases,
		Empires:       f.empires,
		Eligibility:   eligibility.NewService(cat, calc, cfg.Queue),
		Events:        f.bus,
		Clock:         clk,
		RefundPercent: cfg.Queue.CancelRefundPercent,
		Logger:        log,
	})

	f.empire, err = empire.NewService(f.empires, clk, log).CreateEmpire(ctx, "Vega Combine", credits, empire.RoleUser, nil)
	if err != nil {
		t.Fatalf("create empire: %v", err)
	}
	f.base, err = base.NewService(f.bases, cat, calc, clk, log).CreateBase(ctx, base.CreateParams{
		EmpireID:    f.empire.ID,
		Name:        "Homeworld",
		Coordinate:  "01:12:04",
		Environment: "standard",
		TotalArea:   20,
		Population:  10,
		Structures:  database.Counts{"solar_plant": 2, "shipyard": 1},
	}, nil)
	if err != nil {
		t.Fatalf("create base: %v", err)
	}
	return f
}

func refineryRequest() eligibility.Request {
	return eligibility.Request{Kind: catalog.KindStructure, CatalogKey: "metal_refinery", TargetLevel: 1}
}

func (f *fixture) credits(t *testing.T) int64 {
	t.Helper()
	e, err := f.empires.GetByID(context.Background(), f.empire.ID, nil)
	if err != nil {
		t.Fatalf("reload empire: %v", err)
	}
	return e.Credits
}

func TestEnqueueReservesAndDebits(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()
	sub := f.bus.Subscribe(4, nil)
	defer sub.Close()

	item, err := f.manager.Enqueue(ctx, f.base.ID, refineryRequest())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if item.Status != StatusQueued || item.ElapsedMs != 0 {
		t.Fatalf("unexpected item state %+v", item)
	}
	if item.Cost != 30 || item.DurationMs != 45000 {
		t.Fatalf("cost=%d duration=%d, want 30 and 45000", item.Cost, item.DurationMs)
	}
	if got := f.credits(t); got != 970 {
		t.Fatalf("credits = %d, want 970", got)
	}

	reservations, err := f.repo.Reservations(ctx, f.base.ID, nil)
	if err != nil {
		t.Fatalf("reservations: %v", err)
	}
	if len(reservations) != 1 || reservations[0].Amount != -1 || reservations[0].QueueItemID != item.ID {
		t.Fatalf("reservations = %+v", reservations)
	}

	holder, err := f.repo.ClaimHolder(ctx, f.base.ID, catalog.KindStructure, nil)
	if err != nil || holder != item.IdentityKey {
		t.Fatalf("claim holder = %q (%v), want %q", holder, err, item.IdentityKey)
	}

	stored, err := f.bases.GetByID(ctx, f.base.ID, nil)
	if err != nil {
		t.Fatalf("reload base: %v", err)
	}
	if stored.Version != f.base.Version+1 {
		t.Fatalf("base version = %d, want %d", stored.Version, f.base.Version+1)
	}

	select {
	case e := <-sub.C:
		if e.Type != events.QueueEnqueued || e.SubjectID != item.ID || e.EmpireID != f.empire.ID {
			t.Fatalf("unexpected event %+v", e)
		}
	default:
		t.Fatal("no enqueue event published")
	}
}

func TestEnqueueSameQueueConflicts(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	if _, err := f.manager.Enqueue(ctx, f.base.ID, refineryRequest()); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}

	_, err := f.manager.Enqueue(ctx, f.base.ID, refineryRequest())
	if !errors.Is(err, errors.CodeAlreadyInProgress) {
		t.Fatalf("second enqueue err = %v, want ALREADY_IN_PROGRESS", err)
	}
	if errors.GetType(err) != errors.ErrorTypeConflict {
		t.Fatalf("error type = %s, want conflict", errors.GetType(err))
	}

	other := eligibility.Request{Kind: catalog.KindStructure, CatalogKey: "research_lab", TargetLevel: 1}
	if _, err := f.manager.Enqueue(ctx, f.base.ID, other); !errors.Is(err, errors.CodeAlreadyInProgress) {
		t.Fatalf("different structure on same queue err = %v, want ALREADY_IN_PROGRESS", err)
	}

	fighters := eligibility.Request{Kind: catalog.KindUnit, CatalogKey: "fighter", TargetLevel: 5}
	if _, err := f.manager.Enqueue(ctx, f.base.ID, fighters); err != nil {
		t.Fatalf("unit queue should be independent: %v", err)
	}

	if got := f.credits(t); got != 1000-30-25 {
		t.Fatalf("credits = %d, want %d", got, 1000-30-25)
	}
}

func TestIneligibleRequestLeavesIdentityFree(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.manager.Enqueue(ctx, f.base.ID, refineryRequest())
	if !errors.Is(err, errors.CodeNotEligible) {
		t.Fatalf("err = %v, want NOT_ELIGIBLE", err)
	}
	if reasons := errors.GetReasons(err); len(reasons) != 1 {
		t.Fatalf("reasons = %v, want one credit reason", reasons)
	}

	holder, err := f.repo.ClaimHolder(ctx, f.base.ID, catalog.KindStructure, nil)
	if err != nil || holder != "" {
		t.Fatalf("claim holder after failure = %q (%v)", holder, err)
	}
	reservations, _ := f.repo.Reservations(ctx, f.base.ID, nil)
	if len(reservations) != 0 {
		t.Fatalf("reservations after failure = %+v", reservations)
	}
	if got := f.credits(t); got != 10 {
		t.Fatalf("credits = %d, want 10", got)
	}

	if err := f.empires.Credit(ctx, f.empire.ID, 100, f.clock.Now(), nil); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := f.manager.Enqueue(ctx, f.base.ID, refineryRequest()); err != nil {
		t.Fatalf("retry after funding: %v", err)
	}
}

func TestEnqueueRejectsOversizedBatch(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	for _, quantity := range []int{10001, 3689348814741910323} {
		_, err := f.manager.Enqueue(ctx, f.base.ID, eligibility.Request{
			Kind:        catalog.KindUnit,
			CatalogKey:  "fighter",
			TargetLevel: quantity,
		})
		if !errors.Is(err, errors.CodeNotEligible) {
			t.Fatalf("quantity %d: err = %v, want NOT_ELIGIBLE", quantity, err)
		}
	}

	if got := f.credits(t); got != 1000 {
		t.Fatalf("credits = %d, want 1000", got)
	}
	items, err := f.manager.ListActive(ctx, f.base.ID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("active items = %+v, want none", items)
	}
}

func TestDebitRefusesNegativeAmount(t *testing.T) {
	f := newFixture(t, 1000)

	debited, err := f.empires.Debit(context.Background(), f.empire.ID, -1, f.clock.Now(), nil)
	if debited || errors.GetType(err) != errors.ErrorTypeValidation {
		t.Fatalf("negative debit = %v (%v), want validation error", debited, err)
	}
	if got := f.credits(t); got != 1000 {
		t.Fatalf("credits = %d, want 1000", got)
	}
}

func TestCancelRefundsAndFreesIdentity(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	item, err := f.manager.Enqueue(ctx, f.base.ID, refineryRequest())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	cancelled, refund, err := f.manager.Cancel(ctx, item.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("cancelled item = %+v", cancelled)
	}
	if refund != 15 {
		t.Fatalf("refund = %d, want 15", refund)
	}
	if got := f.credits(t); got != 985 {
		t.Fatalf("credits = %d, want 985", got)
	}

	reservations, _ := f.repo.Reservations(ctx, f.base.ID, nil)
	if len(reservations) != 0 {
		t.Fatalf("reservation not released: %+v", reservations)
	}

	if _, _, err := f.manager.Cancel(ctx, item.ID); !errors.Is(err, errors.CodeInvalidState) {
		t.Fatalf("second cancel err = %v, want INVALID_STATE", err)
	}

	again, err := f.manager.Enqueue(ctx, f.base.ID, refineryRequest())
	if err != nil {
		t.Fatalf("enqueue after cancel: %v", err)
	}
	if again.IdentityKey != item.IdentityKey || again.ID == item.ID {
		t.Fatalf("re-enqueued item %+v", again)
	}
}

func TestConcurrentEnqueueSingleFlight(t *testing.T) {
	f := newFixture(t, 100000)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.Enqueue(ctx, f.base.ID, refineryRequest())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, errors.CodeAlreadyInProgress):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || conflicts != callers-1 {
		t.Fatalf("succeeded=%d conflicts=%d", succeeded, conflicts)
	}

	items, err := f.repo.ListActiveByBase(ctx, f.base.ID, nil)
	if err != nil || len(items) != 1 {
		t.Fatalf("active items = %d (%v), want 1", len(items), err)
	}
	if got := f.credits(t); got != 100000-30 {
		t.Fatalf("credits = %d, want %d", got, 100000-30)
	}
}

func TestEnqueueUnknownBase(t *testing.T) {
	f := newFixture(t, 1000)

	_, err := f.manager.Enqueue(context.Background(), "missing", refineryRequest())
	if !errors.Is(err, errors.CodeBaseNotFound) {
		t.Fatalf("err = %v, want BASE_NOT_FOUND", err)
	}
}

func TestRefundFor(t *testing.T) {
	tests := []struct {
		cost    int64
		percent int
		want    int64
	}{
		{cost: 30, percent: 50, want: 15},
		{cost: 31, percent: 50, want: 15},
		{cost: 100, percent: 0, want: 0},
		{cost: 100, percent: 150, want: 100},
		{cost: 0, percent: 50, want: 0},
	}
	for _, tt := range tests {
		if got := RefundFor(tt.cost, tt.percent); got != tt.want {
			t.Errorf("RefundFor(%d, %d) = %d, want %d", tt.cost, tt.percent, got, tt.want)
		}
	}
}
