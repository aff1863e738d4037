package scheduler

import (
	"context"
	"testing"
	"time"

	"planets-engine/internal/base"
	"planets-engine/internal/catalog"
	"planets-engine/internal/eligibility"
	"planets-engine/internal/empire"
	"planets-engine/internal/energy"
	"planets-engine/internal/events"
	"planets-engine/internal/fleet"
	"planets-engine/internal/queue"
	"planets-engine/internal/shared/clock"
	"planets-engine/internal/shared/config"
	"planets-engine/internal/shared/database"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/shared/logger"
	"planets-engine/internal/snapshot"
	"planets-engine/internal/spatial"
)

type fixture struct {
	clock     *clock.Manual
	scheduler *Scheduler
	manager   *queue.Manager
	fleets    *fleet.Service
	bases     *base.Repository
	snapshots *snapshot.Store
	bus       *events.Bus
	calc      *energy.Calculator
	base      *base.Base
}

func newFixture(t *testing.T, snapshotEvery int) *fixture {
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
	calc := energy.NewCalculator(cat, true)
	clk := clock.NewManual(time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC))

	queueRepo := queue.NewRepository(db, log)
	empires := empire.NewRepository(db, log)

	f := &fixture{
		clock:     clk,
		bases:     base.NewRepository(db, log),
		snapshots: snapshot.NewStore(db, log),
		bus:       events.NewBus(log),
		calc:      calc,
	}
	f.manager = queue.NewManager(queue.ManagerDeps{
		DB:            db,
		Repo:          queueRepo,
		Bases:         f.bases,
		Empires:       empires,
		Eligibility:   eligibility.NewService(cat, calc, cfg.Queue),
		Events:        f.bus,
		Clock:         clk,
		RefundPercent: 50,
		Logger:        log,
	})
	f.fleets = fleet.NewService(fleet.ServiceDeps{
		DB:             db,
		Repo:           fleet.NewRepository(db, log),
		Bases:          f.bases,
		Catalog:        cat,
		Metric:         spatial.DefaultMetric(),
		MinTravelHours: cfg.Movement.MinTravelHours,
		Events:         f.bus,
		Clock:          clk,
		Logger:         log,
	})
	f.scheduler = New(Deps{
		DB:            db,
		Queue:         queueRepo,
		Bases:         f.bases,
		Energy:        calc,
		Fleets:        f.fleets,
		State:         NewStateRepository(db, log),
		Snapshots:     f.snapshots,
		Events:        f.bus,
		Clock:         clk,
		SnapshotEvery: snapshotEvery,
		Logger:        log,
	})

	owner, err := empire.NewService(empires, clk, log).CreateEmpire(ctx, "Lyra Compact", 10000, empire.RoleUser, nil)
	if err != nil {
		t.Fatalf("create empire: %v", err)
	}
	f.base, err = base.NewService(f.bases, cat, calc, clk, log).CreateBase(ctx, base.CreateParams{
		EmpireID:    owner.ID,
		Name:        "Foundry",
		Coordinate:  "03:33:07",
		Environment: "standard",
		TotalArea:   20,
		Population:  10,
		Structures:  database.Counts{"solar_plant": 2, "shipyard": 1},
		Units:       database.Counts{"fighter": 3},
	}, nil)
	if err != nil {
		t.Fatalf("create base: %v", err)
	}
	return f
}

func (f *fixture) enqueueRefinery(t *testing.T, level int) *queue.Item {
	t.Helper()
	item, err := f.manager.Enqueue(context.Background(), f.base.ID, eligibility.Request{
		Kind:        catalog.KindStructure,
		CatalogKey:  "metal_refinery",
		TargetLevel: level,
	})
	if err != nil {
		t.Fatalf("enqueue level %d: %v", level, err)
	}
	return item
}

func (f *fixture) tick(t *testing.T, d time.Duration) *TickReport {
	t.Helper()
	report, err := f.scheduler.Tick(context.Background(), f.clock.Advance(d))
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	return report
}

func (f *fixture) reloadBase(t *testing.T) *base.Base {
	t.Helper()
	b, err := f.bases.GetByID(context.Background(), f.base.ID, nil)
	if err != nil {
		t.Fatalf("reload base: %v", err)
	}
	return b
}

func TestTickCompletesExactlyOnce(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	item := f.enqueueRefinery(t, 1)
	sub := f.bus.Subscribe(16, func(e events.Event) bool { return e.Type == events.QueueCompleted })
	defer sub.Close()

	if r := f.tick(t, 20*time.Second); r.Advanced != 1 || len(r.Completed) != 0 {
		t.Fatalf("first tick = %+v", r)
	}
	if r := f.tick(t, 20*time.Second); r.Advanced != 1 || len(r.Completed) != 0 {
		t.Fatalf("second tick = %+v", r)
	}
	r := f.tick(t, 20*time.Second)
	if len(r.Completed) != 1 || r.Completed[0].QueueItemID != item.ID {
		t.Fatalf("third tick = %+v", r)
	}

	for i := 0; i < 5; i++ {
		if r := f.tick(t, 20*time.Second); len(r.Completed) != 0 || r.Advanced != 0 {
			t.Fatalf("tick after completion = %+v", r)
		}
	}

	b := f.reloadBase(t)
	if b.Structures["metal_refinery"] != 1 {
		t.Fatalf("refinery level = %d, want 1", b.Structures["metal_refinery"])
	}
	// 2 baseline + 2*5 solar - shipyard - refinery
	if b.EnergyProduced != 12 || b.EnergyConsumed != 2 {
		t.Fatalf("energy ledger = %d/%d, want 12/2", b.EnergyProduced, b.EnergyConsumed)
	}

	done, err := f.manager.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if done.Status != queue.StatusCompleted || done.CompletedAt == nil || done.ElapsedMs != 60000 {
		t.Fatalf("completed item = %+v", done)
	}

	report, err := f.manager.Energy(ctx, f.base.ID, f.calc)
	if err != nil {
		t.Fatalf("energy report: %v", err)
	}
	if len(report.Reservations) != 0 || report.Balance.Net != 10 {
		t.Fatalf("energy after completion = %+v", report)
	}

	received := 0
	for len(sub.C) > 0 {
		<-sub.C
		received++
	}
	if received != 1 {
		t.Fatalf("completion events = %d, want 1", received)
	}

	// The identity is free again, so the next level can be queued.
	f.enqueueRefinery(t, 2)
}

func TestIrregularTicksDoNotDrift(t *testing.T) {
	f := newFixture(t, 0)
	item := f.enqueueRefinery(t, 1)

	steps := []time.Duration{time.Millisecond, 17*time.Second + 333*time.Millisecond, 27*time.Second + 665*time.Millisecond}
	for _, d := range steps {
		if r := f.tick(t, d); len(r.Completed) != 0 {
			t.Fatalf("completed early after %v: %+v", d, r)
		}
	}

	r := f.tick(t, time.Millisecond)
	if len(r.Completed) != 1 || r.Completed[0].QueueItemID != item.ID {
		t.Fatalf("expected completion at exactly %dms: %+v", item.DurationMs, r)
	}
}

func TestTickRejectsRewind(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	first := f.tick(t, time.Second)
	if first.TickCount != 1 {
		t.Fatalf("tick count = %d, want 1", first.TickCount)
	}

	_, err := f.scheduler.Tick(ctx, f.clock.Now().Add(-time.Second))
	if errors.GetType(err) != errors.ErrorTypeValidation {
		t.Fatalf("rewind err = %v, want validation error", err)
	}

	same, err := f.scheduler.Tick(ctx, f.clock.Now())
	if err != nil {
		t.Fatalf("repeat tick: %v", err)
	}
	if same.TickCount != 2 || same.Advanced != 0 || len(same.Completed) != 0 {
		t.Fatalf("repeat tick = %+v", same)
	}
}

func TestCancelledItemNeverCompletes(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	item := f.enqueueRefinery(t, 1)

	f.tick(t, 30*time.Second)
	if _, _, err := f.manager.Cancel(ctx, item.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if r := f.tick(t, time.Hour); len(r.Completed) != 0 {
		t.Fatalf("cancelled item completed: %+v", r)
	}
	if lvl := f.reloadBase(t).Structures["metal_refinery"]; lvl != 0 {
		t.Fatalf("refinery level = %d, want 0", lvl)
	}
}

func TestTickLandsFleetsAndSnapshots(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	fl, err := f.fleets.Form(ctx, f.base.ID, "Scouts", database.Counts{"fighter": 3})
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	movement, err := f.fleets.Dispatch(ctx, fl.ID, spatial.Coordinate{Region: 3, System: 33, Body: 8})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	travel := fleet.TravelDuration(movement.TravelTimeHours)

	first := f.tick(t, travel/2)
	if first.Arrived != 0 || first.SnapshotID != "" {
		t.Fatalf("first tick = %+v", first)
	}
	second := f.tick(t, travel)
	if second.Arrived != 1 {
		t.Fatalf("second tick arrivals = %d, want 1", second.Arrived)
	}
	if second.SnapshotID == "" {
		t.Fatal("expected a snapshot on the second tick")
	}

	view, err := f.fleets.GetFleet(ctx, fl.ID)
	if err != nil {
		t.Fatalf("get fleet: %v", err)
	}
	if view.Coordinate != "03:33:08" {
		t.Fatalf("fleet coordinate = %s, want 03:33:08", view.Coordinate)
	}

	if n, err := f.snapshots.Verify(ctx); err != nil || n != 1 {
		t.Fatalf("snapshot chain = %d (%v), want 1", n, err)
	}
}

func TestRunTicksOnInterval(t *testing.T) {
	f := newFixture(t, 0)
	f.scheduler.interval = 10 * time.Millisecond
	item := f.enqueueRefinery(t, 1)
	f.clock.Advance(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.scheduler.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		got, err := f.manager.GetItem(context.Background(), item.ID)
		if err == nil && got.Status == queue.StatusCompleted {
			break
		}
		select {
		case <-deadline:
			cancel()
			t.Fatal("scheduler never completed the item")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
