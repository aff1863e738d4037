// Package app wires repositories and services on top of an open database.
// The HTTP server and planetsctl share it.
package app

import (
	"fmt"
	"log/slog"

	"planets-engine/internal/base"
	"planets-engine/internal/catalog"
	"planets-engine/internal/eligibility"
	"planets-engine/internal/empire"
	"planets-engine/internal/energy"
	"planets-engine/internal/events"
	"planets-engine/internal/fleet"
	"planets-engine/internal/queue"
	"planets-engine/internal/scheduler"
	"planets-engine/internal/shared/clock"
	"planets-engine/internal/shared/config"
	"planets-engine/internal/shared/database"
	"planets-engine/internal/shared/redis"
	"planets-engine/internal/snapshot"
	"planets-engine/internal/spatial"
)

type App struct {
	Config    *config.Config
	DB        *database.DB
	Redis     *redis.Client
	Catalog   *catalog.Catalog
	Energy    *energy.Calculator
	Metric    spatial.Metric
	Bus       *events.Bus
	Empires   *empire.Service
	Bases     *base.Service
	Queue     *queue.Manager
	Fleets    *fleet.Service
	State     *scheduler.StateRepository
	Snapshots *snapshot.Store
	Scheduler *scheduler.Scheduler
}

// New builds the application graph. rdb may be nil, in which case the
// scheduler runs with a local leader.
func New(cfg *config.Config, db *database.DB, rdb *redis.Client, clk clock.Clock, logger *slog.Logger) (*App, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	logger.Info("Catalog loaded", "entries", len(cat.Entries()), "path", cfg.Catalog.Path)

	a := &App{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Catalog: cat,
		Energy:  energy.NewCalculator(cat, cfg.Energy.ReservationAccounting),
		Metric:  spatial.MetricFromConfig(cfg.Movement),
		Bus:     events.NewBus(logger),
	}

	baseRepo := base.NewRepository(db, logger)
	empireRepo := empire.NewRepository(db, logger)
	queueRepo := queue.NewRepository(db, logger)

	a.Empires = empire.NewService(empireRepo, clk, logger)
	a.Bases = base.NewService(baseRepo, cat, a.Energy, clk, logger)
	a.Queue = queue.NewManager(queue.ManagerDeps{
		DB:            db,
		Repo:          queueRepo,
		Bases:         baseRepo,
		Empires:       empireRepo,
		Eligibility:   eligibility.NewService(cat, a.Energy, cfg.Queue),
		Events:        a.Bus,
		Clock:         clk,
		RefundPercent: cfg.Queue.CancelRefundPercent,
		Logger:        logger,
	})
	a.Fleets = fleet.NewService(fleet.ServiceDeps{
		DB:             db,
		Repo:           fleet.NewRepository(db, logger),
		Bases:          baseRepo,
		Catalog:        cat,
		Metric:         a.Metric,
		MinTravelHours: cfg.Movement.MinTravelHours,
		Events:         a.Bus,
		Clock:          clk,
		Logger:         logger,
	})

	var leader scheduler.Leader = scheduler.LocalLeader{}
	if rdb != nil {
		leader = scheduler.NewRedisLeader(rdb.Client, cfg.Scheduler.LeaderLockTTL, logger)
	}
	a.State = scheduler.NewStateRepository(db, logger)
	a.Snapshots = snapshot.NewStore(db, logger)
	a.Scheduler = scheduler.New(scheduler.Deps{
		DB:            db,
		Queue:         queueRepo,
		Bases:         baseRepo,
		Energy:        a.Energy,
		Fleets:        a.Fleets,
		State:         a.State,
		Snapshots:     a.Snapshots,
		Leader:        leader,
		Events:        a.Bus,
		Clock:         clk,
		Interval:      cfg.Scheduler.TickInterval,
		SnapshotEvery: cfg.Scheduler.SnapshotEveryTicks,
		Logger:        logger,
	})

	return a, nil
}
