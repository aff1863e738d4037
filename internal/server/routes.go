package server

import (
	"log/slog"
	"net/http"

	"planets-engine/internal/auth"
	authHandlers "planets-engine/internal/auth/handlers"
	"planets-engine/internal/base"
	baseHandlers "planets-engine/internal/base/handlers"
	"planets-engine/internal/catalog"
	catalogHandlers "planets-engine/internal/catalog/handlers"
	"planets-engine/internal/empire"
	empireHandlers "planets-engine/internal/empire/handlers"
	"planets-engine/internal/energy"
	"planets-engine/internal/events"
	eventHandlers "planets-engine/internal/events/handlers"
	"planets-engine/internal/fleet"
	fleetHandlers "planets-engine/internal/fleet/handlers"
	"planets-engine/internal/middleware"
	"planets-engine/internal/queue"
	queueHandlers "planets-engine/internal/queue/handlers"
	"planets-engine/internal/scheduler"
	schedulerHandlers "planets-engine/internal/scheduler/handlers"
	serverHandlers "planets-engine/internal/server/handlers"
	"planets-engine/internal/shared/cookies"
	"planets-engine/internal/shared/database"
	"planets-engine/internal/shared/redis"
	"planets-engine/internal/spatial"
	spatialHandlers "planets-engine/internal/spatial/handlers"
)

// Dependencies bundles everything the HTTP layer needs. Redis may be nil.
type Dependencies struct {
	DB            *database.DB
	Redis         *redis.Client
	Catalog       *catalog.Catalog
	Energy        *energy.Calculator
	Signer        *auth.Signer
	Cookies       cookies.Settings
	Empires       *empire.Service
	Bases         *base.Service
	Queue         *queue.Manager
	Fleets        *fleet.Service
	Scheduler     *scheduler.Scheduler
	State         *scheduler.StateRepository
	Bus           *events.Bus
	Metric        spatial.Metric
	AllowedOrigin string
}

type Routes struct {
	deps   Dependencies
	logger *slog.Logger
}

func NewRoutes(deps Dependencies, logger *slog.Logger) *Routes {
	return &Routes{
		deps:   deps,
		logger: logger,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := r.logger.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()
	d := r.deps

	authn := middleware.NewAuthenticator(d.Signer)
	ownsBase := middleware.NewOwnership("base", d.Bases.OwnerOf).Require
	ownsItem := middleware.NewOwnership("queue item", d.Queue.OwnerOf).Require
	ownsFleet := middleware.NewOwnership("fleet", d.Fleets.OwnerOf).Require
	ownsMovement := middleware.NewOwnership("movement", d.Fleets.MovementOwner).Require

	protected := func(h http.HandlerFunc) http.Handler {
		return authn.JWTMiddleware(h)
	}
	owned := func(own func(http.Handler) http.Handler, h http.HandlerFunc) http.Handler {
		return authn.JWTMiddleware(own(h))
	}

	healthHandler := serverHandlers.NewHealthHandler(d.DB, d.Redis, d.State)
	statusHandler := serverHandlers.NewStatusHandler(d.Empires, d.Bases, d.State, d.Bus)
	empiresHandler := empireHandlers.NewEmpiresHandler(d.Empires)
	catalogHandler := catalogHandlers.NewCatalogHandler(d.Catalog)
	sessionHandler := authHandlers.NewSessionHandler(d.Signer, d.Cookies)
	meHandler := empireHandlers.NewMeHandler(d.Empires)
	baseHandler := baseHandlers.NewBaseHandler(d.Bases)
	queueHandler := queueHandlers.NewQueueHandler(d.Queue, d.Energy)
	fleetHandler := fleetHandlers.NewFleetHandler(d.Fleets)
	spatialHandler := spatialHandlers.NewSpatialHandler(d.Metric)
	streamHandler := eventHandlers.NewStreamHandler(d.Bus, d.AllowedOrigin)
	adminHandler := schedulerHandlers.NewAdminHandler(d.Scheduler)

	// Public endpoints
	mux.Handle("/api/server/health", healthHandler)
	mux.Handle("/api/status", statusHandler)
	mux.Handle("/api/catalog", catalogHandler)

	// Protected endpoints (authenticated empires)
	mux.Handle("/api/empires/me", authn.JWTMiddleware(meHandler))
	mux.Handle("/api/bases", protected(baseHandler.ListMine))
	mux.Handle("/api/fleets", protected(fleetHandler.ListMine))
	mux.Handle("/api/spatial/distance", protected(spatialHandler.GetDistance))
	mux.Handle("/api/events/ws", authn.JWTMiddleware(streamHandler))

	// Resource endpoints (authenticated + owner)
	mux.Handle("/api/bases/{id}", owned(ownsBase, baseHandler.GetBase))
	mux.Handle("/api/bases/{id}/energy", owned(ownsBase, queueHandler.Energy))
	mux.Handle("/api/bases/{id}/eligibility", owned(ownsBase, queueHandler.Eligibility))
	mux.Handle("/api/bases/{id}/queues", owned(ownsBase, queueHandler.List))
	mux.Handle("/api/bases/{id}/queues/{kind}", owned(ownsBase, queueHandler.Enqueue))
	mux.Handle("/api/bases/{id}/fleets", owned(ownsBase, fleetHandler.Form))
	mux.Handle("/api/queue-items/{id}/cancel", owned(ownsItem, queueHandler.Cancel))
	mux.Handle("/api/fleets/{id}", owned(ownsFleet, fleetHandler.GetFleet))
	mux.Handle("/api/fleets/{id}/dispatch", owned(ownsFleet, fleetHandler.Dispatch))
	mux.Handle("/api/fleets/{id}/estimate", owned(ownsFleet, fleetHandler.Estimate))
	mux.Handle("/api/movements/{id}/recall", owned(ownsMovement, fleetHandler.Recall))

	// Admin-only endpoints (authenticated + admin role)
	mux.Handle("/api/admin/tick", authn.RequireAdmin(http.HandlerFunc(adminHandler.Tick)))
	mux.Handle("/api/admin/empires", authn.RequireAdmin(empiresHandler))

	// Session endpoints
	mux.Handle("/auth/session", protected(sessionHandler.Create))
	mux.HandleFunc("/auth/logout", sessionHandler.Logout)

	logger.Info("Routes configured successfully",
		"public_endpoints", []string{"/api/server/health", "/api/status", "/api/catalog"},
		"protected_endpoints", []string{"/api/empires/me", "/api/bases", "/api/fleets", "/api/spatial/distance", "/api/events/ws"},
		"owned_endpoints", []string{"/api/bases/{id}/...", "/api/queue-items/{id}/cancel", "/api/fleets/{id}/...", "/api/movements/{id}/recall"},
		"admin_endpoints", []string{"/api/admin/tick", "/api/admin/empires"},
		"auth_endpoints", []string{"/auth/session", "/auth/logout"},
	)

	return mux
}
