package base

import (
	"context"
	"log/slog"
	"strings"

	"planets-engine/internal/catalog"
	"planets-engine/internal/energy"
	"planets-engine/internal/shared/clock"
	"planets-engine/internal/shared/database"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/spatial"

	"github.com/google/uuid"
)

type Service struct {
	repo    *Repository
	catalog *catalog.Catalog
	energy  *energy.Calculator
	clock   clock.Clock
	logger  *slog.Logger
}

func NewService(repo *Repository, cat *catalog.Catalog, calc *energy.Calculator, clk clock.Clock, logger *slog.Logger) *Service {
	logger.Debug("Initializing base service")

	return &Service{
		repo:    repo,
		catalog: cat,
		energy:  calc,
		clock:   clk,
		logger:  logger,
	}
}

type CreateParams struct {
	EmpireID    string
	Name        string
	Coordinate  string
	Environment string
	TotalArea   int
	Population  int
	Structures  database.Counts
	Techs       database.Counts
	Units       database.Counts
	Defenses    database.Counts
}

func (s *Service) CreateBase(ctx context.Context, p CreateParams, tx *database.Tx) (*Base, error) {
	logger := s.logger.With(
		"component", "base_service",
		"operation", "create_base",
		"empire_id", p.EmpireID,
		"coordinate", p.Coordinate,
	)

	coord, err := spatial.ParseCoordinate(p.Coordinate)
	if err != nil {
		return nil, errors.ValidationCode(errors.CodeInvalidCoordinate, err.Error())
	}
	if !s.catalog.HasEnvironment(p.Environment) {
		return nil, errors.Validationf("unknown environment %q", p.Environment)
	}
	if p.TotalArea <= 0 {
		return nil, errors.Validation("total area must be positive")
	}
	if p.Population < 0 {
		return nil, errors.Validation("population cannot be negative")
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "Base " + coord.String()
	}

	now := database.NewMillis(s.clock.Now())
	b := &Base{
		ID:          uuid.NewString(),
		EmpireID:    p.EmpireID,
		Name:        name,
		Coordinate:  coord.String(),
		Environment: p.Environment,
		TotalArea:   p.TotalArea,
		Population:  p.Population,
		Structures:  p.Structures.Clone(),
		Techs:       p.Techs.Clone(),
		Units:       p.Units.Clone(),
		Defenses:    p.Defenses.Clone(),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.RefreshEnergy(s.energy)

	if err := s.repo.Create(ctx, b, tx); err != nil {
		return nil, errors.WrapInternal("failed to create base", err)
	}

	logger.Info("Base created", "base_id", b.ID, "environment", b.Environment)
	return b, nil
}

func (s *Service) GetBase(ctx context.Context, id string) (*Base, error) {
	b, err := s.repo.GetByID(ctx, id, nil)
	if err != nil {
		return nil, errors.OrInternal("failed to load base", err)
	}
	return b, nil
}

func (s *Service) ListEmpireBases(ctx context.Context, empireID string) ([]Base, error) {
	bases, err := s.repo.ListByEmpire(ctx, empireID)
	if err != nil {
		return nil, errors.WrapInternal("failed to list bases", err)
	}
	return bases, nil
}

func (s *Service) GetBaseCount(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, errors.WrapInternal("failed to count bases", err)
	}
	return count, nil
}

// OwnerOf resolves the empire owning a base.
func (s *Service) OwnerOf(ctx context.Context, id string) (string, error) {
	b, err := s.GetBase(ctx, id)
	if err != nil {
		return "", err
	}
	return b.EmpireID, nil
}

// View is a base together with its derived capacity figures.
type View struct {
	*Base
	Capacity Capacity `json:"capacity"`
}

func (s *Service) Describe(b *Base) View {
	return View{Base: b, Capacity: b.Capacity(s.catalog)}
}
