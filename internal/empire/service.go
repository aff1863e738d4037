package empire

import (
	"context"
	"log/slog"
	"strings"

	"planets-engine/internal/shared/clock"
	"planets-engine/internal/shared/database"
	"planets-engine/internal/shared/errors"

	"github.com/google/uuid"
)

type Service struct {
	repo   *Repository
	clock  clock.Clock
	logger *slog.Logger
}

func NewService(repo *Repository, clk clock.Clock, logger *slog.Logger) *Service {
	logger.Debug("Initializing empire service")

	return &Service{
		repo:   repo,
		clock:  clk,
		logger: logger,
	}
}

func (s *Service) GetEmpire(ctx context.Context, id string) (*Empire, error) {
	e, err := s.repo.GetByID(ctx, id, nil)
	if err != nil {
		if errors.GetType(err) == errors.ErrorTypeNotFound {
			return nil, err
		}
		return nil, errors.WrapInternal("failed to load empire", err)
	}
	return e, nil
}

func (s *Service) GetAllEmpires(ctx context.Context) ([]Empire, error) {
	empires, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, errors.WrapInternal("failed to list empires", err)
	}
	return empires, nil
}

func (s *Service) GetEmpireCount(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, errors.WrapInternal("failed to count empires", err)
	}
	return count, nil
}

func (s *Service) CreateEmpire(ctx context.Context, name string, credits int64, role Role, tx *database.Tx) (*Empire, error) {
	logger := s.logger.With(
		"component", "empire_service",
		"operation", "create_empire",
		"name", name,
	)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Validation("empire name is required")
	}
	if credits < 0 {
		return nil, errors.Validation("starting credits cannot be negative")
	}
	if !role.IsValid() {
		role = RoleUser
	}

	now := database.NewMillis(s.clock.Now())
	e := &Empire{
		ID:        uuid.NewString(),
		Name:      name,
		Role:      role,
		Credits:   credits,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, e, tx); err != nil {
		return nil, errors.WrapInternal("failed to create empire", err)
	}

	logger.Info("Empire created", "empire_id", e.ID, "role", e.Role)
	return e, nil
}
