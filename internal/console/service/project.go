package service

import (
	"context"

	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

// ProjectRepository описывает требования сервиса к хранилищу проектов
type ProjectRepository interface {
	ListProjects(ctx context.Context) ([]domain.Project, error)
	GetProject(ctx context.Context, id int64) (*domain.Project, error)
	CreateProject(ctx context.Context, in domain.ProjectCreate) (*domain.Project, error)
	UpdateProject(ctx context.Context, p *domain.Project) (*domain.Project, error)
	DeleteProject(ctx context.Context, id int64) error
}

type ProjectService struct {
	repo   ProjectRepository
	logger *zap.Logger
}

func NewProjectService(repo ProjectRepository, logger *zap.Logger) *ProjectService {
	return &ProjectService{repo: repo, logger: logger.Named("project-service")}
}

func (s *ProjectService) List(ctx context.Context) ([]domain.Project, error) {
	return s.repo.ListProjects(ctx)
}

func (s *ProjectService) Get(ctx context.Context, id int64) (*domain.Project, error) {
	return s.repo.GetProject(ctx, id)
}

func (s *ProjectService) Create(ctx context.Context, in domain.ProjectCreate) (*domain.Project, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, err := s.repo.CreateProject(ctx, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("project created", zap.Int64("id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// Update накладывает частичное обновление на текущее состояние проекта.
func (s *ProjectService) Update(ctx context.Context, id int64, in domain.ProjectUpdate) (*domain.Project, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	current, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	in.Apply(current)
	return s.repo.UpdateProject(ctx, current)
}

func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.logger.Info("project deleted", zap.Int64("id", id))
	return nil
}
