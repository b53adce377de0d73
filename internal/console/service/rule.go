package service

import (
	"context"

	"github.com/xela07ax/dlp-guard/internal/domain"
)

type RuleRepository interface {
	ListDetectionRules(ctx context.Context) ([]domain.DetectionRule, error)
	SetDetectionRuleActive(ctx context.Context, id int64, active bool) (*domain.DetectionRule, error)
}

type RuleService struct {
	repo RuleRepository
}

func NewRuleService(repo RuleRepository) *RuleService {
	return &RuleService{repo: repo}
}

func (s *RuleService) List(ctx context.Context) ([]domain.DetectionRule, error) {
	return s.repo.ListDetectionRules(ctx)
}

func (s *RuleService) Update(ctx context.Context, id int64, in domain.DetectionRuleUpdate) (*domain.DetectionRule, error) {
	if in.IsActive == nil {
		return nil, domain.InvalidArgument("is_active is required")
	}
	return s.repo.SetDetectionRuleActive(ctx, id, *in.IsActive)
}
