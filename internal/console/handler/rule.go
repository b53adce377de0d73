package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

type RuleManager interface {
	List(ctx context.Context) ([]domain.DetectionRule, error)
	Update(ctx context.Context, id int64, in domain.DetectionRuleUpdate) (*domain.DetectionRule, error)
}

type RuleHandler struct {
	svc    RuleManager
	logger *zap.Logger
}

func NewRuleHandler(svc RuleManager, logger *zap.Logger) *RuleHandler {
	return &RuleHandler{svc: svc, logger: logger.Named("rule-handler")}
}

func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if rules == nil {
		rules = []domain.DetectionRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in domain.DetectionRuleUpdate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rule, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}
