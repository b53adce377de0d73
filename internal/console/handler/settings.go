package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

type SettingsManager interface {
	ListLabels(ctx context.Context) ([]domain.LabelPolicy, error)
	UpsertLabel(ctx context.Context, label string, in domain.LabelPolicyUpdate) (*domain.LabelPolicy, error)
	Toggles(ctx context.Context) (domain.DetectionToggles, error)
	UpdateToggles(ctx context.Context, in domain.DetectionTogglesUpdate) (domain.DetectionToggles, error)
	System(ctx context.Context) (domain.SystemSettings, error)
	UpdateSystem(ctx context.Context, in domain.SystemSettingsUpdate) (domain.SystemSettings, error)
}

// SettingsHandler обслуживает /detection-settings и /system-settings.
type SettingsHandler struct {
	svc    SettingsManager
	logger *zap.Logger
}

func NewSettingsHandler(svc SettingsManager, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{svc: svc, logger: logger.Named("settings-handler")}
}

func (h *SettingsHandler) ListLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := h.svc.ListLabels(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if labels == nil {
		labels = []domain.LabelPolicy{}
	}
	writeJSON(w, http.StatusOK, labels)
}

func (h *SettingsHandler) UpsertLabel(w http.ResponseWriter, r *http.Request) {
	var in domain.LabelPolicyUpdate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.UpsertLabel(r.Context(), chi.URLParam(r, "label"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *SettingsHandler) Toggles(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Toggles(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *SettingsHandler) UpdateToggles(w http.ResponseWriter, r *http.Request) {
	var in domain.DetectionTogglesUpdate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	t, err := h.svc.UpdateToggles(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *SettingsHandler) System(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.System(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SettingsHandler) UpdateSystem(w http.ResponseWriter, r *http.Request) {
	var in domain.SystemSettingsUpdate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	s, err := h.svc.UpdateSystem(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
