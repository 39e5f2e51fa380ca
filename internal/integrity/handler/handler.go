package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rollguard/internal/integrity/models"
	dErrors "rollguard/pkg/domain-errors"
	"rollguard/pkg/platform/httputil"
	"rollguard/pkg/requestcontext"
)

type Service interface {
	Generate(ctx context.Context, constituencyID string) (*models.Certificate, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/audit/certificate/{constituencyID}", h.HandleCertificate)
}

type certificateResponse struct {
	Certificate *models.Certificate `json:"certificate"`
}

// HandleCertificate regenerates the certificate on every call; use ALL for
// every booth.
func (h *Handler) HandleCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	constituencyID := chi.URLParam(r, "constituencyID")

	cert, err := h.service.Generate(ctx, constituencyID)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to generate certificate",
				"request_id", requestcontext.RequestID(ctx),
				"constituency_id", constituencyID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, certificateResponse{Certificate: cert})
}
