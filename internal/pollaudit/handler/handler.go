package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rollguard/internal/pollaudit/models"
	dErrors "rollguard/pkg/domain-errors"
	"rollguard/pkg/platform/httputil"
	"rollguard/pkg/requestcontext"
)

// Service is the audit orchestrator consumed by the upload and booth endpoints.
type Service interface {
	IngestBatch(ctx context.Context, req *models.UploadBatchRequest) (*models.BatchReceipt, error)
	IngestSummary(ctx context.Context, req *models.UploadSummaryRequest) (*models.SummaryReceipt, error)
	RecordsByBooth(ctx context.Context, boothID string) ([]*models.Form17ARecord, error)
	Summary(ctx context.Context, boothID string) (*models.Form17CSummary, error)
	BoothRisk(ctx context.Context, boothID string) (*models.BoothRisk, error)
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

// RegisterUploads mounts the Form 17A and 17C upload routes.
func (h *Handler) RegisterUploads(r chi.Router) {
	r.Post("/api/audit/form17a/upload", h.HandleUploadForm17A)
	r.Post("/api/audit/form17c/upload", h.HandleUploadForm17C)
}

// RegisterAuthority mounts booth routes. Callers wrap r with operator auth.
func (h *Handler) RegisterAuthority(r chi.Router) {
	r.Get("/api/authority/booth/{boothID}/risk", h.HandleBoothRisk)
	r.Get("/api/authority/booth/{boothID}/form17a", h.HandleBoothRecords)
	r.Get("/api/authority/booth/{boothID}/form17c", h.HandleBoothSummary)
}

func (h *Handler) HandleUploadForm17A(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.UploadBatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	receipt, err := h.service.IngestBatch(ctx, req)
	if err != nil {
		h.fail(ctx, w, err, "failed to ingest form17a batch", "booth_id", req.BoothID)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) HandleUploadForm17C(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.UploadSummaryRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	receipt, err := h.service.IngestSummary(ctx, req)
	if err != nil {
		h.fail(ctx, w, err, "failed to ingest form17c summary", "booth_id", req.BoothID)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, receipt)
}

type boothRiskResponse struct {
	Summary *models.BoothRisk `json:"summary"`
}

func (h *Handler) HandleBoothRisk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	boothID := chi.URLParam(r, "boothID")
	risk, err := h.service.BoothRisk(ctx, boothID)
	if err != nil {
		h.fail(ctx, w, err, "failed to compute booth risk", "booth_id", boothID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, boothRiskResponse{Summary: risk})
}

type recordsResponse struct {
	BoothID string                  `json:"booth_id"`
	Records []*models.Form17ARecord `json:"records"`
	Count   int                     `json:"count"`
}

func (h *Handler) HandleBoothRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	boothID := chi.URLParam(r, "boothID")
	records, err := h.service.RecordsByBooth(ctx, boothID)
	if err != nil {
		h.fail(ctx, w, err, "failed to load form17a records", "booth_id", boothID)
		return
	}
	if records == nil {
		records = []*models.Form17ARecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, recordsResponse{BoothID: boothID, Records: records, Count: len(records)})
}

type summaryResponse struct {
	Summary *models.Form17CSummary `json:"summary"`
}

func (h *Handler) HandleBoothSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	boothID := chi.URLParam(r, "boothID")
	summary, err := h.service.Summary(ctx, boothID)
	if err != nil {
		h.fail(ctx, w, err, "failed to load form17c summary", "booth_id", boothID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summaryResponse{Summary: summary})
}

// fail logs internal errors and writes the mapped error response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error, msg string, attrs ...any) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		args := append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, attrs...)
		h.logger.ErrorContext(ctx, msg, args...)
	}
	httputil.WriteError(w, err)
}
