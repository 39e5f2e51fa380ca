package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"rollguard/internal/registry/models"
	riskmodels "rollguard/internal/risk/models"
	id "rollguard/pkg/domain"
	dErrors "rollguard/pkg/domain-errors"
	"rollguard/pkg/platform/httputil"
	"rollguard/pkg/requestcontext"
)

// Service is the registry orchestration used by the citizen and authority endpoints.
type Service interface {
	Submit(ctx context.Context, req *models.SubmitRequest) (*models.VoterRequest, error)
	Track(ctx context.Context, q *models.TrackRequest) (*models.VoterRequest, error)
	FindVoterByDocument(ctx context.Context, document string) (*models.VoterRecord, error)
	List(ctx context.Context, filter models.RequestFilter) ([]*models.VoterRequest, error)
	UpdateStatus(ctx context.Context, requestID id.VoterRequestID, status models.RequestStatus, by string) (*models.VoterRequest, error)
	Approve(ctx context.Context, requestID id.VoterRequestID, by string) (*models.VoterRequest, error)
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

// RegisterCitizen mounts the unauthenticated citizen routes.
func (h *Handler) RegisterCitizen(r chi.Router) {
	r.Post("/api/voter/request", h.HandleSubmit)
	r.Post("/api/voter/track-status", h.HandleTrack)
	r.Get("/api/voter/epic/{document}", h.HandleVoter)
}

// RegisterAuthority mounts the review routes; r must enforce operator auth.
func (h *Handler) RegisterAuthority(r chi.Router) {
	r.Get("/api/authority/voter-requests", h.HandleList)
	r.Post("/api/authority/voter-request/{id}/status", h.HandleUpdateStatus)
	r.Post("/api/authority/voter-request/{id}/approve", h.HandleApprove)
}

type requestResponse struct {
	Request *models.VoterRequest `json:"request"`
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	vr, err := h.service.Submit(ctx, req)
	if err != nil {
		h.fail(ctx, w, "failed to submit voter request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, requestResponse{Request: vr})
}

func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	q, ok := httputil.DecodeAndPrepare[models.TrackRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	vr, err := h.service.Track(ctx, q)
	if err != nil {
		h.fail(ctx, w, "failed to track voter request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, requestResponse{Request: vr})
}

func (h *Handler) HandleVoter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.service.FindVoterByDocument(ctx, chi.URLParam(r, "document"))
	if err != nil {
		h.fail(ctx, w, "failed to look up voter", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"voter": rec})
}

type listResponse struct {
	Requests []*models.VoterRequest `json:"requests"`
	Count    int                    `json:"count"`
}

// HandleList lists requests filtered by status, risk_level and request_type.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reqs, err := h.service.List(ctx, filter)
	if err != nil {
		h.fail(ctx, w, "failed to list voter requests", err)
		return
	}
	if reqs == nil {
		reqs = []*models.VoterRequest{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Requests: reqs, Count: len(reqs)})
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	voterRequestID, err := id.ParseVoterRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	body, ok := httputil.DecodeAndPrepare[models.StatusUpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	vr, err := h.service.UpdateStatus(ctx, voterRequestID, body.Status, body.UpdatedBy)
	if err != nil {
		h.fail(ctx, w, "failed to update request status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, requestResponse{Request: vr})
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	voterRequestID, err := id.ParseVoterRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	vr, err := h.service.Approve(ctx, voterRequestID, "")
	if err != nil {
		h.fail(ctx, w, "failed to approve request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, requestResponse{Request: vr})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func parseFilter(r *http.Request) (models.RequestFilter, error) {
	q := r.URL.Query()
	var filter models.RequestFilter
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		st, err := models.ParseRequestStatus(v)
		if err != nil {
			return filter, err
		}
		filter.Status = st
	}
	if v := strings.TrimSpace(q.Get("risk_level")); v != "" {
		tier, err := riskmodels.ParseTier(v)
		if err != nil {
			return filter, err
		}
		filter.Tier = tier
	}
	if v := strings.TrimSpace(q.Get("request_type")); v != "" {
		t, err := models.ParseRequestType(v)
		if err != nil {
			return filter, err
		}
		filter.Type = t
	}
	return filter, nil
}
