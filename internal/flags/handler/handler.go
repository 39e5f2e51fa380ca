package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"rollguard/internal/risk/models"
	id "rollguard/pkg/domain"
	dErrors "rollguard/pkg/domain-errors"
	"rollguard/pkg/platform/httputil"
	"rollguard/pkg/requestcontext"
)

// Service is the flag service consumed by the authority endpoints.
type Service interface {
	List(ctx context.Context, filter models.FlagFilter) ([]*models.Flag, error)
	Resolve(ctx context.Context, flagID id.FlagID, by string) (*models.Flag, error)
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

// Register mounts the flag routes. Callers are expected to wrap r with
// operator authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/authority/flags", h.HandleList)
	r.Post("/api/authority/flag/{id}/resolve", h.HandleResolve)
}

type listResponse struct {
	Flags []*models.Flag `json:"flags"`
	Count int            `json:"count"`
}

// HandleList lists flags filtered by risk_level, entity_type, resolved,
// booth_id and rule_id query parameters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	filter, err := parseFilter(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid flag filter",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	flags, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list flags",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if flags == nil {
		flags = []*models.Flag{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Flags: flags, Count: len(flags)})
}

type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

func (r *resolveRequest) Validate() error {
	r.ResolvedBy = strings.TrimSpace(r.ResolvedBy)
	return nil
}

// HandleResolve resolves a flag. The body is optional; the resolver defaults
// to the authenticated operator.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	flagID, err := id.ParseFlagID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	by := ""
	if r.ContentLength > 0 {
		req, ok := httputil.DecodeAndPrepare[resolveRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		by = req.ResolvedBy
	}

	flag, err := h.service.Resolve(ctx, flagID, by)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to resolve flag",
				"request_id", requestID,
				"flag_id", flagID.String(),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, flag)
}

func parseFilter(r *http.Request) (models.FlagFilter, error) {
	q := r.URL.Query()
	var filter models.FlagFilter

	for _, raw := range q["risk_level"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			tier, err := models.ParseTier(part)
			if err != nil {
				return filter, err
			}
			filter.Tiers = append(filter.Tiers, tier)
		}
	}
	if v := q.Get("entity_type"); v != "" {
		et, err := models.ParseEntityType(v)
		if err != nil {
			return filter, err
		}
		filter.EntityType = et
	}
	if v := q.Get("resolved"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeBadRequest, "resolved must be true or false")
		}
		filter.Resolved = &b
	}
	filter.RuleID = models.RuleID(strings.TrimSpace(q.Get("rule_id")))
	filter.BoothID = strings.TrimSpace(q.Get("booth_id"))
	return filter, nil
}
