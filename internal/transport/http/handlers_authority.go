package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	registrymodels "rollguard/internal/registry/models"
	riskmodels "rollguard/internal/risk/models"
	dErrors "rollguard/pkg/domain-errors"
	"rollguard/pkg/platform/audit"
	"rollguard/pkg/platform/httputil"
	"rollguard/pkg/requestcontext"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

type RequestQueue interface {
	QueueStats(ctx context.Context) (registrymodels.QueueStats, error)
	RollSize(ctx context.Context) (int, error)
}

type FlagLister interface {
	List(ctx context.Context, filter riskmodels.FlagFilter) ([]*riskmodels.Flag, error)
}

type EventLog interface {
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
	ListByAction(ctx context.Context, action audit.AuditEvent) ([]audit.Event, error)
}

// AuthorityHandler serves the dashboard overview endpoints that read across
// modules.
type AuthorityHandler struct {
	queue  RequestQueue
	flags  FlagLister
	events EventLog
	logger *slog.Logger
}

func NewAuthorityHandler(queue RequestQueue, flags FlagLister, events EventLog, logger *slog.Logger) *AuthorityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorityHandler{queue: queue, flags: flags, events: events, logger: logger}
}

func (h *AuthorityHandler) Register(r chi.Router) {
	r.Get("/api/authority/stats", h.HandleStats)
	r.Get("/api/authority/events", h.HandleEvents)
}

type statsResponse struct {
	PendingRequests  int `json:"pending_requests"`
	HighRiskRequests int `json:"high_risk_requests"`
	TotalFlags       int `json:"total_flags"`
	HighRiskFlags    int `json:"high_risk_flags"`
	VotersRegistered int `json:"voters_registered"`
}

// HandleStats reports queue depth, open flag counts and roll size.
func (h *AuthorityHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		stats registrymodels.QueueStats
		open  []*riskmodels.Flag
		roll  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = h.queue.QueueStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		open, err = h.flags.List(gctx, riskmodels.FlagFilter{Resolved: riskmodels.Unresolved()})
		return err
	})
	g.Go(func() error {
		var err error
		roll, err = h.queue.RollSize(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.ErrorContext(ctx, "failed to build authority stats",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := statsResponse{
		PendingRequests:  stats.Pending,
		HighRiskRequests: stats.HighRiskPending,
		TotalFlags:       len(open),
		VotersRegistered: roll,
	}
	for _, f := range open {
		if f.Tier.IsHighSeverity() {
			resp.HighRiskFlags++
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type eventsResponse struct {
	Events []audit.Event `json:"events"`
	Count  int           `json:"count"`
}

// HandleEvents returns recent events, newest first, so a dashboard can
// backfill before subscribing to the stream. ?action= narrows to one type.
func (h *AuthorityHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		limit = min(n, maxEventLimit)
	}

	var (
		events []audit.Event
		err    error
	)
	if action := r.URL.Query().Get("action"); action != "" {
		events, err = h.events.ListByAction(ctx, audit.AuditEvent(action))
		if len(events) > limit {
			events = events[len(events)-limit:]
		}
		reverse(events)
	} else {
		events, err = h.events.ListRecent(ctx, limit)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list events",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events"))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, eventsResponse{Events: events, Count: len(events)})
}

func reverse(events []audit.Event) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
