// Package httptransport assembles the HTTP surface: middleware, public and
// authority routes, metrics and the dashboard event stream.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "rollguard/internal/auth/handler"
	flagshandler "rollguard/internal/flags/handler"
	integrityhandler "rollguard/internal/integrity/handler"
	"rollguard/internal/platform/metrics"
	pollaudithandler "rollguard/internal/pollaudit/handler"
	registryhandler "rollguard/internal/registry/handler"
	"rollguard/pkg/platform/httputil"
	"rollguard/pkg/platform/middleware/admin"
	authmw "rollguard/pkg/platform/middleware/auth"
	"rollguard/pkg/platform/middleware/metadata"
	"rollguard/pkg/platform/middleware/requestid"
	"rollguard/pkg/platform/middleware/requesttime"
)

// Dependencies are the handlers and cross-cutting pieces the router mounts.
type Dependencies struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Tokens       authmw.JWTValidator
	MetricsToken string
	// TrustedProxies may set the client origin through forwarding headers.
	TrustedProxies metadata.TrustedProxies

	Auth      *authhandler.Handler
	Registry  *registryhandler.Handler
	Flags     *flagshandler.Handler
	PollAudit *pollaudithandler.Handler
	Integrity *integrityhandler.Handler
	Authority *AuthorityHandler
	// Stream is the authority websocket endpoint.
	Stream http.Handler
}

// NewRouter wires every route. The websocket stream sits outside the latency
// middleware because the response writer is hijacked on upgrade.
func NewRouter(d Dependencies) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata(d.TrustedProxies))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.With(admin.RequireAdminToken(d.MetricsToken, logger)).Handle("/metrics", promhttp.Handler())

	if d.Stream != nil {
		r.With(authmw.RequireOperator(d.Tokens, logger)).Get("/ws/authority", d.Stream.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(metrics.LatencyMiddleware(d.Metrics))

		if d.Auth != nil {
			d.Auth.Register(r)
		}
		if d.Registry != nil {
			d.Registry.RegisterCitizen(r)
		}
		if d.PollAudit != nil {
			d.PollAudit.RegisterUploads(r)
		}
		if d.Integrity != nil {
			d.Integrity.Register(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireOperator(d.Tokens, logger))
			if d.Registry != nil {
				d.Registry.RegisterAuthority(r)
			}
			if d.Flags != nil {
				d.Flags.Register(r)
			}
			if d.PollAudit != nil {
				d.PollAudit.RegisterAuthority(r)
			}
			if d.Authority != nil {
				d.Authority.Register(r)
			}
		})
	})

	return r
}
