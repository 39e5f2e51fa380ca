// Package requestid tags each request with an id, reusing the caller's
// X-Request-ID or the active trace id when present.
package requestid

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"rollguard/pkg/requestcontext"
)

const Header = "X-Request-ID"

// maxLength bounds caller-supplied ids before they reach logs.
const maxLength = 128

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(Header))
		if id == "" || len(id) > maxLength {
			if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
				id = sc.TraceID().String()
			} else {
				id = uuid.NewString()
			}
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), id)))
	})
}
