// Package requesttime pins one "now" per request so flags, events and audit
// logs raised by the same call share a timestamp.
package requesttime

import (
	"net/http"
	"time"

	"rollguard/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
