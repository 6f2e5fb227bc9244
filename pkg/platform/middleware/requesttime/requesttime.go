// Package requesttime captures one "now" per request so token verification,
// audit timestamps and store writes agree on the instant.
package requesttime

import (
	"net/http"
	"time"

	"cinelog/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
