package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	redisplatform "cinelog/internal/platform/redis"
	"cinelog/pkg/platform/httputil"
)

type healthResponse struct {
	Status   string            `json:"status"`
	Backends map[string]string `json:"backends,omitempty"`
}

// healthHandler reports liveness plus the state of optional backends. Any
// failing backend turns the response into a 503.
func healthHandler(db *sql.DB, redisClient *redisplatform.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Backends: map[string]string{}}
		check := func(name string, err error) {
			if err != nil {
				resp.Status = "degraded"
				resp.Backends[name] = err.Error()
				return
			}
			resp.Backends[name] = "ok"
		}
		if db != nil {
			check("postgres", db.PingContext(ctx))
		}
		if redisClient != nil {
			check("redis", redisClient.Health(ctx))
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
