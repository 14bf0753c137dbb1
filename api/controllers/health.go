package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gasflowhq/gasflow-backend/api/responses"
	"github.com/gasflowhq/gasflow-backend/pkg/config"
	"github.com/gasflowhq/gasflow-backend/pkg/logger"
)

// ReadinessPinger is implemented by the backing stores checked on /ready.
type ReadinessPinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Gasflow-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and redis before declaring readiness.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]ReadinessPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Gasflow-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		ready := true
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				ready = false
				checks[name] = "down"
				if logg != nil {
					logg.Error(ctx, "readiness check failed: "+name, err)
				}
				continue
			}
			checks[name] = "up"
		}

		status := http.StatusOK
		body := map[string]any{"status": "ready", "checks": checks}
		if !ready {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
		responses.WriteSuccessStatus(w, status, body)
	}
}
