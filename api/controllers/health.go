package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/chromecollective/marketplace-backend/api/responses"
	"github.com/chromecollective/marketplace-backend/pkg/config"
	pkgerrors "github.com/chromecollective/marketplace-backend/pkg/errors"
	"github.com/chromecollective/marketplace-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is satisfied by every backing client checked by readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency names a backing service for the readiness report. A failing Optional
// dependency is reported as degraded without failing readiness.
type Dependency struct {
	Name     string
	Pinger   Pinger
	Optional bool
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Chrome-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each dependency and reports 503 naming the failed dependencies when
// any of them is down. Ping errors are logged, never returned. Nil pingers are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps ...Dependency) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Chrome-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		failed := map[string]string{}
		for _, dep := range deps {
			if dep.Pinger == nil {
				checks[dep.Name] = "disabled"
				continue
			}
			if err := dep.Pinger.Ping(ctx); err != nil {
				status := "down"
				if dep.Optional {
					status = "degraded"
				}
				if logg != nil {
					logCtx := logg.WithFields(r.Context(), map[string]any{"dependency": dep.Name, "status": status})
					logg.Error(logCtx, "health.dependency_failed", err)
				}
				checks[dep.Name] = status
				if !dep.Optional {
					failed[dep.Name] = status
				}
				continue
			}
			checks[dep.Name] = "ok"
		}

		if len(failed) > 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(failed))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
