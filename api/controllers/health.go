package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/kiranahub/kiranahub-backend/api/responses"
	"github.com/kiranahub/kiranahub-backend/pkg/config"
	"github.com/kiranahub/kiranahub-backend/pkg/db"
	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
	"github.com/kiranahub/kiranahub-backend/pkg/logger"
	"github.com/kiranahub/kiranahub-backend/pkg/redis"
)

const (
	envHeader          = "X-KiranaHub-Env"
	readinessTimeout   = 2 * time.Second
	dependencyStatusOK = "ok"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and, when configured, Redis. redisP may be nil.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		failed := false
		if dbP == nil {
			checks["database"] = "not configured"
			failed = true
		} else if err := dbP.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			failed = true
		} else {
			checks["database"] = dependencyStatusOK
		}

		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				checks["redis"] = err.Error()
				failed = true
			} else {
				checks["redis"] = dependencyStatusOK
			}
		}

		if failed {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "readiness check failed").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
