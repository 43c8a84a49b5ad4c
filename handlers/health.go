package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/semantic-retrieval/app"
)

// HealthCheck returns a simple liveness handler
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// ReadinessCheck performs a more thorough readiness check
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		ready := true

		// The structured protocol is optional; only a configured, failing
		// connection marks the service not ready
		if deps.DB == nil {
			checks["structured_backend"] = "not_configured"
		} else if err := deps.DB.PingContext(ctx); err != nil {
			ready = false
			checks["structured_backend"] = "unhealthy"
			deps.Logger.Error("structured backend health check failed", zap.Error(err))
		} else {
			checks["structured_backend"] = "healthy"
		}

		if deps.BackendRegistry.Count() == 0 {
			ready = false
			checks["backends"] = "none_registered"
		} else {
			checks["backends"] = "registered"
		}

		response := map[string]interface{}{
			"status": "ready",
			"checks": checks,
		}

		w.Header().Set("Content-Type", "application/json")
		if ready {
			w.WriteHeader(http.StatusOK)
		} else {
			response["status"] = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(response)
	}
}

// StatusHandler returns application status information
func StatusHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"version":     "0.1.0",
			"environment": deps.Config.Environment,
			"backends":    deps.BackendRegistry.Count(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
