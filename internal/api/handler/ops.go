// Package handler provides HTTP handlers for the AERONET API server.
package handler

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/aerosolkit/aeronet/internal/api/models"
	"github.com/aerosolkit/aeronet/internal/api/response"
	"github.com/aerosolkit/aeronet/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler. registry may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// An open circuit to AERONET reports DEGRADED: cached queries still work.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: h.overallStatus(h.providers()),
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - upstream provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	providers := h.providers()
	status := models.SystemStatus{
		Status:    h.overallStatus(providers),
		Time:      models.Timestamp(time.Now()),
		Providers: providers,
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) providers() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.registry.Snapshot()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, p := range all {
		ps := models.ProviderStatus{
			Provider:            p.Name,
			Status:              providerStatus(p),
			CircuitState:        p.CircuitState.String(),
			ConsecutiveFailures: int(p.Counts.ConsecutiveFailures),
			LastSuccessAt:       timestampPtr(p.LastSuccessAt),
			LastFailureAt:       timestampPtr(p.LastFailureAt),
		}
		if p.LastError != "" {
			msg := p.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}

func (h *OpsHandler) overallStatus(providers []models.ProviderStatus) models.HealthStatus {
	for _, p := range providers {
		if p.Status != models.HealthStatusOK {
			return models.HealthStatusDegraded
		}
	}
	return models.HealthStatusOK
}

func providerStatus(p resilience.ProviderHealth) models.HealthStatus {
	switch p.CircuitState {
	case gobreaker.StateOpen:
		return models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

func timestampPtr(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	ts := models.Timestamp(*t)
	return &ts
}
