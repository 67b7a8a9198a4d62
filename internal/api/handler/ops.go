// Package handler provides HTTP handlers for the PEMS conformity API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/pemsgate/pemsgate/internal/api/models"
	"github.com/pemsgate/pemsgate/internal/api/response"
)

// ReadyFunc reports whether the service's dependencies are reachable.
type ReadyFunc func(ctx context.Context) error

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version     string
	buildTime   string
	ruleSet     string
	ruleVersion string
	ready       ReadyFunc
}

// NewOpsHandler creates a new OpsHandler. A nil ready func makes the
// readiness check unconditionally pass.
func NewOpsHandler(version, buildTime, ruleSet, ruleVersion string, ready ReadyFunc) *OpsHandler {
	return &OpsHandler{
		version:     version,
		buildTime:   buildTime,
		ruleSet:     ruleSet,
		ruleVersion: ruleVersion,
		ready:       ready,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			response.ServiceUnavailable(w, r, "dependency check failed: "+err.Error())
			return
		}
	}
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - loaded rule set and
// subsystem state.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(time.Now()),
		RuleSet: h.ruleSet,
		Version: h.ruleVersion,
	}

	storage := models.SubsystemStatus{Name: "report-storage", Status: models.HealthStatusOK}
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			detail := err.Error()
			storage.Status = models.HealthStatusFail
			storage.Detail = &detail
			status.Status = models.HealthStatusDegraded
		}
	}
	status.Subsystems = append(status.Subsystems, storage)

	response.JSON(w, r, http.StatusOK, status)
}
