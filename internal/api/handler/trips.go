package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pemsgate/pemsgate/internal/api/middleware"
	"github.com/pemsgate/pemsgate/internal/api/response"
	"github.com/pemsgate/pemsgate/internal/report"
	"github.com/pemsgate/pemsgate/internal/trip"
)

// TripHandler handles evaluation runs and stored reports.
type TripHandler struct {
	service *trip.Service
	metrics *middleware.EvaluationMetrics
	log     zerolog.Logger
}

// NewTripHandler creates a new TripHandler. Metrics may be nil.
func NewTripHandler(service *trip.Service, metrics *middleware.EvaluationMetrics, log zerolog.Logger) *TripHandler {
	return &TripHandler{service: service, metrics: metrics, log: log}
}

// Evaluate handles POST /v1/trips/{tripId}/evaluate. The body carries
// the raw telemetry tables, their column mappings, calibration records
// and optional per-run limit overrides. The resulting report bundle is
// persisted and returned.
func (h *TripHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")

	var req trip.EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body: "+err.Error(), nil)
		return
	}

	start := time.Now()
	bundle, created, err := h.service.Evaluate(r.Context(), tripID, req)
	if h.metrics != nil {
		overall := ""
		if bundle != nil {
			overall = string(bundle.Overall)
		}
		h.metrics.RecordRun(overall, req.Demo, time.Since(start), err)
	}
	if err != nil {
		if trip.IsInvalid(err) {
			response.UnprocessableEntity(w, r, err.Error())
			return
		}
		h.log.Error().Err(err).Str("trip_id", tripID).Msg("evaluation failed")
		response.InternalError(w, r, "evaluation failed")
		return
	}

	if created {
		response.Created(w, r, "/v1/reports/"+tripID, bundle)
		return
	}
	response.JSON(w, r, http.StatusOK, bundle)
}

// GetReport handles GET /v1/reports/{tripId}.
func (h *TripHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")

	stored, err := h.service.Report(r.Context(), tripID)
	if err != nil {
		if errors.Is(err, report.ErrReportNotFound) {
			response.NotFound(w, r, "no report for trip "+tripID)
			return
		}
		h.log.Error().Err(err).Str("trip_id", tripID).Msg("report lookup failed")
		response.InternalError(w, r, "report lookup failed")
		return
	}
	response.JSON(w, r, http.StatusOK, stored)
}

// DeleteReport handles DELETE /v1/reports/{tripId}.
func (h *TripHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")

	if err := h.service.DeleteReport(r.Context(), tripID); err != nil {
		if errors.Is(err, report.ErrReportNotFound) {
			response.NotFound(w, r, "no report for trip "+tripID)
			return
		}
		h.log.Error().Err(err).Str("trip_id", tripID).Msg("report delete failed")
		response.InternalError(w, r, "report delete failed")
		return
	}
	response.NoContent(w, r)
}
