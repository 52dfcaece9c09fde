package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FlareCast/internal/domain/models"
	domrepo "FlareCast/internal/domain/repository"
	"FlareCast/internal/service/auth"
	icache "FlareCast/internal/service/cache"
	"FlareCast/internal/usecase"
	xhttp "FlareCast/pkg/http"
	xlogger "FlareCast/pkg/logger"
	"FlareCast/pkg/util"

	"github.com/labstack/echo/v4"
)

// HealthChecker reports backing-store connectivity for the liveness probe.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// FlareHandler exposes the pipeline trigger and the observation/prediction
// read endpoints over Echo.
type FlareHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.PredictionPipeline
	obs      domrepo.ObservationStore
	preds    domrepo.PredictionStore
	verifier auth.Verifier
	cache    icache.BytesCache
	health   HealthChecker
	live     *LiveHub

	defaultHours int
	maxHours     int
	cacheTTL     time.Duration
}

func NewFlareHandler(
	logger *xlogger.Logger,
	pipeline *usecase.PredictionPipeline,
	obs domrepo.ObservationStore,
	preds domrepo.PredictionStore,
	verifier auth.Verifier,
	cache icache.BytesCache,
	health HealthChecker,
	live *LiveHub,
	defaultHours, maxHours int,
	cacheTTL time.Duration,
) *FlareHandler {
	return &FlareHandler{
		logger:       logger,
		pipeline:     pipeline,
		obs:          obs,
		preds:        preds,
		verifier:     verifier,
		cache:        cache,
		health:       health,
		live:         live,
		defaultHours: defaultHours,
		maxHours:     maxHours,
		cacheTTL:     cacheTTL,
	}
}

func (h *FlareHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)

	g := e.Group("/api")
	g.POST("/run-flare-prediction-pipeline", h.TriggerPipeline)
	g.GET("/data/latest", h.LatestObservation)
	g.GET("/data", h.HistoricalObservations)
	g.GET("/predictions/latest", h.LatestPrediction)
	g.GET("/predictions", h.HistoricalPredictions)
	if h.live != nil {
		g.GET("/live", h.live.Serve)
	}
}

// TriggerPipeline runs one prediction pipeline pass. Called by the external
// scheduler; auth is checked before any pipeline step.
func (h *FlareHandler) TriggerPipeline(c echo.Context) error {
	if err := h.verifier.Verify(c); err != nil {
		h.logger.Warn("pipeline trigger rejected", xlogger.Error(err))
		return xhttp.UnauthorizedResponse(c, "scheduler identity could not be verified")
	}

	res, err := h.pipeline.Run(c.Request().Context())
	if err != nil {
		h.logger.Error("pipeline run failed", xlogger.Error(err))
		if errors.Is(err, domrepo.ErrFeedUnavailable) {
			return xhttp.AppErrorResponse(c, xhttp.BadGatewayError("upstream flux feed unavailable").WithError(err))
		}
		return xhttp.AppErrorResponse(c, xhttp.InternalError("prediction pipeline failed").WithError(err))
	}

	msg := "Prediction pipeline successfully completed."
	switch res.Outcome {
	case usecase.OutcomeNoNewData:
		msg = "No new solar observation data; nothing to process."
	case usecase.OutcomeNoModelInput:
		msg = "Observations ingested; model window empty, no prediction produced."
	}

	return xhttp.AcceptedResponse(c, models.PipelineStatusResponse{
		Status:              "accepted",
		Message:             msg,
		PipelineCompletedAt: res.CompletedAt.Format(time.RFC3339),
	})
}

// LatestObservation returns the newest stored observation, 404 when the
// store is empty.
func (h *FlareHandler) LatestObservation(c echo.Context) error {
	o, err := h.obs.Latest(c.Request().Context())
	if err != nil {
		h.logger.Error("latest observation query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if o == nil {
		return xhttp.NotFoundResponse(c, "no observations recorded yet")
	}
	return xhttp.SuccessResponse(c, observationRecord(*o))
}

// HistoricalObservations returns observations within the requested trailing
// window. Out-of-range timeframe_hours values fall back to the default.
func (h *FlareHandler) HistoricalObservations(c echo.Context) error {
	hours := h.clampedHours(c)
	key := fmt.Sprintf("obs:range:%d", hours)
	if b, ok := h.cached(key); ok {
		return xhttp.SuccessResponse(c, json.RawMessage(b))
	}

	start := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	rows, err := h.obs.RangeFrom(c.Request().Context(), start)
	if err != nil {
		h.logger.Error("observation range query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	resp := models.HistoricalObservationsResponse{
		RecordCount: len(rows),
		Data:        make([]models.ObservationRecord, 0, len(rows)),
	}
	for _, o := range rows {
		resp.Data = append(resp.Data, observationRecord(o))
	}
	h.store(key, resp)
	return xhttp.SuccessResponse(c, resp)
}

// LatestPrediction returns the newest stored prediction, 404 when none exists.
func (h *FlareHandler) LatestPrediction(c echo.Context) error {
	p, err := h.preds.Latest(c.Request().Context())
	if err != nil {
		h.logger.Error("latest prediction query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if p == nil {
		return xhttp.NotFoundResponse(c, "no predictions recorded yet")
	}
	return xhttp.SuccessResponse(c, predictionRecord(*p))
}

// HistoricalPredictions returns predictions within the requested trailing window.
func (h *FlareHandler) HistoricalPredictions(c echo.Context) error {
	hours := h.clampedHours(c)
	key := fmt.Sprintf("preds:range:%d", hours)
	if b, ok := h.cached(key); ok {
		return xhttp.SuccessResponse(c, json.RawMessage(b))
	}

	start := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	rows, err := h.preds.RangeFrom(c.Request().Context(), start)
	if err != nil {
		h.logger.Error("prediction range query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	resp := models.HistoricalPredictionsResponse{
		RecordCount: len(rows),
		Data:        make([]models.PredictionRecord, 0, len(rows)),
	}
	for _, p := range rows {
		resp.Data = append(resp.Data, predictionRecord(p))
	}
	h.store(key, resp)
	return xhttp.SuccessResponse(c, resp)
}

// Healthz checks process liveness and store connectivity.
func (h *FlareHandler) Healthz(c echo.Context) error {
	status := map[string]string{"status": "ok"}
	if h.health != nil {
		if err := h.health.Health(c.Request().Context()); err != nil {
			h.logger.Error("health check failed", xlogger.Error(err))
			status["status"] = "degraded"
			status["store"] = err.Error()
			return xhttp.DataResponse(c, 503, status)
		}
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *FlareHandler) clampedHours(c echo.Context) int {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.defaultHours
	}
	return util.ClampHours(req.TimeframeHours, h.defaultHours, h.maxHours)
}

func (h *FlareHandler) cached(key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil || !ok {
		return nil, false
	}
	return b, true
}

func (h *FlareHandler) store(key string, v interface{}) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = h.cache.SetBytes(key, b, h.cacheTTL)
}

func observationRecord(o models.Observation) models.ObservationRecord {
	return models.ObservationRecord{
		Timestamp:    o.Timestamp.UTC().Format(time.RFC3339),
		MagneticFlux: o.Flux,
	}
}

func predictionRecord(p models.Prediction) models.PredictionRecord {
	return models.PredictionRecord{
		Timestamp:         p.Timestamp.UTC().Format(time.RFC3339),
		MClassProbability: p.MClassProbability,
		RiskLevel:         string(p.RiskLevel),
		ModelVersion:      p.ModelVersion,
	}
}
