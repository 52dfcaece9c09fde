package models

// HistoryRequest carries the optional lookback window for range queries.
// Out-of-range values are clamped server-side rather than rejected.
type HistoryRequest struct {
	TimeframeHours int `query:"timeframe_hours" json:"timeframe_hours"`
}

// ObservationRecord is the wire shape of a single observation.
type ObservationRecord struct {
	Timestamp    string  `json:"timestamp"`
	MagneticFlux float64 `json:"magnetic_flux"`
}

// PredictionRecord is the wire shape of a single prediction.
type PredictionRecord struct {
	Timestamp         string  `json:"timestamp"`
	MClassProbability float64 `json:"m_class_probability"`
	RiskLevel         string  `json:"risk_level"`
	ModelVersion      string  `json:"model_version"`
}

// HistoricalObservationsResponse wraps a list of observations.
type HistoricalObservationsResponse struct {
	RecordCount int                 `json:"record_count"`
	Data        []ObservationRecord `json:"data"`
}

// HistoricalPredictionsResponse wraps a list of predictions.
type HistoricalPredictionsResponse struct {
	RecordCount int                `json:"record_count"`
	Data        []PredictionRecord `json:"data"`
}

// PipelineStatusResponse is returned to the scheduler after a trigger.
type PipelineStatusResponse struct {
	Status              string `json:"status"`
	Message             string `json:"message"`
	PipelineCompletedAt string `json:"pipeline_completed_at"`
}
