package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/yandri918/prediksi-cuaca/internal/brain"
	"github.com/yandri918/prediksi-cuaca/internal/contracts"
	"github.com/yandri918/prediksi-cuaca/internal/forecast"
	"github.com/yandri918/prediksi-cuaca/pkg/logger"
)

// Engine runs the forecasting engine on a caller-supplied series
type Engine interface {
	Run(ctx context.Context, req forecast.RunRequest) (*contracts.RunResult, error)
}

// LocationPipeline fetches history for a location and forecasts it
type LocationPipeline interface {
	Run(ctx context.Context, cfg brain.RunConfig) (*brain.RunResult, error)
}

// RunStore persists and lists forecast runs
type RunStore interface {
	SaveRun(ctx context.Context, result *contracts.RunResult) error
	GetRun(ctx context.Context, runID string) (*contracts.RunResult, error)
	ListRuns(ctx context.Context, limit int) ([]forecast.RunSummary, error)
}

// ForecastHandler handles forecast API endpoints
// ⭐ SSOT: Forecast API 핸들러는 이 구조체에서만
type ForecastHandler struct {
	engine   Engine
	pipeline LocationPipeline
	store    RunStore // nil 이면 이력 엔드포인트 비활성
	logger   *logger.Logger
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(engine Engine, pipeline LocationPipeline, store RunStore, log *logger.Logger) *ForecastHandler {
	return &ForecastHandler{
		engine:   engine,
		pipeline: pipeline,
		store:    store,
		logger:   log,
	}
}

// SeriesRequest is the body of POST /api/forecast
type SeriesRequest struct {
	Series    *contracts.TimeSeries `json:"series"`
	Horizon   int                   `json:"horizon"`
	Models    []string              `json:"models,omitempty"`
	Overrides *forecast.Overrides   `json:"overrides,omitempty"`
	Save      bool                  `json:"save,omitempty"`
}

// SeriesResponse wraps a run with its persistence outcome
type SeriesResponse struct {
	Run   *contracts.RunResult `json:"run"`
	Saved bool                 `json:"saved"`
}

// RunSeries forecasts a caller-supplied series
// POST /api/forecast?format=json|csv|xlsx
func (h *ForecastHandler) RunSeries(w http.ResponseWriter, r *http.Request) {
	format, err := parseFormat(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req SeriesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Series == nil {
		respondError(w, http.StatusBadRequest, "series is required")
		return
	}
	models, err := contracts.ParseModelKinds(req.Models)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.engine.Run(r.Context(), forecast.RunRequest{
		Series:    req.Series,
		Horizon:   req.Horizon,
		Models:    models,
		Overrides: req.Overrides,
	})
	if err != nil {
		respondFailure(w, h.logger, err, "forecast run failed")
		return
	}

	resp := SeriesResponse{Run: run}
	if req.Save && h.store != nil {
		if err := h.store.SaveRun(r.Context(), run); err != nil {
			// 저장 실패는 예측 결과를 무효화하지 않음
			h.logger.WithError(err).WithField("run_id", run.RunID).Error("Failed to save forecast run")
		} else {
			resp.Saved = true
		}
	}
	respondExport(w, h.logger, format, run, nil, resp)
}

// RunLocation fetches history for a location and forecasts it
// POST /api/forecast/location?format=json|csv|xlsx
func (h *ForecastHandler) RunLocation(w http.ResponseWriter, r *http.Request) {
	format, err := parseFormat(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var cfg brain.RunConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.store == nil {
		cfg.Save = false
	}

	result, err := h.pipeline.Run(r.Context(), cfg)
	if err != nil {
		if result != nil && result.Run != nil {
			// 저장 단계 실패: 결과는 돌려줌
			h.logger.WithError(err).WithField("run_id", result.Run.RunID).Error("Location forecast finished with error")
			respondExport(w, h.logger, format, result.Run, result.Provider, result)
			return
		}
		respondFailure(w, h.logger, err, "location forecast failed")
		return
	}
	respondExport(w, h.logger, format, result.Run, result.Provider, result)
}

// ListRuns returns recent stored runs
// GET /api/forecast/runs?limit=20
func (h *ForecastHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "run history requires a database")
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		respondFailure(w, h.logger, err, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []forecast.RunSummary{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun returns a stored run
// GET /api/forecast/runs/{id}?format=json|csv|xlsx
func (h *ForecastHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "run history requires a database")
		return
	}
	format, err := parseFormat(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := mux.Vars(r)["id"]

	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		respondFailure(w, h.logger, err, "failed to load run")
		return
	}
	respondExport(w, h.logger, format, run, nil, run)
}
