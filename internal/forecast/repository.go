package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

// ErrRunNotFound 저장된 실행 없음
var ErrRunNotFound = errors.New("forecast run not found")

// Querier pgxpool.Pool 과 pgxmock 이 공통으로 만족하는 인터페이스
type Querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository 예측 실행 결과 저장소 (모델 영속화가 아닌 결과 이력)
type Repository struct {
	db Querier
}

// NewRepository 새 저장소 생성
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

// RunSummary 이력 목록용 요약
type RunSummary struct {
	RunID        string     `json:"run_id"`
	SeriesName   string     `json:"series_name"`
	Variable     string     `json:"variable"`
	LocationName string     `json:"location_name,omitempty"`
	Horizon      int        `json:"horizon"`
	State        string     `json:"state"`
	ForecastEnd  time.Time  `json:"forecast_end"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

var pointColumns = []string{"run_id", "model", "ts", "value", "lower_bound", "upper_bound"}

// SaveRun 실행 결과를 하나의 트랜잭션으로 저장
func (r *Repository) SaveRun(ctx context.Context, result *contracts.RunResult) error {
	locationJSON, err := marshalNullable(result.Location)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}
	importanceJSON, err := marshalNullable(result.FeatureImportance)
	if err != nil {
		return fmt.Errorf("marshal feature importance: %w", err)
	}
	skippedJSON, err := marshalNullable(result.Skipped)
	if err != nil {
		return fmt.Errorf("marshal skipped models: %w", err)
	}

	var ensembleMethod *string
	var weightsJSON []byte
	if result.Ensemble != nil {
		ensembleMethod = &result.Ensemble.Method
		if weightsJSON, err = json.Marshal(result.Ensemble.Weights); err != nil {
			return fmt.Errorf("marshal ensemble weights: %w", err)
		}
	}

	requested := make([]string, len(result.Requested))
	for i, k := range result.Requested {
		requested[i] = string(k)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO weather.forecast_runs
			(run_id, series_name, variable, location, horizon, step_seconds, requested, state,
			 train_size, holdout_size, filled_points, ensemble_method, ensemble_weights,
			 feature_importance, skipped, duration_ms, forecast_end, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		result.RunID, result.SeriesName, result.Variable, locationJSON, result.Horizon,
		result.Step.Seconds(), requested, string(result.State),
		result.TrainSize, result.HoldoutSize, result.FilledPoints, ensembleMethod, weightsJSON,
		importanceJSON, skippedJSON, result.Duration.Milliseconds(), forecastEnd(result), result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, f := range result.Forecasts {
		m, _ := result.Metric(f.Model)
		paramsJSON, err := marshalNullable(f.Params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		notesJSON, err := marshalNullable(f.Notes)
		if err != nil {
			return fmt.Errorf("marshal notes: %w", err)
		}
		var mapeValue *float64
		if m.MAPEDefined() {
			mapeValue = &m.MAPE
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO weather.forecast_metrics
				(run_id, model, mae, rmse, mape, holdout_size, training_ms, refit_ms, params, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			result.RunID, string(f.Model), m.MAE, m.RMSE, mapeValue, m.HoldoutSize,
			m.TrainingDuration.Milliseconds(), f.TrainingDuration.Milliseconds(), paramsJSON, notesJSON,
		)
		if err != nil {
			return fmt.Errorf("insert metrics for %s: %w", f.Model, err)
		}
	}

	rows := pointRows(result)
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"weather", "forecast_points"}, pointColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy forecast points: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func pointRows(result *contracts.RunResult) [][]any {
	var rows [][]any
	add := func(model contracts.ModelKind, points []contracts.ForecastPoint) {
		for _, p := range points {
			rows = append(rows, []any{result.RunID, string(model), p.Time, p.Value, p.Lower, p.Upper})
		}
	}
	for _, f := range result.Forecasts {
		add(f.Model, f.Points)
	}
	if result.Ensemble != nil {
		add(contracts.ModelEnsemble, result.Ensemble.Points)
	}
	return rows
}

func forecastEnd(result *contracts.RunResult) time.Time {
	end := result.CreatedAt
	for _, f := range result.Forecasts {
		if n := len(f.Points); n > 0 && f.Points[n-1].Time.After(end) {
			end = f.Points[n-1].Time
		}
	}
	return end
}

// GetRun 실행 결과 조회
func (r *Repository) GetRun(ctx context.Context, runID string) (*contracts.RunResult, error) {
	var (
		result         contracts.RunResult
		state          string
		stepSeconds    float64
		requested      []string
		locationJSON   []byte
		ensembleMethod *string
		weightsJSON    []byte
		importanceJSON []byte
		skippedJSON    []byte
		durationMs     int64
	)
	err := r.db.QueryRow(ctx, `
		SELECT run_id, series_name, variable, location, horizon, step_seconds, requested, state,
			   train_size, holdout_size, filled_points, ensemble_method, ensemble_weights,
			   feature_importance, skipped, duration_ms, created_at
		FROM weather.forecast_runs
		WHERE run_id = $1`, runID).Scan(
		&result.RunID, &result.SeriesName, &result.Variable, &locationJSON, &result.Horizon,
		&stepSeconds, &requested, &state, &result.TrainSize, &result.HoldoutSize, &result.FilledPoints,
		&ensembleMethod, &weightsJSON, &importanceJSON, &skippedJSON, &durationMs, &result.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	result.State = contracts.RunState(state)
	result.Step = time.Duration(stepSeconds * float64(time.Second))
	result.Duration = time.Duration(durationMs) * time.Millisecond
	for _, k := range requested {
		result.Requested = append(result.Requested, contracts.ModelKind(k))
	}
	if err := unmarshalNullable(locationJSON, &result.Location); err != nil {
		return nil, fmt.Errorf("decode location: %w", err)
	}
	if err := unmarshalNullable(importanceJSON, &result.FeatureImportance); err != nil {
		return nil, fmt.Errorf("decode feature importance: %w", err)
	}
	if err := unmarshalNullable(skippedJSON, &result.Skipped); err != nil {
		return nil, fmt.Errorf("decode skipped models: %w", err)
	}

	if err := r.loadMetrics(ctx, &result); err != nil {
		return nil, err
	}
	if err := r.loadPoints(ctx, &result); err != nil {
		return nil, err
	}

	if ensembleMethod != nil && result.Ensemble != nil {
		result.Ensemble.Method = *ensembleMethod
		if err := unmarshalNullable(weightsJSON, &result.Ensemble.Weights); err != nil {
			return nil, fmt.Errorf("decode ensemble weights: %w", err)
		}
	}

	result.ModelStates = make(map[contracts.ModelKind]contracts.ModelState)
	for _, f := range result.Forecasts {
		result.ModelStates[f.Model] = contracts.ModelEvaluated
	}
	for _, s := range result.Skipped {
		result.ModelStates[s.Model] = contracts.ModelSkipped
	}
	return &result, nil
}

func (r *Repository) loadMetrics(ctx context.Context, result *contracts.RunResult) error {
	rows, err := r.db.Query(ctx, `
		SELECT model, mae, rmse, mape, holdout_size, training_ms, refit_ms, params, notes
		FROM weather.forecast_metrics
		WHERE run_id = $1
		ORDER BY model`, result.RunID)
	if err != nil {
		return fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			model      string
			m          contracts.ModelMetrics
			mapeValue  *float64
			trainingMs int64
			refitMs    int64
			paramsJSON []byte
			notesJSON  []byte
		)
		if err := rows.Scan(&model, &m.MAE, &m.RMSE, &mapeValue, &m.HoldoutSize, &trainingMs, &refitMs, &paramsJSON, &notesJSON); err != nil {
			return fmt.Errorf("scan metrics: %w", err)
		}
		m.Model = contracts.ModelKind(model)
		m.MAPE = contracts.MAPEUndefined
		if mapeValue != nil {
			m.MAPE = *mapeValue
		}
		m.TrainingDuration = time.Duration(trainingMs) * time.Millisecond
		result.Metrics = append(result.Metrics, m)

		f := &contracts.ForecastResult{Model: m.Model, TrainingDuration: time.Duration(refitMs) * time.Millisecond}
		if err := unmarshalNullable(paramsJSON, &f.Params); err != nil {
			return fmt.Errorf("decode params: %w", err)
		}
		if err := unmarshalNullable(notesJSON, &f.Notes); err != nil {
			return fmt.Errorf("decode notes: %w", err)
		}
		result.Forecasts = append(result.Forecasts, f)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate metrics: %w", err)
	}
	sortForecasts(result)
	return nil
}

func (r *Repository) loadPoints(ctx context.Context, result *contracts.RunResult) error {
	rows, err := r.db.Query(ctx, `
		SELECT model, ts, value, lower_bound, upper_bound
		FROM weather.forecast_points
		WHERE run_id = $1
		ORDER BY model, ts`, result.RunID)
	if err != nil {
		return fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			model string
			p     contracts.ForecastPoint
		)
		if err := rows.Scan(&model, &p.Time, &p.Value, &p.Lower, &p.Upper); err != nil {
			return fmt.Errorf("scan point: %w", err)
		}
		kind := contracts.ModelKind(model)
		if kind == contracts.ModelEnsemble {
			if result.Ensemble == nil {
				result.Ensemble = &contracts.EnsembleForecast{}
			}
			result.Ensemble.Points = append(result.Ensemble.Points, p)
			continue
		}
		if f := result.Forecast(kind); f != nil {
			f.Points = append(f.Points, p)
		}
	}
	return rows.Err()
}

// sortForecasts 정규 모델 순서로 정렬
func sortForecasts(result *contracts.RunResult) {
	ordered := make([]*contracts.ForecastResult, 0, len(result.Forecasts))
	metrics := make([]contracts.ModelMetrics, 0, len(result.Metrics))
	for _, k := range contracts.BaseModels {
		if f := result.Forecast(k); f != nil {
			ordered = append(ordered, f)
		}
		if m, ok := result.Metric(k); ok {
			metrics = append(metrics, m)
		}
	}
	result.Forecasts = ordered
	result.Metrics = metrics
}

// ListRuns 최근 실행 요약 (최신순)
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT run_id, series_name, variable, COALESCE(location->>'name', ''), horizon, state,
			   forecast_end, verified_at, created_at
		FROM weather.forecast_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.RunID, &s.SeriesName, &s.Variable, &s.LocationName, &s.Horizon, &s.State,
			&s.ForecastEnd, &s.VerifiedAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// ListUnverified 예측 기간이 끝났지만 아직 검증되지 않은 실행
func (r *Repository) ListUnverified(ctx context.Context, asOf time.Time, limit int) ([]RunSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT run_id, series_name, variable, COALESCE(location->>'name', ''), horizon, state,
			   forecast_end, verified_at, created_at
		FROM weather.forecast_runs
		WHERE verified_at IS NULL AND location IS NOT NULL AND forecast_end <= $1
		ORDER BY forecast_end
		LIMIT $2`, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("query unverified runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.RunID, &s.SeriesName, &s.Variable, &s.LocationName, &s.Horizon, &s.State,
			&s.ForecastEnd, &s.VerifiedAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// SaveVerification 사후 검증 지표 저장 및 실행 검증 완료 표시
func (r *Repository) SaveVerification(ctx context.Context, runID string, metrics []contracts.ModelMetrics, verifiedAt time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, m := range metrics {
		var mapeValue *float64
		if m.MAPEDefined() {
			mapeValue = &m.MAPE
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO weather.forecast_verifications (run_id, model, mae, rmse, mape, points, verified_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (run_id, model) DO UPDATE SET
				mae = EXCLUDED.mae,
				rmse = EXCLUDED.rmse,
				mape = EXCLUDED.mape,
				points = EXCLUDED.points,
				verified_at = EXCLUDED.verified_at`,
			runID, string(m.Model), m.MAE, m.RMSE, mapeValue, m.HoldoutSize, verifiedAt,
		)
		if err != nil {
			return fmt.Errorf("insert verification for %s: %w", m.Model, err)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE weather.forecast_runs SET verified_at = $2 WHERE run_id = $1`, runID, verifiedAt); err != nil {
		return fmt.Errorf("mark run verified: %w", err)
	}
	return tx.Commit(ctx)
}

func marshalNullable(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *contracts.Location:
		if x == nil {
			return nil, nil
		}
	case []contracts.FeatureScore:
		if len(x) == 0 {
			return nil, nil
		}
	case []contracts.SkippedModel:
		if len(x) == 0 {
			return nil, nil
		}
	case map[string]any:
		if len(x) == 0 {
			return nil, nil
		}
	case []string:
		if len(x) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func unmarshalNullable(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
