package brain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
	"github.com/yandri918/prediksi-cuaca/internal/forecast"
)

var today = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

var bogor = contracts.Location{Name: "Bogor", Country: "Indonesia", Latitude: -6.5971, Longitude: 106.806}

type fakeWeather struct {
	history      *contracts.TimeSeries
	historyErr   error
	provider     *contracts.TimeSeries
	providerErr  error
	found        []contracts.Location
	historyDays  int
	providerDays int
	searched     string
}

func (f *fakeWeather) RecentHistory(_ context.Context, loc contracts.Location, variable string, days int) (*contracts.TimeSeries, error) {
	f.historyDays = days
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	s := f.history.Clone()
	s.Location = &loc
	s.Variable = variable
	return s, nil
}

func (f *fakeWeather) FetchDailyForecast(_ context.Context, _ contracts.Location, days int, _ string) (*contracts.TimeSeries, error) {
	f.providerDays = days
	return f.provider, f.providerErr
}

func (f *fakeWeather) SearchLocations(_ context.Context, name string) ([]contracts.Location, error) {
	f.searched = name
	return f.found, nil
}

type fakeEngine struct {
	req forecast.RunRequest
	err error
}

func (e *fakeEngine) Run(_ context.Context, req forecast.RunRequest) (*contracts.RunResult, error) {
	e.req = req
	if e.err != nil {
		return nil, e.err
	}
	points := make([]contracts.ForecastPoint, req.Horizon)
	for i := range points {
		points[i] = contracts.ForecastPoint{Time: today.AddDate(0, 0, i), Value: 27}
	}
	return &contracts.RunResult{
		RunID:     "run-1",
		Horizon:   req.Horizon,
		Location:  req.Series.Location,
		Forecasts: []*contracts.ForecastResult{{Model: contracts.ModelSeasonal, Points: points}},
	}, nil
}

type fakeSaver struct {
	saved []*contracts.RunResult
	err   error
}

func (s *fakeSaver) SaveRun(_ context.Context, r *contracts.RunResult) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, r)
	return nil
}

func history() *contracts.TimeSeries {
	return &contracts.TimeSeries{Name: "history", Points: []contracts.Observation{{Time: today.AddDate(0, 0, -1), Value: 26}}}
}

func providerSeries(n int) *contracts.TimeSeries {
	s := &contracts.TimeSeries{Name: "provider"}
	for i := 0; i < n; i++ {
		s.Points = append(s.Points, contracts.Observation{Time: today.AddDate(0, 0, i), Value: 28})
	}
	return s
}

func TestOrchestrator_RunWithCoordinates(t *testing.T) {
	w := &fakeWeather{history: history(), provider: providerSeries(7)}
	engine := &fakeEngine{}
	saver := &fakeSaver{}
	o := NewOrchestrator(w, engine, saver, zerolog.Nop())

	loc := bogor
	res, err := o.Run(context.Background(), RunConfig{Location: &loc, CompareProvider: true, Save: true})
	require.NoError(t, err)

	assert.Equal(t, DefaultHistoryDays, w.historyDays)
	assert.Equal(t, DefaultHorizon, engine.req.Horizon)
	assert.Equal(t, DefaultHorizon, w.providerDays)
	assert.Equal(t, []string{StageResolve, StageHistory, StageForecast, StageBaseline, StagePersist}, res.CompletedStages)
	assert.Equal(t, "temperature_2m_mean", res.Run.Variable)
	assert.True(t, res.Saved)
	require.Len(t, saver.saved, 1)

	// 앙상블이 없으므로 모델 1개
	require.Len(t, res.ProviderMetrics, 1)
	assert.InDelta(t, 1.0, res.ProviderMetrics[0].MAE, 1e-9)
}

func TestOrchestrator_ResolvesPlaceName(t *testing.T) {
	w := &fakeWeather{history: history(), found: []contracts.Location{bogor, {Name: "Bogor Regency"}}}
	o := NewOrchestrator(w, &fakeEngine{}, nil, zerolog.Nop())

	res, err := o.Run(context.Background(), RunConfig{Query: "Bogor", Horizon: 3, Save: true})
	require.NoError(t, err)
	assert.Equal(t, "Bogor", w.searched)
	assert.Equal(t, bogor, res.Location)
	assert.False(t, res.Saved)

	w.found = nil
	_, err = o.Run(context.Background(), RunConfig{Query: "Atlantis"})
	assert.ErrorIs(t, err, contracts.ErrValidation)
}

func TestOrchestrator_Validation(t *testing.T) {
	o := NewOrchestrator(&fakeWeather{history: history()}, &fakeEngine{}, nil, zerolog.Nop())
	loc := bogor
	bad := contracts.Location{Latitude: 120}

	tests := []struct {
		name string
		cfg  RunConfig
	}{
		{"no location", RunConfig{}},
		{"unknown variable", RunConfig{Location: &loc, Variable: "snow_depth_max"}},
		{"negative horizon", RunConfig{Location: &loc, Horizon: -1}},
		{"history too long", RunConfig{Location: &loc, HistoryDays: MaxHistoryDays + 1}},
		{"latitude", RunConfig{Location: &bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Run(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, contracts.ErrValidation)
		})
	}
}

func TestOrchestrator_BaselineFailureIsWarning(t *testing.T) {
	w := &fakeWeather{history: history(), providerErr: errors.New("forecast api down")}
	o := NewOrchestrator(w, &fakeEngine{}, nil, zerolog.Nop())
	loc := bogor

	res, err := o.Run(context.Background(), RunConfig{Location: &loc, CompareProvider: true, Horizon: 30})
	require.NoError(t, err)
	assert.Equal(t, MaxProviderDays, w.providerDays)
	assert.NotContains(t, res.CompletedStages, StageBaseline)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "forecast api down")

	// 시간별 변수는 비교 불가
	res, err = o.Run(context.Background(), RunConfig{Location: &loc, CompareProvider: true, Variable: "temperature_2m"})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], ErrBaselineUnsupported.Error())
}

func TestOrchestrator_StageErrors(t *testing.T) {
	loc := bogor
	ctx := context.Background()

	w := &fakeWeather{historyErr: errors.New("archive timeout")}
	res, err := NewOrchestrator(w, &fakeEngine{}, nil, zerolog.Nop()).Run(ctx, RunConfig{Location: &loc})
	assert.ErrorContains(t, err, "archive timeout")
	assert.Equal(t, []string{StageResolve}, res.CompletedStages)

	engine := &fakeEngine{err: &contracts.InsufficientDataError{Have: 1, Need: 14}}
	_, err = NewOrchestrator(&fakeWeather{history: history()}, engine, nil, zerolog.Nop()).Run(ctx, RunConfig{Location: &loc})
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)

	saver := &fakeSaver{err: errors.New("db down")}
	res, err = NewOrchestrator(&fakeWeather{history: history()}, &fakeEngine{}, saver, zerolog.Nop()).Run(ctx, RunConfig{Location: &loc, Save: true})
	assert.ErrorContains(t, err, "db down")
	assert.NotNil(t, res.Run)
	assert.False(t, res.Saved)
}
