package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

func withBounds(points []contracts.ForecastPoint, spread float64) []contracts.ForecastPoint {
	out := make([]contracts.ForecastPoint, len(points))
	for i, p := range points {
		p.Lower = contracts.Bound(p.Value - spread)
		p.Upper = contracts.Bound(p.Value + spread)
		out[i] = p
	}
	return out
}

func sumWeights(w map[contracts.ModelKind]float64) float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

func TestCombine_SingleModelIsIdentity(t *testing.T) {
	only := &contracts.ForecastResult{Model: contracts.ModelSeasonal, Points: withBounds(pointsAt(20.1, 21.7, 19.3), 1.5)}

	for _, weights := range []map[contracts.ModelKind]float64{nil, {contracts.ModelSeasonal: 0.37}} {
		ens, err := Combine([]*contracts.ForecastResult{only}, weights)
		require.NoError(t, err)
		require.Len(t, ens.Points, len(only.Points))
		for i, p := range ens.Points {
			assert.Equal(t, only.Points[i].Time, p.Time)
			assert.Equal(t, only.Points[i].Value, p.Value)
			assert.Equal(t, *only.Points[i].Lower, *p.Lower)
			assert.Equal(t, *only.Points[i].Upper, *p.Upper)
		}
		assert.Equal(t, 1.0, ens.Weights[contracts.ModelSeasonal])
	}
}

func TestCombine_EqualWeights(t *testing.T) {
	a := &contracts.ForecastResult{Model: contracts.ModelStatistical, Points: pointsAt(10, 20)}
	b := &contracts.ForecastResult{Model: contracts.ModelTree, Points: pointsAt(20, 40)}

	ens, err := Combine([]*contracts.ForecastResult{a, b}, nil)
	require.NoError(t, err)
	assert.Equal(t, MethodEqual, ens.Method)
	assert.Equal(t, []float64{15, 30}, []float64{ens.Points[0].Value, ens.Points[1].Value})
	// b 에 구간이 없으므로 결합 구간도 없음
	assert.False(t, ens.Points[0].HasInterval())
}

func TestCombine_IntersectsTimestamps(t *testing.T) {
	a := &contracts.ForecastResult{Model: contracts.ModelStatistical, Points: pointsAt(1, 2, 3, 4)}
	b := &contracts.ForecastResult{Model: contracts.ModelSeasonal, Points: pointsAt(5, 6, 7, 8)[1:]}

	ens, err := Combine([]*contracts.ForecastResult{a, b}, nil)
	require.NoError(t, err)
	require.Len(t, ens.Points, 3)
	assert.Equal(t, testStart.AddDate(0, 0, 1), ens.Points[0].Time)
	for i := 1; i < len(ens.Points); i++ {
		assert.True(t, ens.Points[i].Time.After(ens.Points[i-1].Time))
	}
}

func TestCombine_Errors(t *testing.T) {
	_, err := Combine(nil, nil)
	assert.ErrorIs(t, err, contracts.ErrEmptyEnsemble)

	a := &contracts.ForecastResult{Model: contracts.ModelStatistical, Points: pointsAt(1, 2)}
	b := &contracts.ForecastResult{Model: contracts.ModelTree, Points: pointsAt(1, 2, 3, 4)[2:]}
	_, err = Combine([]*contracts.ForecastResult{a, b}, nil)
	assert.ErrorIs(t, err, contracts.ErrEmptyEnsemble)

	c := &contracts.ForecastResult{Model: contracts.ModelTree, Points: pointsAt(1, 2)}
	_, err = Combine([]*contracts.ForecastResult{a, c}, map[contracts.ModelKind]float64{contracts.ModelStatistical: 1})
	assert.ErrorIs(t, err, contracts.ErrValidation)

	_, err = Combine([]*contracts.ForecastResult{a, c}, map[contracts.ModelKind]float64{
		contracts.ModelStatistical: -1, contracts.ModelTree: 2,
	})
	assert.ErrorIs(t, err, contracts.ErrValidation)

	_, err = Combine([]*contracts.ForecastResult{a, c}, map[contracts.ModelKind]float64{
		contracts.ModelStatistical: 0, contracts.ModelTree: 0,
	})
	assert.ErrorIs(t, err, contracts.ErrValidation)
}

func TestCombine_CustomWeightsAreNormalized(t *testing.T) {
	a := &contracts.ForecastResult{Model: contracts.ModelStatistical, Points: withBounds(pointsAt(10), 1)}
	b := &contracts.ForecastResult{Model: contracts.ModelNeural, Points: withBounds(pointsAt(20), 2)}

	ens, err := Combine([]*contracts.ForecastResult{a, b}, map[contracts.ModelKind]float64{
		contracts.ModelStatistical: 3, contracts.ModelNeural: 1, contracts.ModelTree: 100,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sumWeights(ens.Weights), 1e-9)
	assert.InDelta(t, 12.5, ens.Points[0].Value, 1e-9)
	require.True(t, ens.Points[0].HasInterval())
	assert.InDelta(t, 0.75*9+0.25*18, *ens.Points[0].Lower, 1e-9)
	assert.NotContains(t, ens.Weights, contracts.ModelTree)
}

func TestInverseRMSEWeights(t *testing.T) {
	tests := []struct {
		name    string
		metrics []contracts.ModelMetrics
		check   func(t *testing.T, w map[contracts.ModelKind]float64)
	}{
		{
			name: "proportional to inverse rmse",
			metrics: []contracts.ModelMetrics{
				{Model: contracts.ModelStatistical, RMSE: 1},
				{Model: contracts.ModelTree, RMSE: 3},
			},
			check: func(t *testing.T, w map[contracts.ModelKind]float64) {
				assert.InDelta(t, 0.75, w[contracts.ModelStatistical], 1e-12)
				assert.InDelta(t, 0.25, w[contracts.ModelTree], 1e-12)
			},
		},
		{
			name: "zero rmse dominates without overflow",
			metrics: []contracts.ModelMetrics{
				{Model: contracts.ModelStatistical, RMSE: 0},
				{Model: contracts.ModelTree, RMSE: 2},
			},
			check: func(t *testing.T, w map[contracts.ModelKind]float64) {
				assert.InDelta(t, 1.0, w[contracts.ModelStatistical], 1e-9)
				assert.False(t, math.IsNaN(w[contracts.ModelTree]))
			},
		},
		{
			name: "all zero rmse",
			metrics: []contracts.ModelMetrics{
				{Model: contracts.ModelStatistical, RMSE: 0},
				{Model: contracts.ModelSeasonal, RMSE: 0},
				{Model: contracts.ModelTree, RMSE: 0},
			},
			check: func(t *testing.T, w map[contracts.ModelKind]float64) {
				for _, v := range w {
					assert.InDelta(t, 1.0/3, v, 1e-9)
				}
			},
		},
		{
			name: "denormal rmse is capped",
			metrics: []contracts.ModelMetrics{
				{Model: contracts.ModelStatistical, RMSE: 1e-320},
				{Model: contracts.ModelNeural, RMSE: 1},
			},
			check: func(t *testing.T, w map[contracts.ModelKind]float64) {
				assert.InDelta(t, 1.0, w[contracts.ModelStatistical], 1e-9)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := InverseRMSEWeights(tt.metrics)
			require.Len(t, w, len(tt.metrics))
			assert.InDelta(t, 1.0, sumWeights(w), 1e-6)
			tt.check(t, w)
		})
	}
}
