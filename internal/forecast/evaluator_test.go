package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

func pointsAt(values ...float64) []contracts.ForecastPoint {
	out := make([]contracts.ForecastPoint, len(values))
	for i, v := range values {
		out[i] = contracts.ForecastPoint{Time: testStart.AddDate(0, 0, i), Value: v}
	}
	return out
}

func truthAt(values ...float64) []contracts.Observation {
	out := make([]contracts.Observation, len(values))
	for i, v := range values {
		out[i] = contracts.Observation{Time: testStart.AddDate(0, 0, i), Value: v}
	}
	return out
}

func TestEvaluate(t *testing.T) {
	fc := &contracts.ForecastResult{Model: contracts.ModelTree, Points: pointsAt(11, 18, 33)}
	m, err := Evaluate(fc, truthAt(10, 20, 30))
	require.NoError(t, err)

	assert.Equal(t, contracts.ModelTree, m.Model)
	assert.InDelta(t, 2.0, m.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt(14.0/3), m.RMSE, 1e-12)
	assert.InDelta(t, 100*(0.1+0.1+0.1)/3, m.MAPE, 1e-9)
	assert.True(t, m.MAPEDefined())
	assert.Equal(t, 3, m.HoldoutSize)
}

func TestEvaluate_SelfComparisonIsExact(t *testing.T) {
	values := []float64{21.3, -4.2, 0, 17.75, 1e6}
	fc := &contracts.ForecastResult{Points: pointsAt(values...)}
	m, err := Evaluate(fc, truthAt(values...))
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.MAE)
	assert.Equal(t, 0.0, m.RMSE)
}

func TestEvaluate_ZeroTruthGivesMAPESentinel(t *testing.T) {
	fc := &contracts.ForecastResult{Points: pointsAt(1, 2, 4)}
	m, err := Evaluate(fc, truthAt(0, 2, 3))
	require.NoError(t, err)

	assert.Equal(t, contracts.MAPEUndefined, m.MAPE)
	assert.False(t, m.MAPEDefined())
	assert.InDelta(t, 2.0/3, m.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt(2.0/3), m.RMSE, 1e-12)
}

func TestEvaluate_Mismatch(t *testing.T) {
	fc := &contracts.ForecastResult{Points: pointsAt(1, 2)}

	_, err := Evaluate(fc, truthAt(1, 2, 3))
	assert.ErrorIs(t, err, contracts.ErrValidation)

	shifted := truthAt(1, 2)
	shifted[1].Time = shifted[1].Time.Add(time.Hour)
	_, err = Evaluate(fc, shifted)
	assert.ErrorIs(t, err, contracts.ErrValidation)

	_, err = Evaluate(&contracts.ForecastResult{}, nil)
	assert.ErrorIs(t, err, contracts.ErrValidation)
}
