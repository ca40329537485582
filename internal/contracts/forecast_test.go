package contracts

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelKind(t *testing.T) {
	tests := []struct {
		in   string
		want ModelKind
	}{
		{"arima", ModelStatistical},
		{"Prophet", ModelSeasonal},
		{" lstm ", ModelNeural},
		{"xgboost", ModelTree},
		{"tree-boosted", ModelTree},
		{"ensemble", ModelEnsemble},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseModelKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseModelKind("random-forest")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseModelKinds_CommaSeparated(t *testing.T) {
	got, err := ParseModelKinds([]string{"arima,prophet", "", "gbt"})
	require.NoError(t, err)
	assert.Equal(t, []ModelKind{ModelStatistical, ModelSeasonal, ModelTree}, got)
}

func TestModelKind_UnmarshalJSONAliases(t *testing.T) {
	var body struct {
		Models  []ModelKind           `json:"models"`
		Weights map[ModelKind]float64 `json:"weights"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"models":["arima","LSTM"],"weights":{"gbt":0.5,"seasonal":0.5}}`), &body))
	assert.Equal(t, []ModelKind{ModelStatistical, ModelNeural}, body.Models)
	assert.Equal(t, map[ModelKind]float64{ModelTree: 0.5, ModelSeasonal: 0.5}, body.Weights)

	err := json.Unmarshal([]byte(`{"models":["random-forest"]}`), &body)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestModelFitError_Unwrap(t *testing.T) {
	cause := errors.New("singular matrix")
	err := error(&ModelFitError{Model: ModelStatistical, Reason: "solve", Err: cause})

	assert.ErrorIs(t, err, ErrModelFit)
	assert.ErrorIs(t, err, cause)

	var fitErr *ModelFitError
	require.ErrorAs(t, err, &fitErr)
	assert.Equal(t, ModelStatistical, fitErr.Model)
}

func TestTypedErrors_Sentinels(t *testing.T) {
	assert.ErrorIs(t, &InsufficientDataError{Have: 5, Need: 14}, ErrInsufficientData)
	assert.ErrorIs(t, &EmptyEnsembleError{Reason: "no forecasts"}, ErrEmptyEnsemble)
	assert.Contains(t, (&InsufficientDataError{Have: 5, Need: 14}).Error(), "need at least 14")
}

func TestRunResult_BestModel(t *testing.T) {
	r := &RunResult{Metrics: []ModelMetrics{
		{Model: ModelStatistical, RMSE: 2.0},
		{Model: ModelTree, RMSE: 0.5},
		{Model: ModelSeasonal, RMSE: 1.0},
	}}
	best, ok := r.BestModel()
	require.True(t, ok)
	assert.Equal(t, ModelTree, best)

	_, ok = (&RunResult{}).BestModel()
	assert.False(t, ok)
}
