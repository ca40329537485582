package contracts

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dailySeries(values ...float64) *TimeSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &TimeSeries{Name: "t2m"}
	for i, v := range values {
		s.Points = append(s.Points, Observation{Time: start.AddDate(0, 0, i), Value: v})
	}
	return s
}

func TestTimeSeries_Validate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		series  *TimeSeries
		wantErr bool
	}{
		{name: "valid", series: dailySeries(1, 2, 3)},
		{name: "missing values allowed", series: dailySeries(1, math.NaN(), 3)},
		{name: "empty", series: &TimeSeries{}, wantErr: true},
		{
			name: "duplicate timestamp",
			series: &TimeSeries{Points: []Observation{
				{Time: start, Value: 1},
				{Time: start, Value: 2},
			}},
			wantErr: true,
		},
		{
			name: "out of order",
			series: &TimeSeries{Points: []Observation{
				{Time: start.AddDate(0, 0, 1), Value: 1},
				{Time: start, Value: 2},
			}},
			wantErr: true,
		},
		{name: "infinite value", series: dailySeries(1, math.Inf(1)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.series.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}

func TestTimeSeries_CloneIsIndependent(t *testing.T) {
	orig := dailySeries(1, 2, 3)
	orig.Location = &Location{Name: "Jakarta", Latitude: -6.2, Longitude: 106.8}

	c := orig.Clone()
	c.Points[0].Value = 99
	c.Location.Name = "Bandung"

	assert.Equal(t, 1.0, orig.Points[0].Value)
	assert.Equal(t, "Jakarta", orig.Location.Name)
}

func TestObservation_JSONNull(t *testing.T) {
	s := dailySeries(1.5, math.NaN())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value":null`)

	var back TimeSeries
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back.Points, 2)
	assert.Equal(t, 1.5, back.Points[0].Value)
	assert.True(t, back.Points[1].Missing())
	assert.Equal(t, 1, back.MissingCount())
}

func TestNewTimeSeries_LengthMismatch(t *testing.T) {
	_, err := NewTimeSeries("x", []time.Time{time.Now()}, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLocation_Validate(t *testing.T) {
	assert.NoError(t, Location{Latitude: -6.2, Longitude: 106.8}.Validate())
	assert.ErrorIs(t, Location{Latitude: 100, Longitude: 0}.Validate(), ErrValidation)
	assert.ErrorIs(t, Location{Latitude: 0, Longitude: 200}.Validate(), ErrValidation)
}
