package locationconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

const minimal = `
meta:
  config_id: test
  forecast_schedule: "0 0 6 * * *"
defaults:
  history_days: 120
  horizon: 5
  models: [arima, gbt]
locations:
  - name: Bogor
    latitude: -6.5971
    longitude: 106.806
    variables: [temperature_2m_max, precipitation_sum]
  - name: Jakarta
    latitude: -6.2088
    longitude: 106.8456
    horizon: 10
`

func TestLoad_RepositoryFile(t *testing.T) {
	cfg, data, err := Load("../../config/locations.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, "java_daily_v1", cfg.Meta.ConfigID)
	assert.NotEmpty(t, cfg.Locations)

	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	assert.Equal(t, hash, hash2)
}

func TestParse_Requests(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	reqs := cfg.Requests()
	require.Len(t, reqs, 3)

	assert.Equal(t, "Bogor", reqs[0].Location.Name)
	assert.Equal(t, "temperature_2m_max", reqs[0].Variable)
	assert.Equal(t, "precipitation_sum", reqs[1].Variable)
	assert.Equal(t, 120, reqs[0].HistoryDays)
	assert.Equal(t, 5, reqs[0].Horizon)
	assert.Equal(t, []contracts.ModelKind{contracts.ModelStatistical, contracts.ModelTree}, reqs[0].Models)
	assert.True(t, reqs[0].Save)

	// 변수 미지정 → 엔진 기본 변수
	assert.Equal(t, "Jakarta", reqs[2].Location.Name)
	assert.Equal(t, "", reqs[2].Variable)
	assert.Equal(t, 10, reqs[2].Horizon)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte(strings.Replace(minimal, "horizon: 5", "horizn: 5", 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "horizn")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		from  string
		to    string
		field string
	}{
		{"missing id", "config_id: test", "config_id: \"\"", "meta.config_id"},
		{"bad schedule", `"0 0 6 * * *"`, `"every morning"`, "meta.forecast_schedule"},
		{"bad model", "[arima, gbt]", "[arima, random-forest]", "defaults.models"},
		{"bad variable", "temperature_2m_max", "snowfall_depth", "locations[0].variables"},
		{"latitude", "latitude: -6.5971", "latitude: -96.5", "locations[0]"},
		{"duplicate", "name: Jakarta", "name: Bogor", "locations[1].name"},
		{"negative horizon", "horizon: 10", "horizon: -1", "locations[1].horizon"},
		{"history too long", "history_days: 120", "history_days: 99999", "defaults.history_days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(strings.Replace(minimal, tt.from, tt.to, 1)))
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	_, err := Parse([]byte("meta:\n  config_id: x\n  forecast_schedule: \"@daily\"\n"))
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "locations", verr.Field)
}
