package weather

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

// Granularity 관측 간격
type Granularity string

const (
	Daily  Granularity = "daily"
	Hourly Granularity = "hourly"
)

// Step 관측 간격의 시간 길이
func (g Granularity) Step() time.Duration {
	if g == Hourly {
		return time.Hour
	}
	return 24 * time.Hour
}

// Variable Open-Meteo 변수
type Variable struct {
	Name        string      `json:"name"`
	Unit        string      `json:"unit"`
	Granularity Granularity `json:"granularity"`
	Description string      `json:"description"`
}

// ⭐ SSOT: 예측 가능한 변수 목록
var variables = map[string]Variable{
	"temperature_2m_mean":      {"temperature_2m_mean", "°C", Daily, "Mean daily air temperature at 2 m"},
	"temperature_2m_max":       {"temperature_2m_max", "°C", Daily, "Maximum daily air temperature at 2 m"},
	"temperature_2m_min":       {"temperature_2m_min", "°C", Daily, "Minimum daily air temperature at 2 m"},
	"apparent_temperature_max": {"apparent_temperature_max", "°C", Daily, "Maximum daily feels-like temperature"},
	"precipitation_sum":        {"precipitation_sum", "mm", Daily, "Daily precipitation total"},
	"rain_sum":                 {"rain_sum", "mm", Daily, "Daily rain total"},
	"wind_speed_10m_max":       {"wind_speed_10m_max", "km/h", Daily, "Maximum daily wind speed at 10 m"},
	"wind_gusts_10m_max":       {"wind_gusts_10m_max", "km/h", Daily, "Maximum daily wind gusts at 10 m"},
	"shortwave_radiation_sum":  {"shortwave_radiation_sum", "MJ/m²", Daily, "Daily shortwave radiation"},
	"temperature_2m":           {"temperature_2m", "°C", Hourly, "Air temperature at 2 m"},
	"relative_humidity_2m":     {"relative_humidity_2m", "%", Hourly, "Relative humidity at 2 m"},
	"precipitation":            {"precipitation", "mm", Hourly, "Hourly precipitation"},
	"pressure_msl":             {"pressure_msl", "hPa", Hourly, "Mean sea level pressure"},
	"cloud_cover":              {"cloud_cover", "%", Hourly, "Total cloud cover"},
	"wind_speed_10m":           {"wind_speed_10m", "km/h", Hourly, "Wind speed at 10 m"},
}

// DefaultVariable 기본 예측 대상
const DefaultVariable = "temperature_2m_mean"

// ParseVariable 이름으로 변수 조회 (빈 값은 기본 변수)
func ParseVariable(name string) (Variable, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultVariable
	}
	v, ok := variables[name]
	if !ok {
		return Variable{}, &contracts.ValidationError{
			Field:  "variable",
			Reason: fmt.Sprintf("unknown variable %q", name),
		}
	}
	return v, nil
}

// Variables 이름순 전체 목록
func Variables() []Variable {
	out := make([]Variable, 0, len(variables))
	for _, v := range variables {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
