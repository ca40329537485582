package locationconfig

import (
	"github.com/yandri918/prediksi-cuaca/internal/brain"
	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

// Config 정기 예측 대상 지점 설정 (config/locations.yaml)
// ⭐ SSOT: 스케줄러 예측 대상은 이 파일에서만 정의
type Config struct {
	Meta      Meta       `yaml:"meta" json:"meta"`
	Defaults  Defaults   `yaml:"defaults" json:"defaults"`
	Locations []Location `yaml:"locations" json:"locations"`
}

// Meta 설정 식별자와 스케줄 (초 단위 cron 표현식)
type Meta struct {
	ConfigID         string `yaml:"config_id" json:"config_id"`
	ForecastSchedule string `yaml:"forecast_schedule" json:"forecast_schedule"`
	VerifySchedule   string `yaml:"verify_schedule" json:"verify_schedule"`
}

// Defaults 지점별 값이 없을 때 적용
type Defaults struct {
	Variables       []string `yaml:"variables" json:"variables"`
	HistoryDays     int      `yaml:"history_days" json:"history_days"`
	Horizon         int      `yaml:"horizon" json:"horizon"`
	Models          []string `yaml:"models" json:"models"`
	CompareProvider bool     `yaml:"compare_provider" json:"compare_provider"`
}

// Location 예측 대상 지점
type Location struct {
	Name        string   `yaml:"name" json:"name"`
	Country     string   `yaml:"country" json:"country"`
	Latitude    float64  `yaml:"latitude" json:"latitude"`
	Longitude   float64  `yaml:"longitude" json:"longitude"`
	Timezone    string   `yaml:"timezone" json:"timezone"`
	Variables   []string `yaml:"variables" json:"variables"`
	HistoryDays int      `yaml:"history_days" json:"history_days"`
	Horizon     int      `yaml:"horizon" json:"horizon"`
}

// Contract 엔진이 사용하는 지점 구조로 변환
func (l Location) Contract() contracts.Location {
	return contracts.Location{
		Name:      l.Name,
		Country:   l.Country,
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Timezone:  l.Timezone,
	}
}

// Requests 지점 × 변수 조합별 파이프라인 요청 (저장 포함)
// Validate 를 통과한 설정에서만 호출
func (c *Config) Requests() []brain.RunConfig {
	models, _ := contracts.ParseModelKinds(c.Defaults.Models)

	var out []brain.RunConfig
	for _, l := range c.Locations {
		variables := l.Variables
		if len(variables) == 0 {
			variables = c.Defaults.Variables
		}
		if len(variables) == 0 {
			variables = []string{""}
		}
		history := l.HistoryDays
		if history == 0 {
			history = c.Defaults.HistoryDays
		}
		horizon := l.Horizon
		if horizon == 0 {
			horizon = c.Defaults.Horizon
		}
		for _, v := range variables {
			loc := l.Contract()
			out = append(out, brain.RunConfig{
				Location:        &loc,
				Variable:        v,
				HistoryDays:     history,
				Horizon:         horizon,
				Models:          models,
				CompareProvider: c.Defaults.CompareProvider,
				Save:            true,
			})
		}
	}
	return out
}
