package locationconfig

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/yandri918/prediksi-cuaca/internal/brain"
	"github.com/yandri918/prediksi-cuaca/internal/contracts"
	"github.com/yandri918/prediksi-cuaca/internal/weather"
)

// ValidationError 검증 실패 (스케줄러 기동 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// 스케줄러와 같은 초 단위 파서
var scheduleParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.ConfigID == "" {
		return ValidationError{"meta.config_id", "required"}
	}
	if _, err := scheduleParser.Parse(cfg.Meta.ForecastSchedule); err != nil {
		return ValidationError{"meta.forecast_schedule", err.Error()}
	}
	if cfg.Meta.VerifySchedule != "" {
		if _, err := scheduleParser.Parse(cfg.Meta.VerifySchedule); err != nil {
			return ValidationError{"meta.verify_schedule", err.Error()}
		}
	}

	// === Defaults ===
	if err := validateVariables("defaults.variables", cfg.Defaults.Variables); err != nil {
		return err
	}
	if _, err := contracts.ParseModelKinds(cfg.Defaults.Models); err != nil {
		return ValidationError{"defaults.models", err.Error()}
	}
	if err := validateWindow("defaults", cfg.Defaults.HistoryDays, cfg.Defaults.Horizon); err != nil {
		return err
	}

	// === Locations ===
	if len(cfg.Locations) == 0 {
		return ValidationError{"locations", "at least one location required"}
	}
	seen := make(map[string]bool, len(cfg.Locations))
	for i, l := range cfg.Locations {
		field := fmt.Sprintf("locations[%d]", i)
		if l.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if seen[l.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate location %q", l.Name)}
		}
		seen[l.Name] = true

		if err := l.Contract().Validate(); err != nil {
			return ValidationError{field, err.Error()}
		}
		if err := validateVariables(field+".variables", l.Variables); err != nil {
			return err
		}
		if err := validateWindow(field, l.HistoryDays, l.Horizon); err != nil {
			return err
		}
	}
	return nil
}

func validateVariables(field string, names []string) error {
	for _, name := range names {
		if _, err := weather.ParseVariable(name); err != nil {
			return ValidationError{field, err.Error()}
		}
	}
	return nil
}

// 0 은 기본값 사용
func validateWindow(prefix string, historyDays, horizon int) error {
	if historyDays < 0 || historyDays > brain.MaxHistoryDays {
		return ValidationError{prefix + ".history_days", fmt.Sprintf("must be in [0, %d]", brain.MaxHistoryDays)}
	}
	if horizon < 0 {
		return ValidationError{prefix + ".horizon", "must not be negative"}
	}
	return nil
}
