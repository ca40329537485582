package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

// Options 실행 단위 오버라이드 가능한 설정
type Options struct {
	WindowSize      int                             // 신경망 입력 윈도우
	ConfidenceLevel float64                         // 예측 구간 신뢰수준 (0, 1)
	Seed            int64                           // 0 이면 시간 기반 시드
	DropoutSamples  int                             // MC dropout 궤적 수 (0 이면 구간 없음)
	Epochs          int                             // 신경망 학습 epoch
	FitTimeout      time.Duration                   // 모델별 제한 시간 (0 이면 무제한)
	MaxHorizon      int                             // 허용 최대 예측 길이
	Weights         map[contracts.ModelKind]float64 // 사용자 지정 앙상블 가중치 (nil 이면 역RMSE)
}

// DefaultOptions 기본 설정
func DefaultOptions() Options {
	return Options{
		WindowSize:      24,
		ConfidenceLevel: 0.95,
		DropoutSamples:  20,
		Epochs:          50,
		FitTimeout:      2 * time.Minute,
		MaxHorizon:      365,
	}
}

// Overrides 요청별 오버라이드 (nil 필드는 기본값 유지)
type Overrides struct {
	WindowSize      *int                            `json:"window_size,omitempty"`
	ConfidenceLevel *float64                        `json:"confidence_level,omitempty"`
	Seed            *int64                          `json:"seed,omitempty"`
	DropoutSamples  *int                            `json:"dropout_samples,omitempty"`
	Weights         map[contracts.ModelKind]float64 `json:"weights,omitempty"`
}

// Apply 오버라이드 적용한 사본 반환
func (o Options) Apply(ov *Overrides) Options {
	if ov == nil {
		return o
	}
	if ov.WindowSize != nil {
		o.WindowSize = *ov.WindowSize
	}
	if ov.ConfidenceLevel != nil {
		o.ConfidenceLevel = *ov.ConfidenceLevel
	}
	if ov.Seed != nil {
		o.Seed = *ov.Seed
	}
	if ov.DropoutSamples != nil {
		o.DropoutSamples = *ov.DropoutSamples
	}
	if ov.Weights != nil {
		o.Weights = ov.Weights
	}
	return o
}

// Validate 범위 검증
func (o Options) Validate() error {
	if o.WindowSize < 1 {
		return &contracts.ValidationError{Field: "window_size", Reason: fmt.Sprintf("must be >= 1, got %d", o.WindowSize)}
	}
	if math.IsNaN(o.ConfidenceLevel) || o.ConfidenceLevel <= 0 || o.ConfidenceLevel >= 1 {
		return &contracts.ValidationError{Field: "confidence_level", Reason: fmt.Sprintf("must be in (0, 1), got %v", o.ConfidenceLevel)}
	}
	if o.DropoutSamples < 0 {
		return &contracts.ValidationError{Field: "dropout_samples", Reason: "must not be negative"}
	}
	if o.Epochs < 1 {
		return &contracts.ValidationError{Field: "epochs", Reason: "must be >= 1"}
	}
	if o.FitTimeout < 0 {
		return &contracts.ValidationError{Field: "fit_timeout", Reason: "must not be negative"}
	}
	return nil
}
