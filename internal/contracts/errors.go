package contracts

import (
	"errors"
	"fmt"
)

// Sentinel errors (errors.Is 비교용)
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrModelFit         = errors.New("model fit failed")
	ErrValidation       = errors.New("validation failed")
	ErrEmptyEnsemble    = errors.New("empty ensemble")
)

// InsufficientDataError 전처리 후 데이터 길이 부족
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d points, need at least %d", e.Have, e.Need)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// ModelFitError 개별 모델 학습/예측 실패 (해당 모델만 스킵)
type ModelFitError struct {
	Model  ModelKind
	Reason string
	Err    error
}

func (e *ModelFitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: fit failed: %s: %v", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: fit failed: %s", e.Model, e.Reason)
}

func (e *ModelFitError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrModelFit, e.Err}
	}
	return []error{ErrModelFit}
}

// NewModelFitError 생성 헬퍼
func NewModelFitError(model ModelKind, format string, args ...any) *ModelFitError {
	return &ModelFitError{Model: model, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError 잘못된 입력 (중복/역순 타임스탬프, 범위 밖 파라미터 등)
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// EmptyEnsembleError 결합할 예측이 없음
type EmptyEnsembleError struct {
	Reason string
}

func (e *EmptyEnsembleError) Error() string {
	return "empty ensemble: " + e.Reason
}

func (e *EmptyEnsembleError) Unwrap() error { return ErrEmptyEnsemble }
