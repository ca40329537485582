package forecast

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// 트리 모델용 피처 정의
// ⭐ SSOT: 학습과 재귀 예측이 같은 featureRow 를 사용
var (
	featureLags    = []int{1, 2, 3, 7}
	featureWindows = []int{7, 14}
)

// LagDepth 피처 계산에 필요한 과거 관측 수
const LagDepth = 14

// FeatureNames 피처 컬럼 순서
var FeatureNames = []string{
	"lag_1", "lag_2", "lag_3", "lag_7",
	"rolling_mean_7", "rolling_std_7",
	"rolling_mean_14", "rolling_std_14",
	"hour", "day_of_week", "day_of_month", "day_of_year",
	"month", "quarter", "is_weekend",
}

// FeatureMatrix 트리 모델 학습 행렬
// Rows[i] 는 Times[i] 시점 값(Targets[i])을 예측하기 위한 피처
type FeatureMatrix struct {
	Names   []string
	Times   []time.Time
	Rows    [][]float64
	Targets []float64
}

// Len 행 개수
func (m *FeatureMatrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Rows)
}

// BuildFeatures 정규 격자 시계열로부터 피처 행렬 생성
// 앞쪽 LagDepth 개 관측은 피처를 만들 수 없어 제외
func BuildFeatures(times []time.Time, values []float64) *FeatureMatrix {
	m := &FeatureMatrix{Names: FeatureNames}
	for i := LagDepth; i < len(values); i++ {
		m.Times = append(m.Times, times[i])
		m.Rows = append(m.Rows, featureRow(values[:i], times[i]))
		m.Targets = append(m.Targets, values[i])
	}
	return m
}

// featureRow history 의 마지막 값 직후 시점 t 에 대한 피처
// len(history) >= LagDepth 전제
func featureRow(history []float64, t time.Time) []float64 {
	n := len(history)
	row := make([]float64, 0, len(FeatureNames))

	for _, lag := range featureLags {
		row = append(row, history[n-lag])
	}
	for _, w := range featureWindows {
		window := history[n-w:]
		mean, std := stat.MeanStdDev(window, nil)
		if math.IsNaN(std) {
			std = 0
		}
		row = append(row, mean, std)
	}

	weekday := int(t.Weekday())
	// 월요일=0 (pandas dayofweek 기준)
	dow := (weekday + 6) % 7
	isWeekend := 0.0
	if dow >= 5 {
		isWeekend = 1
	}
	month := int(t.Month())
	row = append(row,
		float64(t.Hour()),
		float64(dow),
		float64(t.Day()),
		float64(t.YearDay()),
		float64(month),
		float64((month-1)/3+1),
		isWeekend,
	)
	return row
}
