package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

const (
	// MinPoints 전처리 후 최소 길이 (horizon 과 무관한 하한)
	MinPoints = 14
	// HoldoutFraction 홀드아웃 최대 비율
	HoldoutFraction = 0.2
	// maxGridExpansion 격자 길이가 원본의 이 배수를 넘으면 불규칙 시계열로 판단
	maxGridExpansion = 10
)

// Partition 시간순 부분 시계열
type Partition struct {
	Times  []time.Time
	Values []float64
}

// Len 길이
func (p Partition) Len() int {
	return len(p.Values)
}

// Last 마지막 시점
func (p Partition) Last() time.Time {
	if len(p.Times) == 0 {
		return time.Time{}
	}
	return p.Times[len(p.Times)-1]
}

// Observations contracts 형태로 변환
func (p Partition) Observations() []contracts.Observation {
	out := make([]contracts.Observation, len(p.Values))
	for i := range p.Values {
		out[i] = contracts.Observation{Time: p.Times[i], Value: p.Values[i]}
	}
	return out
}

// PreparedDataset 모든 모델이 공유하는 읽기 전용 데이터셋
type PreparedDataset struct {
	Name          string
	Horizon       int
	Step          time.Duration
	Train         Partition
	Holdout       Partition
	Full          Partition
	TrainFeatures *FeatureMatrix
	FullFeatures  *FeatureMatrix
	Filled        int // 보간/보정된 격자 수
}

// TrainingData 학습 구간 (Train)
func (d *PreparedDataset) TrainingData() TrainingData {
	return TrainingData{Times: d.Train.Times, Values: d.Train.Values, Step: d.Step, Features: d.TrainFeatures}
}

// FullData 전체 구간 (재학습용)
func (d *PreparedDataset) FullData() TrainingData {
	return TrainingData{Times: d.Full.Times, Values: d.Full.Values, Step: d.Step, Features: d.FullFeatures}
}

// RequiredLength horizon 에 대한 최소 정제 길이
func RequiredLength(horizon int) int {
	if need := 2 * horizon; need > MinPoints {
		return need
	}
	return MinPoints
}

// Prepare 검증, 정규 격자 재표본, 결측 보간, 분할, 피처 생성
// 입력 시계열은 변경하지 않음
func Prepare(series *contracts.TimeSeries, horizon int) (*PreparedDataset, error) {
	if horizon < 1 {
		return nil, &contracts.ValidationError{Field: "horizon", Reason: fmt.Sprintf("must be >= 1, got %d", horizon)}
	}
	if series == nil {
		return nil, &contracts.ValidationError{Field: "series", Reason: "nil series"}
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	need := RequiredLength(horizon)
	s := series.Clone()
	if s.Len() < 2 {
		return nil, &contracts.InsufficientDataError{Have: s.Len(), Need: need}
	}

	step := inferStep(s.Times())
	times, values, err := resample(s, step)
	if err != nil {
		return nil, err
	}

	filled, err := fillGaps(values)
	if err != nil {
		return nil, err
	}

	n := len(values)
	if n < need {
		return nil, &contracts.InsufficientDataError{Have: n, Need: need}
	}

	holdout := int(math.Floor(HoldoutFraction * float64(n)))
	if horizon < holdout {
		holdout = horizon
	}
	split := n - holdout

	ds := &PreparedDataset{
		Name:    s.Name,
		Horizon: horizon,
		Step:    step,
		Train:   Partition{Times: times[:split], Values: values[:split]},
		Holdout: Partition{Times: times[split:], Values: values[split:]},
		Full:    Partition{Times: times, Values: values},
		Filled:  filled,
	}
	ds.TrainFeatures = BuildFeatures(ds.Train.Times, ds.Train.Values)
	ds.FullFeatures = BuildFeatures(ds.Full.Times, ds.Full.Values)
	return ds, nil
}

// inferStep 양의 간격들의 중앙값
func inferStep(times []time.Time) time.Duration {
	deltas := make([]time.Duration, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		deltas = append(deltas, times[i].Sub(times[i-1]))
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	mid := len(deltas) / 2
	if len(deltas)%2 == 1 {
		return deltas[mid]
	}
	return (deltas[mid-1] + deltas[mid]) / 2
}

// resample 첫 시점 기준 step 간격 격자에 관측값 배치 (빈 칸은 NaN)
func resample(s *contracts.TimeSeries, step time.Duration) ([]time.Time, []float64, error) {
	first := s.Points[0].Time
	last := s.Points[s.Len()-1].Time

	slots := int(math.Round(float64(last.Sub(first))/float64(step))) + 1
	if slots > maxGridExpansion*s.Len() {
		return nil, nil, &contracts.ValidationError{
			Field:  "series",
			Reason: fmt.Sprintf("irregular spacing: %d observations span %d steps of %s", s.Len(), slots, step),
		}
	}

	times := make([]time.Time, slots)
	values := make([]float64, slots)
	for i := range values {
		times[i] = first.Add(time.Duration(i) * step)
		values[i] = math.NaN()
	}
	for _, p := range s.Points {
		idx := int(math.Round(float64(p.Time.Sub(first)) / float64(step)))
		if idx < 0 || idx >= slots {
			continue
		}
		// 같은 칸에 여러 관측이 떨어지면 뒤의 관측값 사용
		if !p.Missing() || math.IsNaN(values[idx]) {
			values[idx] = p.Value
		}
	}
	return times, values, nil
}

// fillGaps 내부 결측은 선형 보간, 양 끝은 가장 가까운 관측값으로 채움
func fillGaps(values []float64) (int, error) {
	firstObs, lastObs := -1, -1
	for i, v := range values {
		if !math.IsNaN(v) {
			if firstObs < 0 {
				firstObs = i
			}
			lastObs = i
		}
	}
	if firstObs < 0 {
		return 0, &contracts.InsufficientDataError{Have: 0, Need: MinPoints}
	}

	filled := 0
	for i := 0; i < firstObs; i++ {
		values[i] = values[firstObs]
		filled++
	}
	for i := lastObs + 1; i < len(values); i++ {
		values[i] = values[lastObs]
		filled++
	}

	prev := firstObs
	for i := firstObs + 1; i <= lastObs; i++ {
		if math.IsNaN(values[i]) {
			continue
		}
		if gap := i - prev; gap > 1 {
			slope := (values[i] - values[prev]) / float64(gap)
			for j := prev + 1; j < i; j++ {
				values[j] = values[prev] + slope*float64(j-prev)
				filled++
			}
		}
		prev = i
	}
	return filled, nil
}
