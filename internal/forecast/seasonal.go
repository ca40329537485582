package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

// Seasonality 푸리에 계절성 정의
type Seasonality struct {
	Name   string
	Period time.Duration
	Order  int
}

// SeasonalConfig 가법 계절 모델 설정
type SeasonalConfig struct {
	Seasonalities   []Seasonality
	Changepoints    int     // 후보 변화점 수
	ChangepointSpan float64 // 변화점을 둘 과거 구간 비율
	ChangepointTau  float64 // 변화점 사전분포 척도 (Laplace)
	SeasonalityStd  float64 // 계절 계수 사전분포 표준편차
	Simulations     int     // 구간 추정용 미래 추세 경로 수
	Confidence      float64
	Seed            int64
}

// DefaultSeasonalConfig 일/주/연 계절성 기본값
func DefaultSeasonalConfig(confidence float64) SeasonalConfig {
	return SeasonalConfig{
		Seasonalities: []Seasonality{
			{Name: "daily", Period: 24 * time.Hour, Order: 4},
			{Name: "weekly", Period: 7 * 24 * time.Hour, Order: 3},
			{Name: "yearly", Period: time.Duration(365.25 * 24 * float64(time.Hour)), Order: 10},
		},
		Changepoints:    25,
		ChangepointSpan: 0.8,
		ChangepointTau:  0.05,
		SeasonalityStd:  10,
		Simulations:     200,
		Confidence:      confidence,
	}
}

// Seasonal 구간별 선형 추세 + 푸리에 계절성
type Seasonal struct {
	cfg SeasonalConfig

	start   time.Time
	span    float64 // 학습 구간 길이 (초)
	yScale  float64
	active  []Seasonality
	cps     []float64 // 정규화 시간 [0,1] 기준 변화점
	beta    []float64 // [m, k, δ..., fourier...]
	sigma   float64   // 정규화 잔차 표준편차
	last    time.Time
	step    time.Duration
	notes   []string
	fitted  bool
}

// NewSeasonal 생성
func NewSeasonal(cfg SeasonalConfig) *Seasonal {
	return &Seasonal{cfg: cfg}
}

// Kind 모델 태그
func (m *Seasonal) Kind() contracts.ModelKind {
	return contracts.ModelSeasonal
}

// primarySeasonSteps 간격으로 표현 가능한 가장 짧은 계절 주기 (step 단위)
func (m *Seasonal) primarySeasonSteps(step time.Duration) int {
	best := 0
	for _, s := range m.cfg.Seasonalities {
		steps := int(s.Period / step)
		if steps >= 2 && (best == 0 || steps < best) {
			best = steps
		}
	}
	if best == 0 {
		best = 2
	}
	return best
}

// Fit 능형 정규방정식으로 MAP 근사 추정
func (m *Seasonal) Fit(ctx context.Context, data TrainingData) error {
	kind := m.Kind()
	minLen := 2 * m.primarySeasonSteps(data.Step)
	if data.Len() < minLen {
		return contracts.NewModelFitError(kind, "need at least %d observations (two primary seasons), got %d", minLen, data.Len())
	}

	m.start = data.Times[0]
	m.span = data.Last().Sub(m.start).Seconds()
	m.last = data.Last()
	m.step = data.Step
	m.notes = nil

	historySpan := data.Last().Sub(m.start)
	m.active = m.active[:0]
	for _, s := range m.cfg.Seasonalities {
		if s.Period/data.Step < 2 {
			continue
		}
		if historySpan < 2*s.Period {
			m.notes = append(m.notes, fmt.Sprintf("%s seasonality disabled: history spans less than two cycles", s.Name))
			continue
		}
		m.active = append(m.active, s)
	}

	m.yScale = floats.Max(absAll(data.Values))
	if m.yScale == 0 {
		// 전부 0 (건기 강수량 등)
		m.yScale = 1
	}
	y := make([]float64, data.Len())
	for i, v := range data.Values {
		y[i] = v / m.yScale
	}
	t := make([]float64, data.Len())
	for i, ts := range data.Times {
		t[i] = m.scaledTime(ts)
	}

	nCP := min(m.cfg.Changepoints, int(m.cfg.ChangepointSpan*float64(data.Len()))-1)
	m.cps = m.cps[:0]
	if nCP > 0 {
		limit := int(m.cfg.ChangepointSpan * float64(data.Len()))
		for j := 1; j <= nCP; j++ {
			idx := j * limit / (nCP + 1)
			m.cps = append(m.cps, t[idx])
		}
	}

	if err := ctx.Err(); err != nil {
		return &contracts.ModelFitError{Model: kind, Reason: "interrupted", Err: err}
	}

	design := m.design(t)
	target := mat.NewVecDense(len(y), y)
	_, cols := design.Dims()

	// 1차: 약한 정규화로 잔차 분산 추정, 2차: 사전분포 기반 패널티
	penalty := make([]float64, cols)
	for i := range penalty {
		penalty[i] = 1e-6
	}
	beta, err := ridgeSolve(design, target, penalty)
	if err != nil {
		return &contracts.ModelFitError{Model: kind, Reason: "trend/seasonality solve", Err: err}
	}
	sigma2 := math.Max(residualVariance(design, y, beta), 1e-8)

	nCPs := len(m.cps)
	for i := range penalty {
		switch {
		case i < 2:
			penalty[i] = 1e-8
		case i < 2+nCPs:
			// Laplace(0, τ) 와 같은 분산(2τ²)의 가우시안 근사
			penalty[i] = sigma2 / (2 * m.cfg.ChangepointTau * m.cfg.ChangepointTau)
		default:
			penalty[i] = sigma2 / (m.cfg.SeasonalityStd * m.cfg.SeasonalityStd)
		}
	}
	if beta, err = ridgeSolve(design, target, penalty); err != nil {
		return &contracts.ModelFitError{Model: kind, Reason: "trend/seasonality solve", Err: err}
	}

	m.beta = beta
	m.sigma = math.Sqrt(residualVariance(design, y, beta))
	m.fitted = true
	return nil
}

func (m *Seasonal) scaledTime(ts time.Time) float64 {
	if m.span <= 0 {
		return 0
	}
	return ts.Sub(m.start).Seconds() / m.span
}

// design 컬럼: 절편, 기울기, 변화점 힌지, 계절 sin/cos
func (m *Seasonal) design(t []float64) *mat.Dense {
	cols := 2 + len(m.cps)
	for _, s := range m.active {
		cols += 2 * s.Order
	}
	x := mat.NewDense(len(t), cols, nil)
	for r, tv := range t {
		row := m.row(tv)
		x.SetRow(r, row)
	}
	return x
}

func (m *Seasonal) row(tv float64) []float64 {
	row := []float64{1, tv}
	for _, cp := range m.cps {
		row = append(row, math.Max(0, tv-cp))
	}
	seconds := tv * m.span
	for _, s := range m.active {
		period := s.Period.Seconds()
		for k := 1; k <= s.Order; k++ {
			arg := 2 * math.Pi * float64(k) * seconds / period
			row = append(row, math.Sin(arg), math.Cos(arg))
		}
	}
	return row
}

func residualVariance(x *mat.Dense, y, beta []float64) float64 {
	rows, _ := x.Dims()
	ss := 0.0
	for r := 0; r < rows; r++ {
		d := y[r] - floats.Dot(x.RawRowView(r), beta)
		ss += d * d
	}
	return ss / float64(rows)
}

// Predict 결정적 예측 + 미래 변화점 시뮬레이션 기반 구간
func (m *Seasonal) Predict(horizon int) (*contracts.ForecastResult, error) {
	if err := checkHorizon(m.Kind(), m.fitted, horizon); err != nil {
		return nil, err
	}
	times := futureTimes(m.last, m.step, horizon)
	tv := make([]float64, horizon)
	mean := make([]float64, horizon)
	for h, ts := range times {
		tv[h] = m.scaledTime(ts)
		mean[h] = floats.Dot(m.row(tv[h]), m.beta)
	}

	// 미래 변화점: 과거와 같은 빈도, 크기는 추정된 δ 의 평균 절대값
	deltas := m.beta[2 : 2+len(m.cps)]
	lambda := 1e-8
	if len(deltas) > 0 {
		lambda += floats.Norm(deltas, 1) / float64(len(deltas))
	}
	stepScaled := m.step.Seconds() / math.Max(m.span, 1)
	cpRate := float64(len(m.cps)) * stepScaled
	rng := newRand(m.cfg.Seed)

	sims := make([][]float64, horizon)
	for h := range sims {
		sims[h] = make([]float64, m.cfg.Simulations)
	}
	for s := 0; s < m.cfg.Simulations; s++ {
		shift := 0.0 // 누적 기울기 변화
		offset := 0.0
		prev := 1.0
		for h := 0; h < horizon; h++ {
			offset += shift * (tv[h] - prev)
			prev = tv[h]
			if rng.Float64() < cpRate {
				shift += laplace(rng, lambda)
			}
			sims[h][s] = mean[h] + offset + rng.NormFloat64()*m.sigma
		}
	}

	result := &contracts.ForecastResult{
		Model:  m.Kind(),
		Points: make([]contracts.ForecastPoint, horizon),
		Params: map[string]any{
			"changepoints":  len(m.cps),
			"seasonalities": m.activeNames(),
			"sigma":         m.sigma * m.yScale,
		},
		Notes: append([]string(nil), m.notes...),
	}
	for h := 0; h < horizon; h++ {
		lo, hi := sampleQuantiles(sims[h], m.cfg.Confidence)
		v := mean[h] * m.yScale
		lo, hi = math.Min(lo*m.yScale, v), math.Max(hi*m.yScale, v)
		result.Points[h] = contracts.ForecastPoint{
			Time:  times[h],
			Value: v,
			Lower: contracts.Bound(lo),
			Upper: contracts.Bound(hi),
		}
	}
	return result, nil
}

func (m *Seasonal) activeNames() []string {
	names := make([]string, len(m.active))
	for i, s := range m.active {
		names[i] = s.Name
	}
	return names
}

func laplace(rng *rand.Rand, scale float64) float64 {
	v := rng.ExpFloat64() * scale
	if rng.Intn(2) == 0 {
		return -v
	}
	return v
}

func absAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Abs(x)
	}
	return out
}
