package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

// ARIMAConfig 자동 차수 선택 범위
type ARIMAConfig struct {
	MaxP         int
	MaxQ         int
	MaxD         int
	Confidence   float64
	KPSSCritical float64 // 수준 정상성 KPSS 임계값 (5%: 0.463)
}

// DefaultARIMAConfig p,q ∈ [0,5], d ∈ [0,2]
func DefaultARIMAConfig(confidence float64) ARIMAConfig {
	return ARIMAConfig{MaxP: 5, MaxQ: 5, MaxD: 2, Confidence: confidence, KPSSCritical: 0.463}
}

// ARIMA 통계 모델
// d 는 KPSS 검정, (p, q) 는 AIC 최소 (Hannan-Rissanen 추정 + CSS 잔차)
type ARIMA struct {
	cfg ARIMAConfig

	p, d, q  int
	constant float64
	phi      []float64
	theta    []float64
	sigma2   float64
	aic      float64

	history []float64
	diffed  []float64
	resid   []float64
	last    time.Time
	step    time.Duration
	fitted  bool
}

// NewARIMA 생성
func NewARIMA(cfg ARIMAConfig) *ARIMA {
	return &ARIMA{cfg: cfg}
}

// Kind 모델 태그
func (m *ARIMA) Kind() contracts.ModelKind {
	return contracts.ModelStatistical
}

// Order 선택된 (p, d, q)
func (m *ARIMA) Order() (int, int, int) {
	return m.p, m.d, m.q
}

type armaFit struct {
	p, q     int
	constant float64
	phi      []float64
	theta    []float64
	sigma2   float64
	aic      float64
	resid    []float64
}

// Fit 차분 차수 결정 후 (p, q) 격자 탐색
func (m *ARIMA) Fit(ctx context.Context, data TrainingData) error {
	kind := m.Kind()
	if err := checkVariance(kind, data.Values); err != nil {
		return err
	}
	minLen := max(m.cfg.MaxP, m.cfg.MaxQ) + m.cfg.MaxD + 1
	if data.Len() < minLen {
		return contracts.NewModelFitError(kind, "need at least %d observations, got %d", minLen, data.Len())
	}

	d := m.selectDifferencing(data.Values)
	x := difference(data.Values, d)
	withConst := d < 2

	var best *armaFit
	if _, variance := stat.MeanVariance(x, nil); variance <= 1e-12 {
		// 차분 후 상수 (완전 선형 추세 등): 상수 drift 만 사용
		best = constantFit(x, withConst)
	} else {
		pMax, qMax := m.orderBounds(len(x))
		kLong := longAROrder(pMax, qMax)
		start := commonStart(pMax, qMax)

		for p := 0; p <= pMax; p++ {
			for q := 0; q <= qMax; q++ {
				if err := ctx.Err(); err != nil {
					return &contracts.ModelFitError{Model: kind, Reason: "order search interrupted", Err: err}
				}
				fit, err := fitARMA(x, p, q, withConst, kLong, start)
				if err != nil {
					continue
				}
				if !rootsInsideUnitCircle(fit.phi) || !rootsInsideUnitCircle(negate(fit.theta)) {
					continue
				}
				if best == nil || fit.aic < best.aic {
					best = fit
				}
			}
		}
	}
	if best == nil {
		return contracts.NewModelFitError(kind, "no stationary and invertible ARMA order for d=%d", d)
	}

	m.p, m.d, m.q = best.p, d, best.q
	m.constant = best.constant
	m.phi, m.theta = best.phi, best.theta
	m.sigma2 = best.sigma2
	m.aic = best.aic
	m.history = append([]float64(nil), data.Values...)
	m.diffed = x
	m.resid = best.resid
	m.last = data.Last()
	m.step = data.Step
	m.fitted = true
	return nil
}

// selectDifferencing KPSS 통계량이 임계값 미만이 되는 최소 d
func (m *ARIMA) selectDifferencing(values []float64) int {
	for d := 0; d < m.cfg.MaxD; d++ {
		x := difference(values, d)
		if len(x) < 4 || kpssStatistic(x) < m.cfg.KPSSCritical {
			return d
		}
	}
	return m.cfg.MaxD
}

// orderBounds 데이터 길이에 맞춰 탐색 상한 축소
func (m *ARIMA) orderBounds(n int) (int, int) {
	pMax := min(m.cfg.MaxP, n/6)
	qMax := min(m.cfg.MaxQ, n/6)
	for pMax+qMax > 0 && n-commonStart(pMax, qMax) < pMax+qMax+4 {
		if pMax >= qMax {
			pMax--
		} else {
			qMax--
		}
	}
	return pMax, qMax
}

func longAROrder(pMax, qMax int) int {
	if qMax == 0 {
		return 0
	}
	return max(pMax, qMax) + 2
}

// commonStart 모든 후보의 AIC 를 같은 구간에서 비교하기 위한 시작 인덱스
func commonStart(pMax, qMax int) int {
	if qMax == 0 {
		return pMax
	}
	return max(pMax, longAROrder(pMax, qMax)+qMax)
}

func constantFit(x []float64, withConst bool) *armaFit {
	fit := &armaFit{}
	if withConst {
		fit.constant = stat.Mean(x, nil)
	}
	fit.resid = make([]float64, len(x))
	ss := 0.0
	for i, v := range x {
		fit.resid[i] = v - fit.constant
		ss += fit.resid[i] * fit.resid[i]
	}
	fit.sigma2 = ss / float64(len(x))
	fit.aic = math.Inf(-1)
	return fit
}

// fitARMA Hannan-Rissanen 2단계 추정
func fitARMA(x []float64, p, q int, withConst bool, kLong, start int) (*armaFit, error) {
	n := len(x)
	var innov []float64
	if q > 0 {
		var err error
		if innov, err = longARResiduals(x, kLong, withConst); err != nil {
			return nil, err
		}
	}

	rowsStart := p
	if q > 0 {
		rowsStart = max(p, kLong+q)
	}
	ncols := p + q
	if withConst {
		ncols++
	}
	nrows := n - rowsStart

	fit := &armaFit{p: p, q: q, phi: make([]float64, p), theta: make([]float64, q)}
	if ncols > 0 {
		if nrows < ncols+3 {
			return nil, fmt.Errorf("arma(%d,%d): %d rows for %d parameters", p, q, nrows, ncols)
		}
		design := mat.NewDense(nrows, ncols, nil)
		target := mat.NewVecDense(nrows, nil)
		for r := 0; r < nrows; r++ {
			t := rowsStart + r
			col := 0
			if withConst {
				design.Set(r, col, 1)
				col++
			}
			for i := 1; i <= p; i++ {
				design.Set(r, col, x[t-i])
				col++
			}
			for j := 1; j <= q; j++ {
				design.Set(r, col, innov[t-j])
				col++
			}
			target.SetVec(r, x[t])
		}
		beta, err := leastSquares(design, target)
		if err != nil {
			return nil, err
		}
		col := 0
		if withConst {
			fit.constant = beta[0]
			col++
		}
		copy(fit.phi, beta[col:col+p])
		copy(fit.theta, beta[col+p:])
	}

	fit.resid = armaResiduals(x, fit.constant, fit.phi, fit.theta)
	ss := 0.0
	for t := start; t < n; t++ {
		ss += fit.resid[t] * fit.resid[t]
	}
	nEff := float64(n - start)
	fit.sigma2 = ss / nEff
	if !finite(fit.sigma2) {
		return nil, fmt.Errorf("arma(%d,%d): non-finite residual variance", p, q)
	}
	k := float64(ncols + 1)
	fit.aic = nEff*math.Log(math.Max(fit.sigma2, 1e-300)) + 2*k
	return fit, nil
}

// longARResiduals 고차 AR 적합 잔차 (MA 항의 대리 변수)
func longARResiduals(x []float64, k int, withConst bool) ([]float64, error) {
	n := len(x)
	ncols := k
	if withConst {
		ncols++
	}
	nrows := n - k
	if nrows < ncols+2 {
		return nil, fmt.Errorf("long ar(%d): too few rows", k)
	}
	design := mat.NewDense(nrows, ncols, nil)
	target := mat.NewVecDense(nrows, nil)
	for r := 0; r < nrows; r++ {
		t := k + r
		col := 0
		if withConst {
			design.Set(r, col, 1)
			col++
		}
		for i := 1; i <= k; i++ {
			design.Set(r, col, x[t-i])
			col++
		}
		target.SetVec(r, x[t])
	}
	beta, err := leastSquares(design, target)
	if err != nil {
		return nil, err
	}

	resid := make([]float64, n)
	for t := k; t < n; t++ {
		pred := 0.0
		col := 0
		if withConst {
			pred = beta[0]
			col++
		}
		for i := 1; i <= k; i++ {
			pred += beta[col+i-1] * x[t-i]
		}
		resid[t] = x[t] - pred
	}
	return resid, nil
}

// armaResiduals 조건부 제곱합 잔차 (표본 이전 잔차는 0)
func armaResiduals(x []float64, c float64, phi, theta []float64) []float64 {
	start := max(len(phi), len(theta))
	e := make([]float64, len(x))
	for t := start; t < len(x); t++ {
		pred := c
		for i, ph := range phi {
			pred += ph * x[t-1-i]
		}
		for j, th := range theta {
			pred += th * e[t-1-j]
		}
		e[t] = x[t] - pred
	}
	return e
}

// kpssStatistic 수준 정상성 KPSS 통계량 (Bartlett 커널)
func kpssStatistic(x []float64) float64 {
	n := len(x)
	mean := stat.Mean(x, nil)
	e := make([]float64, n)
	for i, v := range x {
		e[i] = v - mean
	}

	eta, cum := 0.0, 0.0
	for _, v := range e {
		cum += v
		eta += cum * cum
	}
	eta /= float64(n) * float64(n)

	lags := int(3 * math.Sqrt(float64(n)) / 13)
	s2 := 0.0
	for _, v := range e {
		s2 += v * v
	}
	for l := 1; l <= lags; l++ {
		acc := 0.0
		for t := l; t < n; t++ {
			acc += e[t] * e[t-l]
		}
		s2 += 2 * (1 - float64(l)/float64(lags+1)) * acc
	}
	s2 /= float64(n)
	if s2 <= 0 {
		return 0
	}
	return eta / s2
}

// Predict 재귀 예측 + ψ 가중치 기반 구간
func (m *ARIMA) Predict(horizon int) (*contracts.ForecastResult, error) {
	if err := checkHorizon(m.Kind(), m.fitted, horizon); err != nil {
		return nil, err
	}

	x := append([]float64(nil), m.diffed...)
	e := append([]float64(nil), m.resid...)
	steps := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		n := len(x)
		pred := m.constant
		for i, ph := range m.phi {
			if n-1-i >= 0 {
				pred += ph * x[n-1-i]
			}
		}
		for j, th := range m.theta {
			if n-1-j >= 0 {
				pred += th * e[n-1-j]
			}
		}
		x = append(x, pred)
		e = append(e, 0)
		steps[h] = pred
	}
	values := integrate(m.history, m.d, steps)

	psi := m.psiWeights(horizon)
	z := zScore(m.cfg.Confidence)
	times := futureTimes(m.last, m.step, horizon)

	result := &contracts.ForecastResult{
		Model:  m.Kind(),
		Points: make([]contracts.ForecastPoint, horizon),
		Params: map[string]any{
			"p": m.p, "d": m.d, "q": m.q,
			"constant": m.constant,
			"sigma2":   m.sigma2,
			"aic":      m.aic,
		},
	}
	cum := 0.0
	for h := 0; h < horizon; h++ {
		cum += psi[h] * psi[h]
		half := z * math.Sqrt(m.sigma2*cum)
		result.Points[h] = contracts.ForecastPoint{
			Time:  times[h],
			Value: values[h],
			Lower: contracts.Bound(values[h] - half),
			Upper: contracts.Bound(values[h] + half),
		}
	}
	result.Notes = append(result.Notes, fmt.Sprintf("selected ARIMA(%d,%d,%d)", m.p, m.d, m.q))
	return result, nil
}

// psiWeights φ(B)(1-B)^d ψ(B) = θ(B) 의 MA(∞) 계수
func (m *ARIMA) psiWeights(horizon int) []float64 {
	// a(B) = 1 - Σφ_i B^i 에 (1-B)^d 를 곱함
	poly := make([]float64, len(m.phi)+1)
	poly[0] = 1
	for i, ph := range m.phi {
		poly[i+1] = -ph
	}
	for k := 0; k < m.d; k++ {
		next := make([]float64, len(poly)+1)
		for i, c := range poly {
			next[i] += c
			next[i+1] -= c
		}
		poly = next
	}
	ar := make([]float64, len(poly)-1)
	for i := range ar {
		ar[i] = -poly[i+1]
	}

	psi := make([]float64, horizon)
	psi[0] = 1
	for j := 1; j < horizon; j++ {
		v := 0.0
		if j <= len(m.theta) {
			v = m.theta[j-1]
		}
		for i := 1; i <= min(j, len(ar)); i++ {
			v += ar[i-1] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}

func negate(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = -x
	}
	return out
}
