package forecast

import (
	"context"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

// NeuralConfig 순환 신경망 설정
type NeuralConfig struct {
	WindowSize      int
	Hidden          int
	Epochs          int
	BatchSize       int
	LearningRate    float64
	Dropout         float64
	ClipNorm        float64
	DropoutSamples  int // 0 이면 예측 구간 없음
	ConfidenceLevel float64
	Seed            int64
}

// DefaultNeuralConfig 기본값
func DefaultNeuralConfig() NeuralConfig {
	return NeuralConfig{
		WindowSize:      24,
		Hidden:          16,
		Epochs:          50,
		BatchSize:       16,
		LearningRate:    0.01,
		Dropout:         0.2,
		ClipNorm:        5,
		DropoutSamples:  20,
		ConfidenceLevel: 0.95,
	}
}

// Neural Elman RNN (tanh 은닉 상태 + 선형 출력)
// 한 스텝 앞 예측으로 학습하고, 다단계는 자기 예측을 입력으로 되먹임 (오차 누적)
type Neural struct {
	cfg NeuralConfig
	rng *rand.Rand

	// 파라미터는 하나의 벡터에 연속 배치 (Adam/클리핑 단순화)
	params []float64
	wx     []float64 // [H]
	wh     []float64 // [H*H], 행 우선
	bh     []float64 // [H]
	wo     []float64 // [H]
	bo     []float64 // [1]

	minV, maxV float64
	window     []float64 // 마지막 WindowSize 개 (정규화)
	last       time.Time
	step       time.Duration
	loss       float64
	fitted     bool
}

// NewNeural 생성
func NewNeural(cfg NeuralConfig) *Neural {
	return &Neural{cfg: cfg}
}

// Kind 모델 태그
func (m *Neural) Kind() contracts.ModelKind {
	return contracts.ModelNeural
}

func (m *Neural) initParams() {
	h := m.cfg.Hidden
	m.params = make([]float64, h+h*h+h+h+1)
	off := 0
	m.wx, off = m.params[off:off+h], off+h
	m.wh, off = m.params[off:off+h*h], off+h*h
	m.bh, off = m.params[off:off+h], off+h
	m.wo, off = m.params[off:off+h], off+h
	m.bo = m.params[off : off+1]

	scale := 1 / math.Sqrt(float64(h))
	for i := range m.wx {
		m.wx[i] = (m.rng.Float64()*2 - 1) * scale
	}
	for i := range m.wh {
		m.wh[i] = (m.rng.Float64()*2 - 1) * scale * 0.5
	}
	for i := range m.wo {
		m.wo[i] = (m.rng.Float64()*2 - 1) * scale
	}
}

// sliceLike g 를 params 와 같은 배치로 분할
func (m *Neural) sliceLike(g []float64) (wx, wh, bh, wo, bo []float64) {
	h := m.cfg.Hidden
	off := 0
	wx, off = g[off:off+h], off+h
	wh, off = g[off:off+h*h], off+h*h
	bh, off = g[off:off+h], off+h
	wo, off = g[off:off+h], off+h
	bo = g[off : off+1]
	return
}

// forward 은닉 상태 이력과 출력. mask 가 nil 이 아니면 마지막 은닉 상태에 dropout 적용
func (m *Neural) forward(input []float64, mask []float64) ([][]float64, float64) {
	h := m.cfg.Hidden
	states := make([][]float64, len(input)+1)
	states[0] = make([]float64, h)
	for t, xv := range input {
		prev := states[t]
		cur := make([]float64, h)
		for i := 0; i < h; i++ {
			a := m.wx[i]*xv + m.bh[i]
			row := m.wh[i*h : (i+1)*h]
			a += floats.Dot(row, prev)
			cur[i] = math.Tanh(a)
		}
		states[t+1] = cur
	}
	final := states[len(input)]
	out := m.bo[0]
	for i := 0; i < h; i++ {
		v := final[i]
		if mask != nil {
			v *= mask[i]
		}
		out += m.wo[i] * v
	}
	return states, out
}

// backward BPTT 로 grad 에 누적, 제곱오차/2 손실 반환
func (m *Neural) backward(input []float64, target float64, mask []float64, grad []float64) float64 {
	h := m.cfg.Hidden
	states, out := m.forward(input, mask)
	gwx, gwh, gbh, gwo, gbo := m.sliceLike(grad)

	dy := out - target
	gbo[0] += dy
	final := states[len(input)]
	dh := make([]float64, h)
	for i := 0; i < h; i++ {
		mi := 1.0
		if mask != nil {
			mi = mask[i]
		}
		gwo[i] += dy * final[i] * mi
		dh[i] = dy * m.wo[i] * mi
	}

	da := make([]float64, h)
	for t := len(input); t >= 1; t-- {
		cur, prev := states[t], states[t-1]
		for i := 0; i < h; i++ {
			da[i] = dh[i] * (1 - cur[i]*cur[i])
		}
		xv := input[t-1]
		next := make([]float64, h)
		for i := 0; i < h; i++ {
			gwx[i] += da[i] * xv
			gbh[i] += da[i]
			row := gwh[i*h : (i+1)*h]
			floats.AddScaled(row, da[i], prev)
			floats.AddScaled(next, da[i], m.wh[i*h:(i+1)*h])
		}
		dh = next
	}
	return 0.5 * dy * dy
}

func (m *Neural) dropoutMask() []float64 {
	mask := make([]float64, m.cfg.Hidden)
	keep := 1 - m.cfg.Dropout
	for i := range mask {
		if m.rng.Float64() < keep {
			mask[i] = 1 / keep
		}
	}
	return mask
}

func (m *Neural) scale(v float64) float64 {
	return (v - m.minV) / (m.maxV - m.minV)
}

func (m *Neural) unscale(v float64) float64 {
	return v*(m.maxV-m.minV) + m.minV
}

// Fit 최소-최대 정규화 후 미니배치 Adam 학습
func (m *Neural) Fit(ctx context.Context, data TrainingData) error {
	kind := m.Kind()
	w := m.cfg.WindowSize
	if data.Len() < w+1 {
		return contracts.NewModelFitError(kind, "need at least %d observations for window %d, got %d", w+1, w, data.Len())
	}

	m.rng = newRand(m.cfg.Seed)
	m.minV, m.maxV = floats.Min(data.Values), floats.Max(data.Values)
	if m.maxV <= m.minV {
		// 상수 시계열: 정규화 폭 1 로 고정
		m.maxV = m.minV + 1
	}
	scaled := make([]float64, data.Len())
	for i, v := range data.Values {
		scaled[i] = m.scale(v)
	}

	samples := len(scaled) - w
	order := make([]int, samples)
	for i := range order {
		order[i] = i
	}

	m.initParams()
	grad := make([]float64, len(m.params))
	mom := make([]float64, len(m.params))
	vel := make([]float64, len(m.params))
	const beta1, beta2, eps = 0.9, 0.999, 1e-8
	iter := 0

	for epoch := 0; epoch < m.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return &contracts.ModelFitError{Model: kind, Reason: "training interrupted", Err: err}
		}
		m.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		epochLoss := 0.0

		for b := 0; b < samples; b += m.cfg.BatchSize {
			end := min(b+m.cfg.BatchSize, samples)
			for i := range grad {
				grad[i] = 0
			}
			for _, idx := range order[b:end] {
				epochLoss += m.backward(scaled[idx:idx+w], scaled[idx+w], m.dropoutMask(), grad)
			}
			floats.Scale(1/float64(end-b), grad)
			if norm := floats.Norm(grad, 2); norm > m.cfg.ClipNorm {
				floats.Scale(m.cfg.ClipNorm/norm, grad)
			}

			iter++
			c1 := 1 - math.Pow(beta1, float64(iter))
			c2 := 1 - math.Pow(beta2, float64(iter))
			for i, g := range grad {
				mom[i] = beta1*mom[i] + (1-beta1)*g
				vel[i] = beta2*vel[i] + (1-beta2)*g*g
				m.params[i] -= m.cfg.LearningRate * (mom[i] / c1) / (math.Sqrt(vel[i]/c2) + eps)
			}
		}
		m.loss = epochLoss / float64(samples)
	}

	if !finite(m.loss) {
		return contracts.NewModelFitError(kind, "training diverged")
	}

	m.window = append([]float64(nil), scaled[len(scaled)-w:]...)
	m.last = data.Last()
	m.step = data.Step
	m.fitted = true
	return nil
}

// rollout 자기 예측을 되먹이는 재귀 예측 (정규화 공간)
func (m *Neural) rollout(horizon int, stochastic bool) []float64 {
	window := append([]float64(nil), m.window...)
	out := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		var mask []float64
		if stochastic {
			mask = m.dropoutMask()
		}
		_, y := m.forward(window, mask)
		out[h] = y
		window = append(window[1:], y)
	}
	return out
}

// Predict 결정적 재귀 예측, DropoutSamples > 1 이면 MC dropout 분위수 구간
func (m *Neural) Predict(horizon int) (*contracts.ForecastResult, error) {
	if err := checkHorizon(m.Kind(), m.fitted, horizon); err != nil {
		return nil, err
	}
	times := futureTimes(m.last, m.step, horizon)
	mean := m.rollout(horizon, false)

	result := &contracts.ForecastResult{
		Model:  m.Kind(),
		Points: make([]contracts.ForecastPoint, horizon),
		Params: map[string]any{
			"window":     m.cfg.WindowSize,
			"hidden":     m.cfg.Hidden,
			"epochs":     m.cfg.Epochs,
			"train_loss": m.loss,
		},
		Notes: []string{"multi-step forecast feeds predictions back as inputs; error compounds with horizon"},
	}

	var paths [][]float64
	if m.cfg.DropoutSamples > 1 {
		paths = make([][]float64, m.cfg.DropoutSamples)
		for s := range paths {
			paths[s] = m.rollout(horizon, true)
		}
	}

	column := make([]float64, len(paths))
	for h := 0; h < horizon; h++ {
		v := m.unscale(mean[h])
		p := contracts.ForecastPoint{Time: times[h], Value: v}
		if len(paths) > 0 {
			for s := range paths {
				column[s] = m.unscale(paths[s][h])
			}
			lo, hi := sampleQuantiles(column, m.cfg.ConfidenceLevel)
			p.Lower = contracts.Bound(math.Min(lo, v))
			p.Upper = contracts.Bound(math.Max(hi, v))
		}
		result.Points[h] = p
	}
	return result, nil
}
