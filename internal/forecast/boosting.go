package forecast

import (
	"context"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

// BoostingConfig 그래디언트 부스팅 설정
type BoostingConfig struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
	MinLeaf      int
	Lambda       float64 // 리프 가중치 L2 정규화
}

// DefaultBoostingConfig 100 라운드, 학습률 0.1, 깊이 5
func DefaultBoostingConfig() BoostingConfig {
	return BoostingConfig{Rounds: 100, LearningRate: 0.1, MaxDepth: 5, MinLeaf: 1, Lambda: 1}
}

type treeNode struct {
	feature   int
	threshold float64
	left      int
	right     int
	leaf      bool
	value     float64
}

type regressionTree struct {
	nodes []treeNode
}

func (t *regressionTree) predict(row []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.leaf {
			return n.value
		}
		if row[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// Boosting 공학 피처 기반 회귀 트리 앙상블 (제곱 손실)
// 다단계 예측은 자기 예측값으로 lag/rolling 피처를 다시 계산
type Boosting struct {
	cfg BoostingConfig

	base    float64
	trees   []*regressionTree
	gain    []float64
	history []float64
	last    time.Time
	step    time.Duration
	fitted  bool
}

// NewBoosting 생성
func NewBoosting(cfg BoostingConfig) *Boosting {
	return &Boosting{cfg: cfg}
}

// Kind 모델 태그
func (m *Boosting) Kind() contracts.ModelKind {
	return contracts.ModelTree
}

// Fit 잔차에 대한 트리를 순차 적합
func (m *Boosting) Fit(ctx context.Context, data TrainingData) error {
	kind := m.Kind()
	if data.Len() < LagDepth+1 {
		return contracts.NewModelFitError(kind, "need at least %d observations for lag features, got %d", LagDepth+1, data.Len())
	}

	fm := data.Features
	if fm == nil || fm.Len() != data.Len()-LagDepth {
		fm = BuildFeatures(data.Times, data.Values)
	}

	n := fm.Len()
	m.base = stat.Mean(fm.Targets, nil)
	m.trees = m.trees[:0]
	m.gain = make([]float64, len(fm.Names))

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = m.base
	}
	resid := make([]float64, n)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	for round := 0; round < m.cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return &contracts.ModelFitError{Model: kind, Reason: "boosting interrupted", Err: err}
		}
		floats.SubTo(resid, fm.Targets, pred)
		tree := &regressionTree{}
		m.grow(tree, fm.Rows, resid, all, 0)
		m.trees = append(m.trees, tree)
		for i, row := range fm.Rows {
			pred[i] += m.cfg.LearningRate * tree.predict(row)
		}
	}

	m.history = append([]float64(nil), data.Values...)
	m.last = data.Last()
	m.step = data.Step
	m.fitted = true
	return nil
}

// grow 재귀적으로 노드 생성, 노드 인덱스 반환
func (m *Boosting) grow(tree *regressionTree, rows [][]float64, resid []float64, idx []int, depth int) int {
	sum := 0.0
	for _, i := range idx {
		sum += resid[i]
	}
	node := len(tree.nodes)
	tree.nodes = append(tree.nodes, treeNode{leaf: true, value: sum / (float64(len(idx)) + m.cfg.Lambda)})

	if depth >= m.cfg.MaxDepth || len(idx) < 2*m.cfg.MinLeaf {
		return node
	}

	feature, threshold, gain, ok := m.bestSplit(rows, resid, idx, sum)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	m.gain[feature] += gain

	l := m.grow(tree, rows, resid, left, depth+1)
	r := m.grow(tree, rows, resid, right, depth+1)
	tree.nodes[node] = treeNode{feature: feature, threshold: threshold, left: l, right: r}
	return node
}

// bestSplit 구조 점수 G²/(n+λ) 이득이 최대인 분할
func (m *Boosting) bestSplit(rows [][]float64, resid []float64, idx []int, total float64) (int, float64, float64, bool) {
	lambda := m.cfg.Lambda
	parent := total * total / (float64(len(idx)) + lambda)
	bestGain, bestFeature, bestThreshold := 1e-12, -1, 0.0

	sorted := make([]int, len(idx))
	for f := range rows[idx[0]] {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return rows[sorted[a]][f] < rows[sorted[b]][f] })

		leftSum := 0.0
		for k := 0; k < len(sorted)-1; k++ {
			leftSum += resid[sorted[k]]
			nl := k + 1
			nr := len(sorted) - nl
			cur, next := rows[sorted[k]][f], rows[sorted[k+1]][f]
			if cur == next || nl < m.cfg.MinLeaf || nr < m.cfg.MinLeaf {
				continue
			}
			rightSum := total - leftSum
			gain := leftSum*leftSum/(float64(nl)+lambda) + rightSum*rightSum/(float64(nr)+lambda) - parent
			if gain > bestGain {
				bestGain, bestFeature, bestThreshold = gain, f, (cur+next)/2
			}
		}
	}
	return bestFeature, bestThreshold, bestGain, bestFeature >= 0
}

func (m *Boosting) predictRow(row []float64) float64 {
	v := m.base
	for _, t := range m.trees {
		v += m.cfg.LearningRate * t.predict(row)
	}
	return v
}

// Predict 재귀 예측 (구간 없음)
func (m *Boosting) Predict(horizon int) (*contracts.ForecastResult, error) {
	if err := checkHorizon(m.Kind(), m.fitted, horizon); err != nil {
		return nil, err
	}
	times := futureTimes(m.last, m.step, horizon)
	history := append([]float64(nil), m.history...)

	result := &contracts.ForecastResult{
		Model:  m.Kind(),
		Points: make([]contracts.ForecastPoint, horizon),
		Params: map[string]any{
			"rounds":        m.cfg.Rounds,
			"learning_rate": m.cfg.LearningRate,
			"max_depth":     m.cfg.MaxDepth,
		},
		Notes: []string{"multi-step forecast recomputes lag features from its own predictions"},
	}
	for h, ts := range times {
		v := m.predictRow(featureRow(history, ts))
		history = append(history, v)
		result.Points[h] = contracts.ForecastPoint{Time: ts, Value: v}
	}
	return result, nil
}

// FeatureImportance 분할 이득 합계, 전체 합 1 로 정규화 후 내림차순
func (m *Boosting) FeatureImportance() []contracts.FeatureScore {
	if !m.fitted {
		return nil
	}
	total := floats.Sum(m.gain)
	out := make([]contracts.FeatureScore, len(FeatureNames))
	for i, name := range FeatureNames {
		score := 0.0
		if total > 0 {
			score = m.gain[i] / total
		}
		out[i] = contracts.FeatureScore{Feature: name, Score: score}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Feature < out[j].Feature
	})
	return out
}
