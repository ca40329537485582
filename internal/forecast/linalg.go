package forecast

import (
	"errors"
	"fmt"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// maxCondition 최소제곱 해를 받아들일 최대 조건수
const maxCondition = 1e12

// leastSquares X·β ≈ y 의 최소제곱 해 (QR)
func leastSquares(x *mat.Dense, y *mat.VecDense) ([]float64, error) {
	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || float64(cond) > maxCondition {
			return nil, fmt.Errorf("least squares: %w", err)
		}
	}
	out := make([]float64, beta.Len())
	for i := range out {
		out[i] = beta.AtVec(i)
		if !finite(out[i]) {
			return nil, fmt.Errorf("least squares: non-finite coefficient %d", i)
		}
	}
	return out, nil
}

// ridgeSolve (XᵀX + diag(penalty))·β = Xᵀy 를 Cholesky 로 풀이
func ridgeSolve(x *mat.Dense, y *mat.VecDense, penalty []float64) ([]float64, error) {
	_, cols := x.Dims()
	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	sym := mat.NewSymDense(cols, nil)
	for i := 0; i < cols; i++ {
		for j := i; j < cols; j++ {
			v := xtx.At(i, j)
			if i == j {
				v += penalty[i]
			}
			sym.SetSym(i, j, v)
		}
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, errors.New("ridge: normal matrix not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, fmt.Errorf("ridge: %w", err)
	}
	out := make([]float64, cols)
	for i := range out {
		out[i] = beta.AtVec(i)
	}
	return out, nil
}

// rootsInsideUnitCircle 동반행렬 고유값이 모두 단위원 내부인지
// AR 계수면 정상성, 부호 반전한 MA 계수면 가역성 판정
func rootsInsideUnitCircle(coefs []float64) bool {
	k := len(coefs)
	if k == 0 {
		return true
	}
	companion := mat.NewDense(k, k, nil)
	for j, c := range coefs {
		companion.Set(0, j, c)
	}
	for i := 1; i < k; i++ {
		companion.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(companion, mat.EigenNone); !ok {
		return false
	}
	for _, v := range eig.Values(nil) {
		if cmplx.Abs(v) >= 0.999 {
			return false
		}
	}
	return true
}

// difference d 차 차분
func difference(values []float64, d int) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	for k := 0; k < d; k++ {
		if len(out) < 2 {
			return nil
		}
		next := make([]float64, len(out)-1)
		for i := 1; i < len(out); i++ {
			next[i-1] = out[i] - out[i-1]
		}
		out = next
	}
	return out
}

// integrate 차분 공간 예측을 원래 수준으로 복원
func integrate(history []float64, d int, forecast []float64) []float64 {
	out := make([]float64, len(forecast))
	copy(out, forecast)
	for level := d - 1; level >= 0; level-- {
		base := difference(history, level)
		acc := base[len(base)-1]
		for i := range out {
			acc += out[i]
			out[i] = acc
		}
	}
	return out
}

func normalQuantile(p float64) float64 {
	return distuv.UnitNormal.Quantile(p)
}

func sortFloats(v []float64) {
	sort.Float64s(v)
}
