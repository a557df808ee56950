// ttest.go
package processor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Alternative 备择假设方向
type Alternative int

const (
	TwoSided Alternative = iota // 双侧
	Less                        // 第一组小于第二组
	Greater                     // 第一组大于第二组
)

func (a Alternative) String() string {
	switch a {
	case Less:
		return "less"
	case Greater:
		return "greater"
	default:
		return "two-sided"
	}
}

// DefaultAlpha 默认显著性水平
const DefaultAlpha = 0.05

// TTestResult Welch t 检验结果
type TTestResult struct {
	T           float64
	DF          float64
	P           float64
	MeanA       float64
	MeanB       float64
	VarA        float64
	VarB        float64
	NA          int
	NB          int
	Alt         Alternative
	Alpha       float64
	Significant bool
}

// WelchTTest 两样本不等方差 t 检验
//
//	t  = (ma - mb) / sqrt(va/na + vb/nb)
//	df 按 Welch–Satterthwaite 近似
//
// 不做多重比较校正; alpha <= 0 时使用 DefaultAlpha
func WelchTTest(a, b []float64, alt Alternative, alpha float64) (*TTestResult, error) {
	if len(a) < 2 || len(b) < 2 {
		return nil, fmt.Errorf("样本量不足以做检验: %d 与 %d, 至少各需 2", len(a), len(b))
	}
	if hasNaN(a) || hasNaN(b) {
		return nil, fmt.Errorf("样本中包含 NaN, 调用前应先清洗")
	}
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}

	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	na, nb := float64(len(a)), float64(len(b))

	res := &TTestResult{
		MeanA: ma, MeanB: mb,
		VarA: va, VarB: vb,
		NA: len(a), NB: len(b),
		Alt: alt, Alpha: alpha,
	}

	se2 := va/na + vb/nb
	if se2 == 0 {
		// 两组方差都为零: 均值相同则毫无差异, 不同则完全分离
		res.DF = na + nb - 2
		if ma == mb {
			res.T = 0
			res.P = 1
		} else {
			res.T = math.Inf(1)
			if ma < mb {
				res.T = math.Inf(-1)
			}
			res.P = 0
		}
		res.Significant = res.P < alpha
		return res, nil
	}

	res.T = (ma - mb) / math.Sqrt(se2)
	res.DF = se2 * se2 / ((va/na)*(va/na)/(na-1) + (vb/nb)*(vb/nb)/(nb-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: res.DF}
	switch alt {
	case Less:
		res.P = dist.CDF(res.T)
	case Greater:
		res.P = dist.Survival(res.T)
	default:
		res.P = 2 * dist.CDF(-math.Abs(res.T))
	}

	res.Significant = res.P < alpha
	return res, nil
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
