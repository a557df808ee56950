// mannwhitney.go
package processor

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// UTestResult Mann-Whitney U 检验结果
type UTestResult struct {
	U           float64
	P           float64
	NA          int
	NB          int
	Alt         Alternative
	Alpha       float64
	Significant bool
}

// MannWhitneyU 两样本秩和检验, 正态近似并做并列与连续性修正
// U 为第一组的统计量; alt=Less 检验第一组随机地小于第二组
func MannWhitneyU(a, b []float64, alt Alternative, alpha float64) (*UTestResult, error) {
	if len(a) < 2 || len(b) < 2 {
		return nil, fmt.Errorf("样本量不足以做检验: %d 与 %d, 至少各需 2", len(a), len(b))
	}
	if hasNaN(a) || hasNaN(b) {
		return nil, fmt.Errorf("样本中包含 NaN, 调用前应先清洗")
	}
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}

	n1, n2 := float64(len(a)), float64(len(b))
	r1, tieSum := rankSum(a, b)

	u1 := r1 - n1*(n1+1)/2
	mu := n1 * n2 / 2

	res := &UTestResult{
		U: u1, NA: len(a), NB: len(b),
		Alt: alt, Alpha: alpha,
	}

	// 并列修正后的标准差
	n := n1 + n2
	sigma2 := n1 * n2 / 12 * ((n + 1) - tieSum/(n*(n-1)))
	if sigma2 <= 0 {
		// 所有取值完全相同, 没有任何可区分的信息
		res.P = 1
		res.Significant = false
		return res, nil
	}
	sigma := math.Sqrt(sigma2)

	// 连续性修正
	switch alt {
	case Less:
		res.P = distuv.UnitNormal.CDF((u1 - mu + 0.5) / sigma)
	case Greater:
		res.P = distuv.UnitNormal.Survival((u1 - mu - 0.5) / sigma)
	default:
		z := (math.Abs(u1-mu) - 0.5) / sigma
		if z < 0 {
			z = 0
		}
		p := 2 * distuv.UnitNormal.Survival(z)
		if p > 1 {
			p = 1
		}
		res.P = p
	}

	res.Significant = res.P < alpha
	return res, nil
}

// rankSum 合并两组取平均秩, 返回第一组的秩和与并列修正项 Σ(t³-t)
func rankSum(a, b []float64) (r1, tieSum float64) {
	type item struct {
		v     float64
		first bool
	}
	all := make([]item, 0, len(a)+len(b))
	for _, v := range a {
		all = append(all, item{v: v, first: true})
	}
	for _, v := range b {
		all = append(all, item{v: v})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].v < all[j].v })

	i := 0
	for i < len(all) {
		j := i
		for j < len(all) && all[j].v == all[i].v {
			j++
		}
		// 位置 i..j-1 的平均秩 (1 起)
		avg := float64(i+j+1) / 2
		if t := float64(j - i); t > 1 {
			tieSum += t*t*t - t
		}
		for k := i; k < j; k++ {
			if all[k].first {
				r1 += avg
			}
		}
		i = j
	}
	return r1, tieSum
}
