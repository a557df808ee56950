// data.go
package processor

import (
	"math"

	"OddEvenImpact/src/datasource/station"

	"gonum.org/v1/gonum/stat"
)

// Labeled 带时段标签的观测
type Labeled struct {
	station.Reading
	Period Period
}

// AnalysisResult 一次完整分析的产出
type AnalysisResult struct {
	Summary      string
	Dataset      *station.Dataset
	Phase        Phase
	Hourly       HourlyTable
	Daily        []DailyStat
	Rush         RushComparison
	AllHours     *TTestResult
	RushHours    *TTestResult
	DuringVsCtrl *UTestResult
	ImagePaths   []string
	ExcelPath    string
	WarningNotes []string
}

// Tag 给观测集合打时段标签, 同样的输入永远得到同样的标签序列
func Tag(ds *station.Dataset, ph Phase) []Labeled {
	labeled := make([]Labeled, 0, len(ds.Readings))
	for _, r := range ds.Readings {
		labeled = append(labeled, Labeled{Reading: r, Period: Classify(r.Time, ph)})
	}
	return labeled
}

// CountByPeriod 各时段的观测行数
func CountByPeriod(labeled []Labeled) map[Period]int {
	counts := make(map[Period]int)
	for _, l := range labeled {
		counts[l.Period]++
	}
	return counts
}

// PeriodSummary 单个时段 PM2.5 的均值、标准差和样本量, 缺测不计入
func PeriodSummary(labeled []Labeled, p Period) (mean, sd float64, n int) {
	values := PeriodValues(labeled, p)
	if len(values) == 0 {
		return math.NaN(), math.NaN(), 0
	}
	if len(values) == 1 {
		return values[0], math.NaN(), 1
	}
	mean, variance := stat.MeanVariance(values, nil)
	return mean, math.Sqrt(variance), len(values)
}
