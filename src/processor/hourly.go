// hourly.go
package processor

import (
	"math"
	"sort"
	"time"

	"OddEvenImpact/src/utils"

	"gonum.org/v1/gonum/stat"
)

// HourlyStat 某时段在某个小时上的 PM2.5 均值
type HourlyStat struct {
	Hour   int
	Period Period
	Mean   float64
	Count  int
}

// HourlyTable 24小时 × 时段的均值表
// 没有任何观测的 (小时, 时段) 组合不产生单元格, 读取时得到 NaN, 绝不补零
type HourlyTable struct {
	Periods []Period
	cells   map[int]map[Period]HourlyStat
}

// Cell 读取单元格, 第二个返回值表示该组合是否有观测
func (t HourlyTable) Cell(hour int, p Period) (HourlyStat, bool) {
	row, ok := t.cells[hour]
	if !ok {
		return HourlyStat{}, false
	}
	s, ok := row[p]
	return s, ok
}

// Mean 单元格均值, 组合无观测时返回 NaN
func (t HourlyTable) Mean(hour int, p Period) float64 {
	if s, ok := t.Cell(hour, p); ok {
		return s.Mean
	}
	return math.NaN()
}

// HourlyMeans 按 (小时, 时段) 聚合 PM2.5 均值, 缺测值不计入
// 小时固定按 0..23, 时段按传入顺序, 结果与输入顺序无关
func HourlyMeans(labeled []Labeled, periods ...Period) HourlyTable {
	type acc struct {
		sum   float64
		count int
	}
	raw := make(map[int]map[Period]*acc)

	for _, l := range labeled {
		if !utils.Contains(periods, l.Period) {
			continue
		}
		if math.IsNaN(l.PM25) {
			continue
		}
		h := l.Time.Hour()
		if raw[h] == nil {
			raw[h] = make(map[Period]*acc)
		}
		if raw[h][l.Period] == nil {
			raw[h][l.Period] = &acc{}
		}
		raw[h][l.Period].sum += l.PM25
		raw[h][l.Period].count++
	}

	cells := make(map[int]map[Period]HourlyStat)
	for h := 0; h < 24; h++ {
		row := raw[h]
		if row == nil {
			continue
		}
		for _, p := range periods {
			a := row[p]
			if a == nil {
				continue
			}
			if cells[h] == nil {
				cells[h] = make(map[Period]HourlyStat)
			}
			cells[h][p] = HourlyStat{
				Hour:   h,
				Period: p,
				Mean:   a.sum / float64(a.count),
				Count:  a.count,
			}
		}
	}

	return HourlyTable{Periods: append([]Period(nil), periods...), cells: cells}
}

// DailyStat 某一天的 PM2.5 均值
type DailyStat struct {
	Date   time.Time
	Period Period
	Mean   float64
	Count  int
}

// DailyMeans 按日聚合 PM2.5 均值, 按日期升序
func DailyMeans(labeled []Labeled) []DailyStat {
	type acc struct {
		period Period
		sum    float64
		count  int
	}
	raw := make(map[time.Time]*acc)

	for _, l := range labeled {
		if math.IsNaN(l.PM25) {
			continue
		}
		day := l.Time.Truncate(24 * time.Hour)
		if raw[day] == nil {
			raw[day] = &acc{period: l.Period}
		}
		raw[day].sum += l.PM25
		raw[day].count++
	}

	stats := make([]DailyStat, 0, len(raw))
	for day, a := range raw {
		stats = append(stats, DailyStat{
			Date:   day,
			Period: a.period,
			Mean:   a.sum / float64(a.count),
			Count:  a.count,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Date.Before(stats[j].Date) })
	return stats
}

// DayHourGrid 日 × 小时的 PM2.5 矩阵, 供热力图使用
// 缺测单元格为 NaN
type DayHourGrid struct {
	Days  []time.Time
	cells [][24]float64
}

// BuildDayHourGrid 构造连续研究窗口(Before/During/After)的日×小时矩阵
// 同一 (日, 小时) 上多条观测取均值
func BuildDayHourGrid(labeled []Labeled) *DayHourGrid {
	type acc struct {
		sum   float64
		count int
	}
	raw := make(map[time.Time]*[24]acc)

	for _, l := range labeled {
		switch l.Period {
		case PeriodBefore, PeriodDuring, PeriodAfter:
		default:
			continue
		}
		if math.IsNaN(l.PM25) {
			continue
		}
		day := l.Time.Truncate(24 * time.Hour)
		if raw[day] == nil {
			raw[day] = &[24]acc{}
		}
		raw[day][l.Time.Hour()].sum += l.PM25
		raw[day][l.Time.Hour()].count++
	}

	days := make([]time.Time, 0, len(raw))
	for day := range raw {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	cells := make([][24]float64, len(days))
	for i, day := range days {
		for h := 0; h < 24; h++ {
			a := raw[day][h]
			if a.count == 0 {
				cells[i][h] = math.NaN()
				continue
			}
			cells[i][h] = a.sum / float64(a.count)
		}
	}

	return &DayHourGrid{Days: days, cells: cells}
}

// Dims 实现热力图的网格接口, 列为日, 行为小时
func (g *DayHourGrid) Dims() (c, r int) { return len(g.Days), 24 }

// Z 第 c 天第 r 小时的均值, 缺测为 NaN
func (g *DayHourGrid) Z(c, r int) float64 { return g.cells[c][r] }

func (g *DayHourGrid) X(c int) float64 { return float64(c) }

func (g *DayHourGrid) Y(r int) float64 { return float64(r) }

// PeriodValues 某时段的全部 PM2.5 值, hours 非空时只保留这些小时
func PeriodValues(labeled []Labeled, p Period, hours ...int) []float64 {
	var values []float64
	for _, l := range labeled {
		if l.Period != p {
			continue
		}
		if math.IsNaN(l.PM25) {
			continue
		}
		if len(hours) > 0 && !utils.Contains(hours, l.Time.Hour()) {
			continue
		}
		values = append(values, l.PM25)
	}
	return values
}

// PercentChange 相对变化百分比, 基准为零或缺测时返回 NaN
func PercentChange(before, during float64) float64 {
	if before == 0 || math.IsNaN(before) || math.IsNaN(during) {
		return math.NaN()
	}
	return (during - before) / before * 100
}

// RushComparison 早晚高峰限行前后的均值对比
type RushComparison struct {
	MorningHours  []int
	EveningHours  []int
	MorningBefore float64
	MorningDuring float64
	EveningBefore float64
	EveningDuring float64
	MorningChange float64 // 百分比
	EveningChange float64 // 百分比
}

// CompareRushHours 计算早晚高峰 Before/During 的均值与变化率
func CompareRushHours(labeled []Labeled, morning, evening []int) RushComparison {
	meanOf := func(p Period, hours []int) float64 {
		values := PeriodValues(labeled, p, hours...)
		if len(values) == 0 {
			return math.NaN()
		}
		return stat.Mean(values, nil)
	}

	rc := RushComparison{
		MorningHours:  append([]int(nil), morning...),
		EveningHours:  append([]int(nil), evening...),
		MorningBefore: meanOf(PeriodBefore, morning),
		MorningDuring: meanOf(PeriodDuring, morning),
		EveningBefore: meanOf(PeriodBefore, evening),
		EveningDuring: meanOf(PeriodDuring, evening),
	}
	rc.MorningChange = PercentChange(rc.MorningBefore, rc.MorningDuring)
	rc.EveningChange = PercentChange(rc.EveningBefore, rc.EveningDuring)
	return rc
}
