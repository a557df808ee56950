// hourly_test.go
package processor

import (
	"math"
	"testing"

	"OddEvenImpact/src/datasource/station"
)

func mkLabeled(t *testing.T, p Period, ts string, pm float64) Labeled {
	t.Helper()
	return Labeled{
		Reading: station.Reading{Station: "DL013", Time: mustTime(t, ts), PM25: pm, NO2: math.NaN()},
		Period:  p,
	}
}

func TestHourlyMeansHandChecked(t *testing.T) {
	// 8 点 Before 两条观测 120 和 140, 均值应当恰为 130
	labeled := []Labeled{
		mkLabeled(t, PeriodBefore, "2015-12-20 08:00:00", 120),
		mkLabeled(t, PeriodBefore, "2015-12-21 08:00:00", 140),
		mkLabeled(t, PeriodDuring, "2016-01-05 08:00:00", 90),
	}

	table := HourlyMeans(labeled, PeriodBefore, PeriodDuring)

	cell, ok := table.Cell(8, PeriodBefore)
	if !ok {
		t.Fatal("8 点 Before 单元格缺失")
	}
	if cell.Mean != 130 {
		t.Errorf("均值 = %v, 期望 130", cell.Mean)
	}
	if cell.Count != 2 {
		t.Errorf("样本量 = %d, 期望 2", cell.Count)
	}
}

func TestHourlyMeansAbsentBucket(t *testing.T) {
	labeled := []Labeled{
		mkLabeled(t, PeriodBefore, "2015-12-20 08:00:00", 120),
	}
	table := HourlyMeans(labeled, PeriodBefore, PeriodDuring)

	// 没有观测的组合不存在单元格, 读取得到 NaN, 而不是 0
	if _, ok := table.Cell(3, PeriodBefore); ok {
		t.Error("3 点 Before 不应有单元格")
	}
	if _, ok := table.Cell(8, PeriodDuring); ok {
		t.Error("8 点 During 不应有单元格")
	}
	if !math.IsNaN(table.Mean(3, PeriodBefore)) {
		t.Errorf("缺失单元格均值 = %v, 期望 NaN", table.Mean(3, PeriodBefore))
	}
}

func TestHourlyMeansSkipsNaN(t *testing.T) {
	labeled := []Labeled{
		mkLabeled(t, PeriodBefore, "2015-12-20 08:00:00", 120),
		mkLabeled(t, PeriodBefore, "2015-12-21 08:00:00", math.NaN()),
	}
	table := HourlyMeans(labeled, PeriodBefore)

	cell, ok := table.Cell(8, PeriodBefore)
	if !ok || cell.Count != 1 || cell.Mean != 120 {
		t.Errorf("缺测不应计入: %+v, ok=%v", cell, ok)
	}
}

func TestHourlyMeansOrderIndependent(t *testing.T) {
	a := []Labeled{
		mkLabeled(t, PeriodBefore, "2015-12-20 08:00:00", 120),
		mkLabeled(t, PeriodBefore, "2015-12-21 08:00:00", 140),
		mkLabeled(t, PeriodDuring, "2016-01-05 09:00:00", 90),
		mkLabeled(t, PeriodDuring, "2016-01-06 09:00:00", 96),
	}
	b := []Labeled{a[3], a[1], a[2], a[0]}

	ta := HourlyMeans(a, PeriodBefore, PeriodDuring)
	tb := HourlyMeans(b, PeriodBefore, PeriodDuring)

	for h := 0; h < 24; h++ {
		for _, p := range ta.Periods {
			ca, oka := ta.Cell(h, p)
			cb, okb := tb.Cell(h, p)
			if oka != okb || ca != cb {
				t.Errorf("(%d, %s): %+v != %+v", h, p, ca, cb)
			}
		}
	}
}

func TestDailyMeans(t *testing.T) {
	labeled := []Labeled{
		mkLabeled(t, PeriodDuring, "2016-01-05 08:00:00", 80),
		mkLabeled(t, PeriodDuring, "2016-01-05 09:00:00", 100),
		mkLabeled(t, PeriodBefore, "2015-12-20 08:00:00", 120),
		mkLabeled(t, PeriodDuring, "2016-01-05 10:00:00", math.NaN()),
	}

	stats := DailyMeans(labeled)
	if len(stats) != 2 {
		t.Fatalf("天数 = %d, 期望 2", len(stats))
	}
	// 按日期升序
	if !stats[0].Date.Before(stats[1].Date) {
		t.Error("日均值未按日期排序")
	}
	if stats[0].Mean != 120 || stats[0].Period != PeriodBefore {
		t.Errorf("第一天 = %+v", stats[0])
	}
	if stats[1].Mean != 90 || stats[1].Count != 2 {
		t.Errorf("第二天 = %+v, 期望均值 90 样本 2", stats[1])
	}
}

func TestBuildDayHourGrid(t *testing.T) {
	labeled := []Labeled{
		mkLabeled(t, PeriodBefore, "2015-12-20 08:00:00", 120),
		mkLabeled(t, PeriodDuring, "2016-01-05 09:00:00", 90),
		// Control 不属于连续研究窗口, 不应进入热力图
		mkLabeled(t, PeriodControl, "2015-01-05 09:00:00", 150),
	}

	grid := BuildDayHourGrid(labeled)
	c, r := grid.Dims()
	if c != 2 || r != 24 {
		t.Fatalf("Dims = (%d, %d), 期望 (2, 24)", c, r)
	}
	if grid.Z(0, 8) != 120 {
		t.Errorf("Z(0,8) = %v, 期望 120", grid.Z(0, 8))
	}
	if grid.Z(1, 9) != 90 {
		t.Errorf("Z(1,9) = %v, 期望 90", grid.Z(1, 9))
	}
	// 缺测小时是 NaN 空洞
	if !math.IsNaN(grid.Z(0, 12)) {
		t.Errorf("Z(0,12) = %v, 期望 NaN", grid.Z(0, 12))
	}
	if grid.X(1) != 1 || grid.Y(23) != 23 {
		t.Error("网格坐标应当是序号")
	}
}

func TestPeriodValues(t *testing.T) {
	labeled := []Labeled{
		mkLabeled(t, PeriodBefore, "2015-12-20 08:00:00", 120),
		mkLabeled(t, PeriodBefore, "2015-12-20 09:00:00", 130),
		mkLabeled(t, PeriodBefore, "2015-12-20 14:00:00", 70),
		mkLabeled(t, PeriodDuring, "2016-01-05 08:00:00", 90),
	}

	all := PeriodValues(labeled, PeriodBefore)
	if len(all) != 3 {
		t.Errorf("全天取值数 = %d, 期望 3", len(all))
	}

	rush := PeriodValues(labeled, PeriodBefore, 8, 9, 10)
	if len(rush) != 2 {
		t.Errorf("高峰取值数 = %d, 期望 2", len(rush))
	}
	for _, v := range rush {
		if v != 120 && v != 130 {
			t.Errorf("高峰取值 %v 不在期望集合中", v)
		}
	}
}

func TestPercentChange(t *testing.T) {
	if got := PercentChange(100, 80); got != -20 {
		t.Errorf("PercentChange(100, 80) = %v, 期望 -20", got)
	}
	if got := PercentChange(80, 100); got != 25 {
		t.Errorf("PercentChange(80, 100) = %v, 期望 25", got)
	}
	if !math.IsNaN(PercentChange(0, 50)) {
		t.Error("基准为零应当返回 NaN")
	}
	if !math.IsNaN(PercentChange(math.NaN(), 50)) {
		t.Error("基准缺测应当返回 NaN")
	}
}

func TestCompareRushHours(t *testing.T) {
	labeled := []Labeled{
		mkLabeled(t, PeriodBefore, "2015-12-20 08:00:00", 100),
		mkLabeled(t, PeriodBefore, "2015-12-21 08:00:00", 120),
		mkLabeled(t, PeriodDuring, "2016-01-05 08:00:00", 88),
		mkLabeled(t, PeriodBefore, "2015-12-20 18:00:00", 200),
		mkLabeled(t, PeriodDuring, "2016-01-05 18:00:00", 150),
	}

	rc := CompareRushHours(labeled, []int{8, 9, 10}, []int{17, 18, 19})
	if rc.MorningBefore != 110 {
		t.Errorf("早高峰限行前均值 = %v, 期望 110", rc.MorningBefore)
	}
	if rc.MorningDuring != 88 {
		t.Errorf("早高峰限行中均值 = %v, 期望 88", rc.MorningDuring)
	}
	if math.Abs(rc.MorningChange-(-20)) > 1e-9 {
		t.Errorf("早高峰变化率 = %v, 期望 -20", rc.MorningChange)
	}
	if math.Abs(rc.EveningChange-(-25)) > 1e-9 {
		t.Errorf("晚高峰变化率 = %v, 期望 -25", rc.EveningChange)
	}
}

func TestHourlyTableTimeIndependence(t *testing.T) {
	// 相同输入重复聚合, 结果必须完全一致
	labeled := []Labeled{
		mkLabeled(t, PeriodBefore, "2015-12-20 08:00:00", 120),
		mkLabeled(t, PeriodDuring, "2016-01-05 08:00:00", 90),
	}
	t1 := HourlyMeans(labeled, ComparePeriods...)
	t2 := HourlyMeans(labeled, ComparePeriods...)
	for h := 0; h < 24; h++ {
		for _, p := range ComparePeriods {
			a, oka := t1.Cell(h, p)
			b, okb := t2.Cell(h, p)
			if oka != okb || a != b {
				t.Fatalf("重复聚合结果不一致于 (%d, %s)", h, p)
			}
		}
	}
}
