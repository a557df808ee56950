// charts.go
package render

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"OddEvenImpact/src/processor"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// 图表文件名固定, 重跑覆盖同名文件
const (
	HeatmapFile = "heatmap.png"
	ProfileFile = "hourly_profile.png"
	RushFile    = "rush_hour_comparison.png"
	DistFile    = "distribution.png"
)

// 热力图依赖 DayHourGrid 满足网格接口
var _ plotter.GridXYZ = (*processor.DayHourGrid)(nil)

// periodColors 各时段在所有图表中的固定配色
var periodColors = map[processor.Period]color.Color{
	processor.PeriodBefore:  color.RGBA{R: 102, G: 179, B: 255, A: 255},
	processor.PeriodDuring:  color.RGBA{R: 255, G: 153, B: 153, A: 255},
	processor.PeriodAfter:   color.RGBA{R: 153, G: 204, B: 153, A: 255},
	processor.PeriodControl: color.RGBA{R: 170, G: 170, B: 170, A: 255},
}

func colorFor(p processor.Period) color.Color {
	if c, ok := periodColors[p]; ok {
		return c
	}
	return color.RGBA{A: 255}
}

// All 渲染全部四张图到 outDir, 返回生成的文件路径
func All(labeled []processor.Labeled, table processor.HourlyTable, grid *processor.DayHourGrid, rc processor.RushComparison, outDir string) ([]string, error) {
	// 1. 日×小时热力图
	heat := filepath.Join(outDir, HeatmapFile)
	if err := Heatmap(grid, heat); err != nil {
		return nil, err
	}

	// 2. 24小时均值曲线
	profile := filepath.Join(outDir, ProfileFile)
	if err := HourlyProfile(table, profile); err != nil {
		return nil, err
	}

	// 3. 高峰时段对比柱状图
	rush := filepath.Join(outDir, RushFile)
	if err := RushBars(rc, rush); err != nil {
		return nil, err
	}

	// 4. 时段分布箱线图
	dist := filepath.Join(outDir, DistFile)
	if err := DistributionBoxes(labeled, dist); err != nil {
		return nil, err
	}

	return []string{heat, profile, rush, dist}, nil
}

// Heatmap 绘制日×小时的 PM2.5 热力图, 缺测单元格留白不着色
func Heatmap(grid *processor.DayHourGrid, path string) error {
	cols, _ := grid.Dims()
	if cols == 0 {
		return fmt.Errorf("热力图没有可绘制的数据")
	}

	p := plot.New()
	p.Title.Text = "PM2.5 by Day and Hour"
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Hour of day"

	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	p.Add(hm)

	p.X.Tick.Marker = plot.ConstantTicks(dayTicks(grid.Days))
	p.Y.Tick.Marker = plot.ConstantTicks(hourTicks(4))

	return save(p, 12*vg.Inch, 5*vg.Inch, path)
}

// HourlyProfile 各时段 24 小时 PM2.5 均值曲线
// 缺测小时断线, 绝不画成零
func HourlyProfile(table processor.HourlyTable, path string) error {
	p := plot.New()
	p.Title.Text = "Average PM2.5 by Hour of Day"
	p.X.Label.Text = "Hour of day"
	p.Y.Label.Text = "PM2.5 (µg/m³)"

	drawn := 0
	for _, period := range table.Periods {
		segments := hourSegments(table, period)
		if len(segments) == 0 {
			continue
		}
		for i, seg := range segments {
			line, points, err := plotter.NewLinePoints(seg)
			if err != nil {
				return fmt.Errorf("构造 %s 曲线失败: %w", period, err)
			}
			line.Color = colorFor(period)
			line.Width = vg.Points(2)
			points.GlyphStyle.Color = colorFor(period)
			points.GlyphStyle.Radius = vg.Points(2)
			p.Add(line, points)
			if i == 0 {
				p.Legend.Add(string(period), line, points)
			}
		}
		drawn++
	}
	if drawn == 0 {
		return fmt.Errorf("24小时曲线没有可绘制的数据")
	}

	p.Legend.Top = true
	p.X.Tick.Marker = plot.ConstantTicks(hourTicks(2))
	return save(p, 10*vg.Inch, 5*vg.Inch, path)
}

// hourSegments 把某时段的 24 小时均值切成连续的非缺测片段
func hourSegments(table processor.HourlyTable, period processor.Period) []plotter.XYs {
	var segments []plotter.XYs
	var cur plotter.XYs
	for h := 0; h < 24; h++ {
		m := table.Mean(h, period)
		if math.IsNaN(m) {
			if len(cur) > 0 {
				segments = append(segments, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(h), Y: m})
	}
	if len(cur) > 0 {
		segments = append(segments, cur)
	}
	return segments
}

// RushBars 早晚高峰 Before/During 均值对比柱状图, 组顶标注变化率
func RushBars(rc processor.RushComparison, path string) error {
	for _, v := range []float64{rc.MorningBefore, rc.MorningDuring, rc.EveningBefore, rc.EveningDuring} {
		if math.IsNaN(v) {
			return fmt.Errorf("高峰对比缺少数据, 无法绘制")
		}
	}

	p := plot.New()
	p.Title.Text = "Rush Hour PM2.5: Before vs During"
	p.Y.Label.Text = "PM2.5 (µg/m³)"

	w := vg.Points(30)

	before, err := plotter.NewBarChart(plotter.Values{rc.MorningBefore, rc.EveningBefore}, w)
	if err != nil {
		return fmt.Errorf("构造柱状图失败: %w", err)
	}
	before.Color = colorFor(processor.PeriodBefore)
	before.Offset = -w / 2

	during, err := plotter.NewBarChart(plotter.Values{rc.MorningDuring, rc.EveningDuring}, w)
	if err != nil {
		return fmt.Errorf("构造柱状图失败: %w", err)
	}
	during.Color = colorFor(processor.PeriodDuring)
	during.Offset = w / 2

	p.Add(before, during)
	p.Legend.Add(string(processor.PeriodBefore), before)
	p.Legend.Add(string(processor.PeriodDuring), during)
	p.Legend.Top = true
	p.NominalX("Morning rush", "Evening rush")

	labels, err := changeLabels(rc)
	if err != nil {
		return err
	}
	p.Add(labels)

	return save(p, 8*vg.Inch, 5*vg.Inch, path)
}

// changeLabels 每组柱顶的变化率标注, 如 -23.5%
func changeLabels(rc processor.RushComparison) (*plotter.Labels, error) {
	text := func(change float64) string {
		if math.IsNaN(change) {
			return ""
		}
		return fmt.Sprintf("%+.1f%%", change)
	}
	top := func(a, b float64) float64 { return math.Max(a, b) * 1.04 }

	labels, err := plotter.NewLabels(plotter.XYLabels{
		XYs: plotter.XYs{
			{X: 0, Y: top(rc.MorningBefore, rc.MorningDuring)},
			{X: 1, Y: top(rc.EveningBefore, rc.EveningDuring)},
		},
		Labels: []string{text(rc.MorningChange), text(rc.EveningChange)},
	})
	if err != nil {
		return nil, fmt.Errorf("构造变化率标注失败: %w", err)
	}
	return labels, nil
}

// DistributionBoxes 各时段 PM2.5 分布箱线图, 时段固定按对比顺序排列
func DistributionBoxes(labeled []processor.Labeled, path string) error {
	p := plot.New()
	p.Title.Text = "PM2.5 Distribution by Period"
	p.Y.Label.Text = "PM2.5 (µg/m³)"

	var names []string
	pos := 0.0
	for _, period := range processor.ComparePeriods {
		values := processor.PeriodValues(labeled, period)
		if len(values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(40), pos, plotter.Values(values))
		if err != nil {
			return fmt.Errorf("构造 %s 箱线图失败: %w", period, err)
		}
		box.FillColor = colorFor(period)
		p.Add(box)
		names = append(names, string(period))
		pos++
	}
	if len(names) == 0 {
		return fmt.Errorf("箱线图没有可绘制的数据")
	}

	p.NominalX(names...)
	return save(p, 8*vg.Inch, 5*vg.Inch, path)
}

func dayTicks(days []time.Time) []plot.Tick {
	step := len(days)/8 + 1
	ticks := make([]plot.Tick, 0, len(days))
	for i, d := range days {
		t := plot.Tick{Value: float64(i)}
		if i%step == 0 {
			t.Label = d.Format("01-02")
		}
		ticks = append(ticks, t)
	}
	return ticks
}

func hourTicks(step int) []plot.Tick {
	var ticks []plot.Tick
	for h := 0; h < 24; h++ {
		t := plot.Tick{Value: float64(h)}
		if h%step == 0 {
			t.Label = fmt.Sprintf("%02d:00", h)
		}
		ticks = append(ticks, t)
	}
	return ticks
}

// save 确保输出目录存在后落盘
func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("保存图表 %s 失败: %w", path, err)
	}
	return nil
}
