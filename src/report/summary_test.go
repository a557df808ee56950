// summary_test.go
package report

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"OddEvenImpact/src/datasource/station"
	"OddEvenImpact/src/processor"
)

func sampleResult(t *testing.T) (*processor.AnalysisResult, []processor.Labeled) {
	t.Helper()

	phase, err := processor.NewPhase("Phase 1", "2016-01-01", "2016-01-15")
	if err != nil {
		t.Fatalf("构造阶段失败: %v", err)
	}

	var labeled []processor.Labeled
	add := func(p processor.Period, base float64, n int) {
		for i := 0; i < n; i++ {
			labeled = append(labeled, processor.Labeled{
				Reading: station.Reading{
					Station: "DL013",
					Time:    time.Date(2016, 1, 1+i%14, i%24, 0, 0, 0, time.UTC),
					PM25:    base + float64(i%7),
					NO2:     math.NaN(),
				},
				Period: p,
			})
		}
	}
	add(processor.PeriodBefore, 250, 40)
	add(processor.PeriodDuring, 180, 40)
	add(processor.PeriodControl, 260, 40)

	all, err := processor.WelchTTest(
		processor.PeriodValues(labeled, processor.PeriodBefore),
		processor.PeriodValues(labeled, processor.PeriodDuring),
		processor.TwoSided, 0.05,
	)
	if err != nil {
		t.Fatalf("t 检验失败: %v", err)
	}
	u, err := processor.MannWhitneyU(
		processor.PeriodValues(labeled, processor.PeriodDuring),
		processor.PeriodValues(labeled, processor.PeriodControl),
		processor.Less, 0.05,
	)
	if err != nil {
		t.Fatalf("U 检验失败: %v", err)
	}

	res := &processor.AnalysisResult{
		Dataset: &station.Dataset{
			Station:  "DL013",
			Readings: make([]station.Reading, 1200),
			Skipped:  3,
			Filled:   2,
		},
		Phase:        phase,
		Rush:         processor.CompareRushHours(labeled, []int{8, 9, 10}, []int{17, 18, 19}),
		AllHours:     all,
		DuringVsCtrl: u,
		WarningNotes: []string{"高峰时段样本不足, 跳过高峰检验"},
	}
	return res, labeled
}

func TestBuild(t *testing.T) {
	res, labeled := sampleResult(t)
	text := Build(res, labeled)

	for _, want := range []string{
		"Station DL013",
		"Phase 1 (2016-01-01 to 2016-01-15)",
		"Study window: 2015-12-17 to 2016-01-30",
		"1,200 hourly readings",
		"3 skipped for bad timestamps",
		"2 gap-filled",
		"Period means",
		"Before",
		"Rush-hour comparison",
		"Morning (08,09,10)",
		"Hypothesis tests (alpha = 0.05)",
		"Welch t, all hours",
		"p = < 0.0001",
		"-> significant",
		"rush hours only, Before vs During: skipped (not enough data)",
		"Mann-Whitney U",
		"no causal claim",
		"高峰时段样本不足",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("报告缺少 %q\n%s", want, text)
		}
	}

	// After 无数据时写 no data, 不允许伪造数字
	if !strings.Contains(text, "no data") {
		t.Error("无观测时段应标注 no data")
	}
}

func TestBuildDeterministic(t *testing.T) {
	res, labeled := sampleResult(t)
	if Build(res, labeled) != Build(res, labeled) {
		t.Error("同样输入两次生成的报告不一致")
	}
}

func TestWrite(t *testing.T) {
	res, labeled := sampleResult(t)
	path := filepath.Join(t.TempDir(), "out", SummaryFile)
	if err := Write(res, labeled, path); err != nil {
		t.Fatalf("写入报告失败: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读回失败: %v", err)
	}
	if string(data) != Build(res, labeled) {
		t.Error("落盘内容与生成内容不一致")
	}
}

func TestFprint(t *testing.T) {
	res, labeled := sampleResult(t)
	var sb strings.Builder
	if err := Fprint(&sb, res, labeled); err != nil {
		t.Fatalf("输出失败: %v", err)
	}
	if sb.String() != Build(res, labeled) {
		t.Error("Fprint 输出与 Build 不一致")
	}
}
