// summary.go
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"OddEvenImpact/src/processor"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const SummaryFile = "summary.txt"

// Build 生成英文文字报告
// 检验结果缺失时写明跳过原因, 不中断生成
func Build(res *processor.AnalysisResult, labeled []processor.Labeled) string {
	var b strings.Builder
	en := message.NewPrinter(language.English)

	stationName := "unknown"
	if res.Dataset != nil && res.Dataset.Station != "" {
		stationName = res.Dataset.Station
	}

	title := fmt.Sprintf("Delhi Odd-Even Pilot and PM2.5 at Station %s", stationName)
	rule := strings.Repeat("=", len(title)+2)
	fmt.Fprintf(&b, "%s\n %s\n%s\n\n", rule, title, rule)

	// 1. 阶段与数据概况
	winStart, winEnd := processor.StudyWindow(res.Phase)
	fmt.Fprintf(&b, "Phase:        %s (%s to %s)\n",
		res.Phase.Name, res.Phase.Start.Format("2006-01-02"), res.Phase.End.Format("2006-01-02"))
	fmt.Fprintf(&b, "Study window: %s to %s\n",
		winStart.Format("2006-01-02"), winEnd.Format("2006-01-02"))
	if ds := res.Dataset; ds != nil {
		fmt.Fprintf(&b, "Observations: %s hourly readings", en.Sprintf("%d", len(ds.Readings)))
		var extras []string
		if ds.Skipped > 0 {
			extras = append(extras, en.Sprintf("%d skipped for bad timestamps", ds.Skipped))
		}
		if ds.Filled > 0 {
			extras = append(extras, en.Sprintf("%d gap-filled", ds.Filled))
		}
		if len(extras) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(extras, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	// 2. 各时段均值
	b.WriteString("Period means (PM2.5, µg/m³)\n")
	for _, p := range processor.ComparePeriods {
		mean, sd, n := processor.PeriodSummary(labeled, p)
		if n == 0 {
			fmt.Fprintf(&b, "  %-8s no data\n", p)
			continue
		}
		fmt.Fprintf(&b, "  %-8s mean %s, sd %s, n %s\n",
			p, num(mean), num(sd), en.Sprintf("%d", n))
	}
	b.WriteString("\n")

	// 3. 高峰对比
	fmt.Fprintf(&b, "Rush-hour comparison (Before -> During)\n")
	fmt.Fprintf(&b, "  Morning (%s): %s -> %s  (%s)\n",
		joinHours(res.Rush.MorningHours), num(res.Rush.MorningBefore), num(res.Rush.MorningDuring), change(res.Rush.MorningChange))
	fmt.Fprintf(&b, "  Evening (%s): %s -> %s  (%s)\n",
		joinHours(res.Rush.EveningHours), num(res.Rush.EveningBefore), num(res.Rush.EveningDuring), change(res.Rush.EveningChange))
	b.WriteString("\n")

	// 4. 假设检验
	alpha := processor.DefaultAlpha
	if res.AllHours != nil {
		alpha = res.AllHours.Alpha
	}
	fmt.Fprintf(&b, "Hypothesis tests (alpha = %g)\n", alpha)
	writeTTest(&b, "Welch t, all hours, Before vs During", res.AllHours)
	writeTTest(&b, "Welch t, rush hours only, Before vs During", res.RushHours)
	writeUTest(&b, "Mann-Whitney U, During vs same dates a year earlier", res.DuringVsCtrl)
	b.WriteString("\n")

	// 5. 运行提示
	if len(res.WarningNotes) > 0 {
		b.WriteString("Notes\n")
		for _, note := range res.WarningNotes {
			fmt.Fprintf(&b, "  - %s\n", note)
		}
		b.WriteString("\n")
	}

	b.WriteString("These are observational data from a single station. A lower PM2.5\n")
	b.WriteString("level during the pilot is an association only; weather, holidays and\n")
	b.WriteString("other emission sources changed over the same weeks, so these numbers\n")
	b.WriteString("support no causal claim.\n")

	return b.String()
}

// Write 生成报告并落盘
func Write(res *processor.AnalysisResult, labeled []processor.Labeled, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(path, []byte(Build(res, labeled)), 0644); err != nil {
		return fmt.Errorf("写入报告 %s 失败: %w", path, err)
	}
	return nil
}

// Fprint 生成报告并写入 w
func Fprint(w io.Writer, res *processor.AnalysisResult, labeled []processor.Labeled) error {
	_, err := io.WriteString(w, Build(res, labeled))
	return err
}

func writeTTest(b *strings.Builder, name string, r *processor.TTestResult) {
	if r == nil {
		fmt.Fprintf(b, "  %s: skipped (not enough data)\n", name)
		return
	}
	fmt.Fprintf(b, "  %s (%s):\n", name, r.Alt)
	fmt.Fprintf(b, "      t = %s, df = %s, p = %s\n", num4(r.T), num(r.DF), pval(r.P))
	if r.Significant {
		fmt.Fprintf(b, "      -> significant at alpha %g: mean PM2.5 differs between the groups.\n", r.Alpha)
	} else {
		fmt.Fprintf(b, "      -> not significant at alpha %g: no reliable difference detected.\n", r.Alpha)
	}
}

func writeUTest(b *strings.Builder, name string, r *processor.UTestResult) {
	if r == nil {
		fmt.Fprintf(b, "  %s: skipped (no control data)\n", name)
		return
	}
	fmt.Fprintf(b, "  %s (%s):\n", name, r.Alt)
	fmt.Fprintf(b, "      U = %s, p = %s\n", num(r.U), pval(r.P))
	if r.Significant {
		fmt.Fprintf(b, "      -> significant at alpha %g: pilot-period levels tend to be lower than the control.\n", r.Alpha)
	} else {
		fmt.Fprintf(b, "      -> not significant at alpha %g: no reliable shift against the control.\n", r.Alpha)
	}
}

// num 两位小数, 缺测写 NA
func num(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return fmt.Sprintf("%.2f", v)
}

// num4 检验统计量保留四位小数
func num4(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return fmt.Sprintf("%.4f", v)
}

// pval 过小的 p 值不打印成 0.0000
func pval(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	if v < 0.0001 {
		return "< 0.0001"
	}
	return fmt.Sprintf("%.4f", v)
}

func change(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return fmt.Sprintf("%+.1f%%", v)
}

func joinHours(hours []int) string {
	if len(hours) == 0 {
		return "none"
	}
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = fmt.Sprintf("%02d", h)
	}
	return strings.Join(parts, ",")
}
