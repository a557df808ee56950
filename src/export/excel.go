// excel.go
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"OddEvenImpact/src/processor"

	"github.com/xuri/excelize/v2"
)

const WorkbookFile = "results.xlsx"

const (
	sheetHourly = "Hourly Means"
	sheetDaily  = "Daily Means"
	sheetTests  = "Significance"
)

// WriteWorkbook 把均值表与检验结论汇总为一个工作簿, 供不跑程序的人直接查看
func WriteWorkbook(res *processor.AnalysisResult, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetHourly); err != nil {
		return fmt.Errorf("重命名工作表失败: %w", err)
	}
	fillHourlySheet(f, res.Hourly)

	if _, err := f.NewSheet(sheetDaily); err != nil {
		return fmt.Errorf("创建工作表 %s 失败: %w", sheetDaily, err)
	}
	fillDailySheet(f, res.Daily)

	if _, err := f.NewSheet(sheetTests); err != nil {
		return fmt.Errorf("创建工作表 %s 失败: %w", sheetTests, err)
	}
	fillTestSheet(f, res)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("保存工作簿 %s 失败: %w", path, err)
	}
	return nil
}

func fillHourlySheet(f *excelize.File, table processor.HourlyTable) {
	setRow(f, sheetHourly, 1, asRow(hourlyHeader(table.Periods)))
	for h := 0; h < 24; h++ {
		cells := []interface{}{h}
		for _, p := range table.Periods {
			cell, ok := table.Cell(h, p)
			if !ok {
				cells = append(cells, "NA", 0)
				continue
			}
			cells = append(cells, cellValue(cell.Mean), cell.Count)
		}
		setRow(f, sheetHourly, h+2, cells)
	}
}

func fillDailySheet(f *excelize.File, daily []processor.DailyStat) {
	setRow(f, sheetDaily, 1, asRow([]string{"date", "period", "mean", "count"}))
	for i, d := range daily {
		setRow(f, sheetDaily, i+2, []interface{}{
			d.Date.Format("2006-01-02"),
			string(d.Period),
			cellValue(d.Mean),
			d.Count,
		})
	}
}

func fillTestSheet(f *excelize.File, res *processor.AnalysisResult) {
	setRow(f, sheetTests, 1, asRow([]string{
		"test", "groups", "n_a", "n_b", "mean_a", "mean_b",
		"statistic", "df", "p_value", "alpha", "significant",
	}))

	row := 2
	if r := res.AllHours; r != nil {
		setRow(f, sheetTests, row, []interface{}{
			"Welch t (all hours)", "Before vs During", r.NA, r.NB,
			cellValue(r.MeanA), cellValue(r.MeanB),
			cellValue(r.T), cellValue(r.DF), cellValue(r.P), r.Alpha, r.Significant,
		})
		row++
	}
	if r := res.RushHours; r != nil {
		setRow(f, sheetTests, row, []interface{}{
			"Welch t (rush hours)", "Before vs During", r.NA, r.NB,
			cellValue(r.MeanA), cellValue(r.MeanB),
			cellValue(r.T), cellValue(r.DF), cellValue(r.P), r.Alpha, r.Significant,
		})
		row++
	}
	if r := res.DuringVsCtrl; r != nil {
		setRow(f, sheetTests, row, []interface{}{
			"Mann-Whitney U (" + r.Alt.String() + ")", "During vs Control", r.NA, r.NB,
			"", "",
			cellValue(r.U), "", cellValue(r.P), r.Alpha, r.Significant,
		})
		row++
	}

	// 提示信息附在检验表之后, 空一行
	for _, note := range res.WarningNotes {
		row++
		setRow(f, sheetTests, row, []interface{}{note})
	}
}

// setRow 逐格写入一行, 单元格定位失败时跳过该格
func setRow(f *excelize.File, sheet string, row int, values []interface{}) {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			continue
		}
		f.SetCellValue(sheet, cell, v)
	}
}

func asRow(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// cellValue 数值保留 4 位小数; NaN 和 Inf 无法写入单元格, 退化为文本
func cellValue(v float64) interface{} {
	switch {
	case math.IsNaN(v):
		return "NA"
	case math.IsInf(v, 0):
		return fmt.Sprint(v)
	}
	return math.Round(v*10000) / 10000
}
