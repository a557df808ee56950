// csv.go
package export

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"OddEvenImpact/src/processor"
)

// 聚合表文件名固定, 重跑覆盖
const (
	HourlyCSVFile = "hourly_means.csv"
	DailyCSVFile  = "daily_means.csv"
)

// WriteHourlyCSV 输出 24 小时 × 时段均值表
// 行固定 0..23, 列按表内时段顺序; 同一张表重跑输出逐字节一致
// 无观测的单元格均值写 NA, 计数写 0, 绝不写成均值 0
func WriteHourlyCSV(table processor.HourlyTable, path string) error {
	rows := [][]string{hourlyHeader(table.Periods)}
	for h := 0; h < 24; h++ {
		row := []string{strconv.Itoa(h)}
		for _, p := range table.Periods {
			cell, ok := table.Cell(h, p)
			if !ok {
				row = append(row, "NA", "0")
				continue
			}
			row = append(row, fmtFloat(cell.Mean), strconv.Itoa(cell.Count))
		}
		rows = append(rows, row)
	}
	return writeCSV(path, rows)
}

func hourlyHeader(periods []processor.Period) []string {
	header := []string{"hour"}
	for _, p := range periods {
		name := strings.ToLower(string(p))
		header = append(header, name+"_mean", name+"_count")
	}
	return header
}

// WriteDailyCSV 输出按日均值表, 输入已按日期升序
func WriteDailyCSV(daily []processor.DailyStat, path string) error {
	rows := [][]string{{"date", "period", "mean", "count"}}
	for _, d := range daily {
		rows = append(rows, []string{
			d.Date.Format("2006-01-02"),
			string(d.Period),
			fmtFloat(d.Mean),
			strconv.Itoa(d.Count),
		})
	}
	return writeCSV(path, rows)
}

// fmtFloat 固定 4 位小数, 缺测写 NA
func fmtFloat(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建文件 %s 失败: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	return nil
}
