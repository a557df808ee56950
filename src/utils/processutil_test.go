package utils

import (
	"path/filepath"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

func TestContains(t *testing.T) {
	if !Contains([]int{8, 9, 10}, 9) {
		t.Error("Contains 应当命中 9")
	}
	if Contains([]string{"a"}, "b") {
		t.Error("Contains 不应命中 b")
	}
}

func TestHasColumn(t *testing.T) {
	df := dataframe.LoadRecords([][]string{
		{"StationId", "PM2.5"},
		{"DL013", "120"},
	})
	if !HasColumn(df, "PM2.5") {
		t.Error("应当找到 PM2.5 列")
	}
	if HasColumn(df, "NO2") {
		t.Error("不应找到 NO2 列")
	}
}

func TestParseTime(t *testing.T) {
	df := dataframe.LoadRecords([][]string{
		{"t"},
		{"2016-01-01 08:00:00"},
		{"2016-01-01"},
		{"not-a-time"},
	})
	col := df.Col("t")

	full, err := ParseTime(col.Elem(0))
	if err != nil || full.Hour() != 8 {
		t.Errorf("完整时间解析失败: %v %v", full, err)
	}

	dateOnly, err := ParseTime(col.Elem(1))
	if err != nil || dateOnly.Day() != 1 {
		t.Errorf("日期解析失败: %v %v", dateOnly, err)
	}

	if _, err := ParseTime(col.Elem(2)); err == nil {
		t.Error("无效时间应当报错")
	}
}

func TestSaveToExcel(t *testing.T) {
	df := dataframe.LoadRecords([][]string{
		{"StationId", "PM2.5"},
		{"DL013", "120.5"},
		{"DL013", "89"},
	})
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := SaveToExcel(df, path); err != nil {
		t.Fatalf("保存Excel失败: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("打开Excel失败: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatalf("读取工作表失败: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("行数 = %d, 期望表头加两行数据", len(rows))
	}
	if rows[0][0] != "StationId" || rows[1][1] != "120.5" {
		t.Errorf("单元格内容不符: %+v", rows)
	}
}
