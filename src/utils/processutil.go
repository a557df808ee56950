package utils

import (
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// 数据文件中时间列支持的格式, 按顺序尝试
var timeFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// ParseTime 解析时间列元素, 空值返回零值时间
func ParseTime(s series.Element) (time.Time, error) {
	if s.IsNA() || s.String() == "" {
		return time.Time{}, nil
	}
	var lastErr error
	for _, layout := range timeFormats {
		t, err := time.Parse(layout, s.String())
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr // 返回零值时间表示解析失败
}

func SaveToExcel(df dataframe.DataFrame, filePath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sheet1"

	// 写入列名
	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, name)
	}

	// 写入数据
	for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
		for colIdx, colName := range colNames {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			val := df.Col(colName).Val(rowIdx)
			f.SetCellValue(sheetName, cell, val)
		}
	}

	// 保存文件
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}

	return nil
}
