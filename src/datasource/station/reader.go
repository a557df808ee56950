// reader.go
package station

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"syscall"
	"time"

	"OddEvenImpact/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

// TimeLayout 数据文件中 Datetime 列的格式
const TimeLayout = "2006-01-02 15:04:05"

// station_hour 数据文件的列名
const (
	ColStation = "StationId"
	ColTime    = "Datetime"
	ColPM25    = "PM2.5"
	ColNO2     = "NO2"
)

var (
	// ErrNoStationRows 过滤监测站后没有任何行
	ErrNoStationRows = errors.New("监测站没有匹配的数据行")
	// ErrEmptyWindow 研究窗口内没有任何行
	ErrEmptyWindow = errors.New("研究窗口内没有数据行")
)

const numberPattern string = "[0-9.]+"

// Reading 一条小时级观测, 缺测浓度用 NaN 表示
type Reading struct {
	Station string
	Time    time.Time
	PM25    float64
	NO2     float64
}

// Dataset 过滤清洗后的观测集合, 按时间升序, 加载后不再修改
type Dataset struct {
	Station  string
	Readings []Reading
	Skipped  int // 时间戳无法解析被跳过的行数
	Filled   int // 前向填充补上的缺测数
}

// LoadOptions 控制加载时的过滤与清洗
// Start/End 为日期(零点), 窗口两端均含, End 取整天
type LoadOptions struct {
	Station     string
	Start       time.Time
	End         time.Time
	Sheet       string
	FillForward bool
}

// Load 读取数据文件并完成站点过滤、时间解析、窗口过滤和清洗
// 支持 .csv 和 .xlsx 两种输入
func Load(path string, opts LoadOptions) (*Dataset, error) {
	var (
		df  dataframe.DataFrame
		err error
	)

	// 1. 按扩展名读取
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		df, err = ReadCSVToDataFrame(path)
	case ".xlsx", ".xls":
		df, err = ReadXLSXToDataFrame(path, opts.Sheet)
	default:
		return nil, fmt.Errorf("不支持的数据文件类型: %s", path)
	}
	if err != nil {
		return nil, err
	}
	if df.Nrow() == 0 {
		return nil, fmt.Errorf("数据文件 %s 中没有数据行", path)
	}

	// 2. 校验必需列
	for _, col := range []string{ColStation, ColTime, ColPM25} {
		if !utils.HasColumn(df, col) {
			return nil, fmt.Errorf("数据文件缺少必需列 %q", col)
		}
	}

	// 3. 过滤监测站
	sub := df.Filter(dataframe.F{
		Colname:    ColStation,
		Comparator: series.Eq,
		Comparando: opts.Station,
	})
	if sub.Err != nil {
		return nil, fmt.Errorf("过滤监测站失败: %w", sub.Err)
	}
	if sub.Nrow() == 0 {
		return nil, fmt.Errorf("监测站 %s: %w", opts.Station, ErrNoStationRows)
	}

	// 4. 逐行解析时间与浓度
	readings, skipped := parseReadings(sub, opts.Station)

	// 5. 窗口过滤
	readings = filterWindow(readings, opts.Start, opts.End)
	if len(readings) == 0 {
		return nil, fmt.Errorf("监测站 %s 在 %s - %s: %w",
			opts.Station,
			opts.Start.Format("2006-01-02"),
			opts.End.Format("2006-01-02"),
			ErrEmptyWindow)
	}

	sort.Slice(readings, func(i, j int) bool { return readings[i].Time.Before(readings[j].Time) })

	// 6. 前向填充缺测
	filled := 0
	if opts.FillForward {
		readings, filled = fillForward(readings)
	}

	return &Dataset{
		Station:  opts.Station,
		Readings: readings,
		Skipped:  skipped,
		Filled:   filled,
	}, nil
}

// ReadCSVToDataFrame 读取CSV文件, 所有列按字符串处理, 解析推迟到逐行提取
func ReadCSVToDataFrame(filePath string) (dataframe.DataFrame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.New(), fmt.Errorf("打开数据文件失败: %w", err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{"", "NA", "NaN"}),
	)
	if df.Err != nil {
		return dataframe.New(), fmt.Errorf("解析CSV失败: %w", df.Err)
	}
	return df, nil
}

func ReadXLSXToDataFrame(filePath, sheetName string) (dataframe.DataFrame, error) {
	df, err := ReadXLSX(filePath, sheetName)
	if err != nil {
		return dataframe.New(), fmt.Errorf("failed to open xlsx file: %w", err)
	}
	return df, nil
}

func ReadXLSX(filePath, sheetName string) (df dataframe.DataFrame, err error) {
	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.New(), fmt.Errorf("xlsx open file false: %w", err)
	}

	// 2. 获取工作表, 未指定时取第一个
	if len(xlFile.Sheets) == 0 {
		return dataframe.New(), fmt.Errorf("excel文件中没有工作表")
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		named, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.New(), fmt.Errorf("excel文件中没有工作表 %q", sheetName)
		}
		sheet = named
	}

	// 3. 转换为Gota DataFrame
	df = convertSheetToDataFrame(sheet)

	// 4. 标准化时间列(Excel序列值转时间字符串)
	df = normalizeTimeColumns(df)

	return df, df.Err
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
// 第一行作为标题行
func convertSheetToDataFrame(sheet *xlsx.Sheet) dataframe.DataFrame {
	if len(sheet.Rows) < 2 {
		return dataframe.New()
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, cell.Value)
	}

	// 准备数据列
	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-1)
	}

	// 填充数据
	for _, row := range sheet.Rows[1:] {
		for i := range headers {
			val := ""
			if i < len(row.Cells) {
				val = row.Cells[i].Value
			}
			columns[i] = append(columns[i], val)
		}
	}

	// 创建Series切片
	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	return dataframe.New(seriesList...)
}

// normalizeTimeColumns 将时间相关列统一为 2006-01-02 15:04:05 格式
func normalizeTimeColumns(df dataframe.DataFrame) dataframe.DataFrame {
	for _, col := range findTimeColumns(df) {
		df = df.Mutate(
			series.New(df.Col(col).Map(normalizeTime), series.String, col),
		)
	}
	return df
}

// 辅助函数：查找可能是时间类型的列
func findTimeColumns(df dataframe.DataFrame) []string {
	var timeCols []string
	timeKeywords := []string{"Datetime", "时间", "日期", "date", "time"}

	for _, col := range df.Names() {
		for _, kw := range timeKeywords {
			if strings.Contains(col, kw) {
				timeCols = append(timeCols, col)
				break
			}
		}
	}
	return timeCols
}

var numberRe = regexp.MustCompile(numberPattern)

// normalizeTime 单个元素的时间标准化
// Excel序列值走excelToTime, 字符串尝试多种格式
func normalizeTime(v series.Element) series.Element {
	s := v.String()
	if s == "" || v.IsNA() {
		return v
	}
	if !strings.ContainsAny(s, "-/:") && numberRe.MatchString(s) {
		return excelToTime(v)
	}
	return parseTimeElement(v)
}

// excel时间类型转time.Time类型
func excelToTime(v series.Element) series.Element {
	excelDays := v.Float()
	if math.IsNaN(excelDays) {
		return v // 返回原值或可设置为错误标记
	}

	// 1. 处理Excel的1900年闰年错误（2月29日不存在）
	if excelDays >= 60 {
		excelDays -= 1 // 调整60天后的日期
	}

	// 2. 以1899-12-30为基准换算天数和小数部分
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	days := int(excelDays)
	fraction := excelDays - float64(days)

	result := base.AddDate(0, 0, days).
		Add(time.Duration(86400*fraction*1e9) * time.Nanosecond)

	// 3. 保留原始时间值并设置格式化字符串
	res := result.Format(TimeLayout)

	resVO := reflect.ValueOf(res)
	v.Set(resVO.Interface())

	return v
}

// 辅助函数：解析时间
func parseTimeElement(v series.Element) series.Element {
	str := v.String()

	// 尝试多种时间格式
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02",
		"2006/01/02 15:04:05",
		"2006/01/02",
		"01-02-2006 15:04:05",
		"01/02/2006 15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, str); err == nil {
			v.Set(t.Format(TimeLayout))
			return v
		}
	}
	v.Set(str)
	return v
}

// parseReadings 把过滤后的DataFrame逐行转成Reading
// 时间戳无法解析的行跳过并计数
func parseReadings(df dataframe.DataFrame, stationID string) ([]Reading, int) {
	timeCol := df.Col(ColTime)
	pmCol := df.Col(ColPM25)
	hasNO2 := utils.HasColumn(df, ColNO2)
	var no2Col series.Series
	if hasNO2 {
		no2Col = df.Col(ColNO2)
	}

	readings := make([]Reading, 0, df.Nrow())
	skipped := 0

	for i := 0; i < df.Nrow(); i++ {
		ts, err := utils.ParseTime(timeCol.Elem(i))
		if err != nil || ts.IsZero() {
			skipped++
			continue
		}

		r := Reading{
			Station: stationID,
			Time:    ts,
			PM25:    pmCol.Elem(i).Float(),
			NO2:     math.NaN(),
		}
		if hasNO2 {
			r.NO2 = no2Col.Elem(i).Float()
		}
		// 负值视为缺测
		if r.PM25 < 0 {
			r.PM25 = math.NaN()
		}
		if r.NO2 < 0 {
			r.NO2 = math.NaN()
		}
		readings = append(readings, r)
	}

	return readings, skipped
}

// filterWindow 保留 [start, end] 内的行, end 为日期时取到当日结束
// start/end 为零值时对应一侧不设限
func filterWindow(readings []Reading, start, end time.Time) []Reading {
	var endNext time.Time
	if !end.IsZero() {
		endNext = end.AddDate(0, 0, 1)
	}

	kept := readings[:0:0]
	for _, r := range readings {
		if !start.IsZero() && r.Time.Before(start) {
			continue
		}
		if !endNext.IsZero() && !r.Time.Before(endNext) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// fillForward 用上一条观测补缺测浓度, 开头仍缺 PM2.5 的行丢弃
func fillForward(readings []Reading) ([]Reading, int) {
	filled := 0
	for i := 1; i < len(readings); i++ {
		if math.IsNaN(readings[i].PM25) && !math.IsNaN(readings[i-1].PM25) {
			readings[i].PM25 = readings[i-1].PM25
			filled++
		}
		if math.IsNaN(readings[i].NO2) && !math.IsNaN(readings[i-1].NO2) {
			readings[i].NO2 = readings[i-1].NO2
		}
	}

	kept := readings[:0:0]
	for _, r := range readings {
		if math.IsNaN(r.PM25) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, filled
}

// ensureDir 确保目录存在
func EnsureDir(dirPath string) error {
	if info, err := os.Stat(dirPath); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	return os.MkdirAll(dirPath, 0755)
}

// SetupSignalHandler 设置信号处理器
func SetupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Printf("\nReceived signal: %v, shutting down...\n", sig)
		cancel()
	}()
}
