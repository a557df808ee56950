package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"OddEvenImpact/src/config"
	"OddEvenImpact/src/datasource/station"
	"OddEvenImpact/src/export"
	"OddEvenImpact/src/processor"
	"OddEvenImpact/src/render"
	"OddEvenImpact/src/report"
	"OddEvenImpact/src/storage"

	"github.com/joho/godotenv"
	"github.com/robfig/cron"
	"github.com/spf13/pflag"
)

const version = "1.2.0"

var (
	flagConfigDir = pflag.StringP("config", "c", "./config", "配置文件目录")
	flagData      = pflag.StringP("data", "d", "", "数据文件路径, 覆盖配置")
	flagStation   = pflag.StringP("station", "i", "", "监测站编号, 覆盖配置")
	flagPhase     = pflag.StringP("phase", "p", "", "限行阶段名称, 覆盖配置")
	flagStart     = pflag.StringP("start", "s", "", "研究窗口起始日期 (2006-01-02), 留空由阶段推导")
	flagEnd       = pflag.StringP("end", "e", "", "研究窗口结束日期 (2006-01-02), 留空由阶段推导")
	flagOut       = pflag.StringP("out", "o", "", "输出目录, 覆盖配置")
	flagWatch     = pflag.BoolP("watch", "w", false, "监视数据文件变化并自动重跑")
	flagEvery     = pflag.String("every", "", "定时重跑间隔, 如 15m, 覆盖配置")
	flagLogLevel  = pflag.String("log-level", "", "日志级别 debug/info/warning/error")
	flagNoFill    = pflag.Bool("no-fill", false, "关闭缺测前向填充")
	flagVersion   = pflag.BoolP("version", "v", false, "打印版本后退出")
)

func main() {
	pflag.Parse()
	if *flagVersion {
		fmt.Println("oddeven-impact", version)
		return
	}

	// .env 便于本地调试时注入 ODDEVEN_* 环境变量, 文件缺失直接忽略
	_ = godotenv.Load()

	cfg, phases, err := config.LoadConfig(*flagConfigDir, "config.json", "phases.json")
	if err != nil {
		log.Fatal("加载配置失败: ", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal("配置无效: ", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("初始化日志失败: ", err)
	}
	defer logger.Close()
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.Warning(err.Error())
	}
	if err := logger.CheckRotate(cfg); err != nil {
		logger.Warning("检查日志轮转失败: " + err.Error())
	}

	// SIGHUP 触发日志轮转
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := logger.Rotate(); err != nil {
				logger.Error("日志轮转失败: " + err.Error())
				continue
			}
			logger.Info("收到 SIGHUP, 日志已轮转")
		}
	}()

	runner := &Runner{cfg: cfg, phases: phases, logger: logger}

	res, err := runner.Run()
	if err != nil {
		logger.Error("分析失败: " + err.Error())
		os.Exit(1)
	}
	fmt.Println(res.Summary)

	if !cfg.Watch.Enabled {
		return
	}
	runner.watchLoop()
}

// applyFlags 命令行参数优先于配置文件和环境变量
func applyFlags(cfg *config.Config) {
	if *flagData != "" {
		cfg.Data.Path = *flagData
	}
	if *flagStation != "" {
		cfg.Data.Station = *flagStation
	}
	if *flagPhase != "" {
		cfg.Analysis.Phase = *flagPhase
	}
	if *flagStart != "" {
		cfg.Data.Start = *flagStart
	}
	if *flagEnd != "" {
		cfg.Data.End = *flagEnd
	}
	if *flagOut != "" {
		cfg.Output.Dir = *flagOut
	}
	if *flagLogLevel != "" {
		cfg.LogLevel = *flagLogLevel
	}
	if *flagNoFill {
		cfg.Analysis.FillForward = false
	}
	if *flagWatch {
		cfg.Watch.Enabled = true
	}
	if *flagEvery != "" {
		d, err := time.ParseDuration(*flagEvery)
		if err != nil {
			log.Fatal("无法解析 --every 间隔: ", err)
		}
		cfg.Watch.Interval = config.Duration(d)
	}
}

// Runner 串行执行分析, 同一时刻只允许一次在跑
type Runner struct {
	mu     sync.Mutex
	cfg    *config.Config
	phases *config.PhaseConfig
	logger *storage.Logger
}

func (r *Runner) Run() (*processor.AnalysisResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return runAnalysis(r.cfg, r.phases, r.logger)
}

// watchLoop 监视数据文件直到收到退出信号
// 文件事件可能丢失, 配置了间隔时用定时任务兜底
func (r *Runner) watchLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	station.SetupSignalHandler(cancel)

	rerun := func(reason string) {
		r.logger.Info("触发重新分析: " + reason)
		t1 := time.Now()
		if _, err := r.Run(); err != nil {
			r.logger.Error("重新分析失败: " + err.Error())
			return
		}
		r.logger.Info(fmt.Sprintf("重新分析完成, 耗时 %v", time.Since(t1)))
	}

	if interval := time.Duration(r.cfg.Watch.Interval); interval > 0 {
		c := cron.New()
		cronSpec := fmt.Sprintf("@every %s", interval)
		if err := c.AddFunc(cronSpec, func() { rerun("定时重跑 " + cronSpec) }); err != nil {
			r.logger.Error("创建定时任务失败: " + err.Error())
		} else {
			c.Start()
			defer c.Stop()
			r.logger.Info("定时重跑已启动, 间隔 " + interval.String())
		}
	}

	monitor, err := station.NewMonitor(r.cfg.Data.Path)
	if err != nil {
		r.logger.Error("创建文件监视失败: " + err.Error())
		<-ctx.Done()
		return
	}
	defer monitor.Close()

	r.logger.Info(fmt.Sprintf("开始监视 %s, 按 Ctrl+C 退出", r.cfg.Data.Path))
	if err := monitor.Watch(ctx, func(path string) { rerun("数据文件更新 " + path) }); err != nil {
		r.logger.Error("文件监视结束: " + err.Error())
	}
}

// runAnalysis 完整跑一遍: 加载、打标、聚合、检验、渲染、导出、报告
func runAnalysis(cfg *config.Config, phases *config.PhaseConfig, logger *storage.Logger) (*processor.AnalysisResult, error) {
	t1 := time.Now()

	// 1. 解析限行阶段
	pw, ok := phases.ByName(cfg.Analysis.Phase)
	if !ok {
		return nil, fmt.Errorf("未知的限行阶段 %q", cfg.Analysis.Phase)
	}
	phase, err := processor.NewPhase(pw.Name, pw.Start, pw.End)
	if err != nil {
		return nil, err
	}

	// 2. 确定研究窗口, 配置留空时由阶段推导
	start, end := processor.StudyWindow(phase)
	if cfg.Data.Start != "" {
		// 日期格式 Validate 已经检查过
		start, _ = time.Parse(config.DateFormat, cfg.Data.Start)
	}
	if cfg.Data.End != "" {
		end, _ = time.Parse(config.DateFormat, cfg.Data.End)
	}
	logger.Info(fmt.Sprintf("分析 %s, 研究窗口 %s - %s",
		phase.Name, start.Format(config.DateFormat), end.Format(config.DateFormat)))

	// 3. 加载研究窗口内的观测
	ds, err := station.Load(cfg.Data.Path, station.LoadOptions{
		Station:     cfg.Data.Station,
		Start:       start,
		End:         end,
		Sheet:       cfg.Data.Sheet,
		FillForward: cfg.Analysis.FillForward,
	})
	if err != nil {
		return nil, fmt.Errorf("加载数据失败: %w", err)
	}
	logger.Info(fmt.Sprintf("监测站 %s 载入 %d 行, 填充 %d 个缺测",
		ds.Station, len(ds.Readings), ds.Filled))
	if ds.Skipped > 0 {
		logger.Warning(fmt.Sprintf("有 %d 行时间戳无法解析, 已跳过", ds.Skipped))
	}

	res := &processor.AnalysisResult{Dataset: ds, Phase: phase}
	labeled := processor.Tag(ds, phase)

	// 4. 加载上一年同期对照, 缺失只降级不终止
	ctrlStart, ctrlEnd := processor.ControlWindow(phase)
	ctrl, err := station.Load(cfg.Data.Path, station.LoadOptions{
		Station:     cfg.Data.Station,
		Start:       ctrlStart,
		End:         ctrlEnd,
		Sheet:       cfg.Data.Sheet,
		FillForward: cfg.Analysis.FillForward,
	})
	if err != nil {
		note := fmt.Sprintf("上一年同期没有对照数据, 跳过 Mann-Whitney 检验: %v", err)
		logger.Warning(note)
		res.WarningNotes = append(res.WarningNotes, note)
	} else {
		labeled = append(labeled, processor.Tag(ctrl, phase)...)
	}

	// 5. 聚合
	res.Hourly = processor.HourlyMeans(labeled, processor.ComparePeriods...)
	res.Daily = processor.DailyMeans(labeled)
	res.Rush = processor.CompareRushHours(labeled, cfg.Analysis.RushMorning, cfg.Analysis.RushEvening)
	grid := processor.BuildDayHourGrid(labeled)

	// 6. 显著性检验
	runTests(res, labeled, cfg, logger)

	// 7. 渲染图表
	if err := station.EnsureDir(cfg.Output.Dir); err != nil {
		return nil, err
	}
	images, err := render.All(labeled, res.Hourly, grid, res.Rush, cfg.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("渲染图表失败: %w", err)
	}
	res.ImagePaths = images

	// 8. 导出聚合表
	if err := export.WriteHourlyCSV(res.Hourly, filepath.Join(cfg.Output.Dir, export.HourlyCSVFile)); err != nil {
		return nil, err
	}
	if err := export.WriteDailyCSV(res.Daily, filepath.Join(cfg.Output.Dir, export.DailyCSVFile)); err != nil {
		return nil, err
	}
	res.ExcelPath = filepath.Join(cfg.Output.Dir, export.WorkbookFile)
	if err := export.WriteWorkbook(res, res.ExcelPath); err != nil {
		return nil, err
	}

	// 9. 文字报告
	res.Summary = report.Build(res, labeled)
	if err := report.Write(res, labeled, filepath.Join(cfg.Output.Dir, report.SummaryFile)); err != nil {
		return nil, err
	}

	logger.Info(fmt.Sprintf("分析完成, 输出目录 %s, 耗时 %v", cfg.Output.Dir, time.Since(t1)))
	return res, nil
}

// runTests 三项检验, 样本不足降级为提示而不是失败
func runTests(res *processor.AnalysisResult, labeled []processor.Labeled, cfg *config.Config, logger *storage.Logger) {
	alpha := cfg.Analysis.Alpha
	before := processor.PeriodValues(labeled, processor.PeriodBefore)
	during := processor.PeriodValues(labeled, processor.PeriodDuring)

	if r, err := processor.WelchTTest(before, during, processor.TwoSided, alpha); err != nil {
		note := "全时段 t 检验跳过: " + err.Error()
		logger.Warning(note)
		res.WarningNotes = append(res.WarningNotes, note)
	} else {
		res.AllHours = r
	}

	rush := append(append([]int{}, cfg.Analysis.RushMorning...), cfg.Analysis.RushEvening...)
	beforeRush := processor.PeriodValues(labeled, processor.PeriodBefore, rush...)
	duringRush := processor.PeriodValues(labeled, processor.PeriodDuring, rush...)
	if r, err := processor.WelchTTest(beforeRush, duringRush, processor.TwoSided, alpha); err != nil {
		note := "高峰时段 t 检验跳过: " + err.Error()
		logger.Warning(note)
		res.WarningNotes = append(res.WarningNotes, note)
	} else {
		res.RushHours = r
	}

	control := processor.PeriodValues(labeled, processor.PeriodControl)
	if len(control) == 0 {
		return
	}
	if r, err := processor.MannWhitneyU(during, control, processor.Less, alpha); err != nil {
		note := "对照期 U 检验跳过: " + err.Error()
		logger.Warning(note)
		res.WarningNotes = append(res.WarningNotes, note)
	} else {
		res.DuringVsCtrl = r
	}
}
