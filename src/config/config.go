package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DateFormat 配置文件中日期字段的格式
const DateFormat = "2006-01-02"

// Config 结构体定义了应用程序的配置结构
type Config struct {
	Data struct {
		Path    string `json:"path"`    // 数据文件路径 (csv 或 xlsx)
		Sheet   string `json:"sheet"`   // xlsx 文件的工作表名
		Station string `json:"station"` // 监测站编号
		Start   string `json:"start"`   // 研究窗口起始日期, 留空则由阶段推导
		End     string `json:"end"`     // 研究窗口结束日期, 留空则由阶段推导
	} `json:"data"`

	Analysis struct {
		Phase       string  `json:"phase"`        // 要分析的限行阶段名称
		RushMorning []int   `json:"rush_morning"` // 早高峰小时
		RushEvening []int   `json:"rush_evening"` // 晚高峰小时
		FillForward bool    `json:"fill_forward"` // 是否对缺失浓度做前向填充
		Alpha       float64 `json:"alpha"`        // 显著性水平
	} `json:"analysis"`

	Output struct {
		Dir string `json:"dir"` // 图表和表格的输出目录
	} `json:"output"`

	LogName    string `json:"log_name"`
	LogLevel   string `json:"log_level"`
	LogMaxSize string `json:"log_max_size"`

	Watch struct {
		Enabled  bool     `json:"enabled"`  // 监视数据文件变化并自动重跑
		Interval Duration `json:"interval"` // 定时重跑间隔, 0 表示不定时
	} `json:"watch"`
}

// PhaseConfig 定义了各个限行阶段的日期窗口
type PhaseConfig struct {
	Phases []PhaseWindow `json:"phases"`
}

// PhaseWindow 单个限行阶段, 日期格式 2006-01-02, 两端均含
type PhaseWindow struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
}

var (
	once          sync.Once
	instance      *Config
	phaseInstance *PhaseConfig
)

// DefaultConfig 内置默认配置, 配置文件缺失时直接可用
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Data.Path = filepath.Join("data", "station_hour.csv")
	cfg.Data.Sheet = "Sheet1"
	cfg.Data.Station = "DL013"
	cfg.Analysis.Phase = "Phase 1"
	cfg.Analysis.RushMorning = []int{8, 9, 10}
	cfg.Analysis.RushEvening = []int{17, 18, 19}
	cfg.Analysis.FillForward = true
	cfg.Analysis.Alpha = 0.05
	cfg.Output.Dir = "output"
	cfg.LogName = "app.log"
	cfg.LogLevel = "info"
	cfg.LogMaxSize = "10 * 1024 * 1024"
	cfg.Watch.Interval = Duration(15 * time.Minute)
	return cfg
}

// DefaultPhases 内置的四个单双号限行阶段
func DefaultPhases() *PhaseConfig {
	return &PhaseConfig{Phases: []PhaseWindow{
		{Name: "Phase 1", Start: "2016-01-01", End: "2016-01-15"},
		{Name: "Phase 2", Start: "2016-04-15", End: "2016-04-30"},
		{Name: "Phase 3", Start: "2017-11-13", End: "2017-11-17"},
		{Name: "Phase 4", Start: "2019-11-04", End: "2019-11-15"},
	}}
}

func LoadConfig(jsonFolder, jsonFile, phasesJsonFile string) (*Config, *PhaseConfig, error) {
	var err error
	once.Do(func() {
		instance, phaseInstance, err = loadConfigs(jsonFolder, jsonFile, phasesJsonFile)
	})
	return instance, phaseInstance, err
}

func loadConfigs(jsonFolder, jsonFile, phasesJsonFile string) (*Config, *PhaseConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	phasesFile := filepath.Join(jsonFolder, phasesJsonFile)

	// 文件缺失不算错误, 解析时落到内置默认值
	configData, err := readOptional(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	phasesData, err := readOptional(phasesFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取阶段配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	pcfgChan := make(chan *PhaseConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parsePhaseConfig(phasesData, pcfgChan, errChan)

	cfg, pcfg, err := waitForResults(cfgChan, pcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	applyEnvOverrides(cfg)
	return cfg, pcfg, nil
}

func readOptional(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	cfg := DefaultConfig()
	if data != nil {
		// 在默认值之上反序列化, JSON 中省略的字段保持默认
		if err := json.Unmarshal(data, cfg); err != nil {
			errChan <- fmt.Errorf("解析Config失败: %w", err)
			return
		}
	}
	resultChan <- cfg
}

func parsePhaseConfig(data []byte, resultChan chan<- *PhaseConfig, errChan chan<- error) {
	pcfg := DefaultPhases()
	if data != nil {
		parsed := &PhaseConfig{}
		if err := json.Unmarshal(data, parsed); err != nil {
			errChan <- fmt.Errorf("解析PhaseConfig失败: %w", err)
			return
		}
		if len(parsed.Phases) > 0 {
			pcfg = parsed
		}
	}
	resultChan <- pcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	pcfgChan <-chan *PhaseConfig,
	errChan <-chan error,
) (*Config, *PhaseConfig, error) {
	var (
		cfg    *Config
		pcfg   *PhaseConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
			fmt.Println("Config 配置加载完毕")
		case p := <-pcfgChan:
			pcfg = p
			fmt.Println("PhaseConfig 阶段配置加载完毕")
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || pcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, pcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// applyEnvOverrides 环境变量优先于配置文件, 便于不改文件切换数据源
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ODDEVEN_DATA")); v != "" {
		cfg.Data.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("ODDEVEN_STATION")); v != "" {
		cfg.Data.Station = v
	}
	if v := strings.TrimSpace(os.Getenv("ODDEVEN_OUT")); v != "" {
		cfg.Output.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("ODDEVEN_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
}

// Validate 检查配置中无法继续运行的取值
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Data.Path) == "" {
		return fmt.Errorf("配置缺少数据文件路径")
	}
	if strings.TrimSpace(c.Data.Station) == "" {
		return fmt.Errorf("配置缺少监测站编号")
	}
	if c.Analysis.Alpha <= 0 || c.Analysis.Alpha >= 1 {
		return fmt.Errorf("显著性水平 alpha 必须在 (0,1) 之间, 当前为 %v", c.Analysis.Alpha)
	}
	for _, s := range []string{c.Data.Start, c.Data.End} {
		if s == "" {
			continue
		}
		if _, err := time.Parse(DateFormat, s); err != nil {
			return fmt.Errorf("日期 %q 不符合 %s 格式: %w", s, DateFormat, err)
		}
	}
	// 高峰小时留空会让高峰对比退化成全时段对比
	if len(c.Analysis.RushMorning) == 0 || len(c.Analysis.RushEvening) == 0 {
		return fmt.Errorf("早晚高峰小时不能为空")
	}
	for _, h := range append(append([]int{}, c.Analysis.RushMorning...), c.Analysis.RushEvening...) {
		if h < 0 || h > 23 {
			return fmt.Errorf("高峰小时 %d 超出 0-23 范围", h)
		}
	}
	return nil
}

// Window 解析阶段窗口的起止日期
func (pw PhaseWindow) Window() (time.Time, time.Time, error) {
	start, err := time.Parse(DateFormat, pw.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("阶段 %s 起始日期无效: %w", pw.Name, err)
	}
	end, err := time.Parse(DateFormat, pw.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("阶段 %s 结束日期无效: %w", pw.Name, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("阶段 %s 结束日期早于起始日期", pw.Name)
	}
	return start, end, nil
}

// ByName 按名称查找阶段
func (pc *PhaseConfig) ByName(name string) (PhaseWindow, bool) {
	for _, pw := range pc.Phases {
		if pw.Name == name {
			return pw, true
		}
	}
	return PhaseWindow{}, false
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
