package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Data.Station != "DL013" {
		t.Errorf("默认监测站 = %q, 期望 DL013", cfg.Data.Station)
	}
	if cfg.Analysis.Phase != "Phase 1" {
		t.Errorf("默认阶段 = %q, 期望 Phase 1", cfg.Analysis.Phase)
	}
	if cfg.Analysis.Alpha != 0.05 {
		t.Errorf("默认 alpha = %v, 期望 0.05", cfg.Analysis.Alpha)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("默认配置应当通过校验: %v", err)
	}
}

func TestLoadConfigsMissingFiles(t *testing.T) {
	// 配置文件缺失时落到内置默认值, 不报错
	cfg, pcfg, err := loadConfigs(t.TempDir(), "config.json", "phases.json")
	if err != nil {
		t.Fatalf("缺失配置文件不应报错: %v", err)
	}
	if cfg.Data.Station != "DL013" {
		t.Errorf("监测站 = %q, 期望默认值 DL013", cfg.Data.Station)
	}
	if len(pcfg.Phases) != 4 {
		t.Errorf("默认阶段数 = %d, 期望 4", len(pcfg.Phases))
	}
}

func TestLoadConfigsFromFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "config.json", `{
		"data": {"path": "d.csv", "station": "DL020"},
		"analysis": {"alpha": 0.01},
		"watch": {"interval": "5m"}
	}`)
	writeTestFile(t, dir, "phases.json", `{
		"phases": [{"name": "Pilot", "start": "2015-12-01", "end": "2015-12-05"}]
	}`)

	cfg, pcfg, err := loadConfigs(dir, "config.json", "phases.json")
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Data.Station != "DL020" {
		t.Errorf("监测站 = %q, 期望 DL020", cfg.Data.Station)
	}
	if cfg.Analysis.Alpha != 0.01 {
		t.Errorf("alpha = %v, 期望 0.01", cfg.Analysis.Alpha)
	}
	// JSON 中省略的字段保持默认
	if cfg.Output.Dir != "output" {
		t.Errorf("输出目录 = %q, 期望默认 output", cfg.Output.Dir)
	}
	if time.Duration(cfg.Watch.Interval) != 5*time.Minute {
		t.Errorf("重跑间隔 = %v, 期望 5m", time.Duration(cfg.Watch.Interval))
	}
	if len(pcfg.Phases) != 1 || pcfg.Phases[0].Name != "Pilot" {
		t.Errorf("阶段配置未生效: %+v", pcfg.Phases)
	}
}

func TestLoadConfigsBadJSON(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "config.json", `{"data": `)

	if _, _, err := loadConfigs(dir, "config.json", "phases.json"); err == nil {
		t.Fatal("损坏的 JSON 应当报错")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ODDEVEN_STATION", "DL021")
	t.Setenv("ODDEVEN_OUT", "out2")

	cfg, _, err := loadConfigs(t.TempDir(), "config.json", "phases.json")
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Data.Station != "DL021" {
		t.Errorf("监测站 = %q, 环境变量应当覆盖默认值", cfg.Data.Station)
	}
	if cfg.Output.Dir != "out2" {
		t.Errorf("输出目录 = %q, 环境变量应当覆盖默认值", cfg.Output.Dir)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"缺少数据路径", func(c *Config) { c.Data.Path = " " }},
		{"缺少监测站", func(c *Config) { c.Data.Station = "" }},
		{"alpha越界", func(c *Config) { c.Analysis.Alpha = 1.5 }},
		{"日期格式错误", func(c *Config) { c.Data.Start = "2016/01/01" }},
		{"高峰小时为空", func(c *Config) { c.Analysis.RushMorning = nil }},
		{"高峰小时越界", func(c *Config) { c.Analysis.RushEvening = []int{17, 24} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("期望校验失败, 实际通过")
			}
		})
	}
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"90s"`), &d); err != nil {
		t.Fatalf("解析时长失败: %v", err)
	}
	if time.Duration(d) != 90*time.Second {
		t.Errorf("时长 = %v, 期望 90s", time.Duration(d))
	}

	out, err := json.Marshal(Duration(2 * time.Hour))
	if err != nil {
		t.Fatalf("序列化时长失败: %v", err)
	}
	if string(out) != `"2h0m0s"` {
		t.Errorf("序列化结果 = %s", out)
	}

	if err := json.Unmarshal([]byte(`"abc"`), &d); err == nil {
		t.Error("无效时长应当报错")
	}
}

func TestPhaseWindow(t *testing.T) {
	pc := DefaultPhases()

	pw, ok := pc.ByName("Phase 1")
	if !ok {
		t.Fatal("内置阶段 Phase 1 未找到")
	}
	start, end, err := pw.Window()
	if err != nil {
		t.Fatalf("解析阶段窗口失败: %v", err)
	}
	if start.Format(DateFormat) != "2016-01-01" || end.Format(DateFormat) != "2016-01-15" {
		t.Errorf("Phase 1 窗口 = %v..%v", start, end)
	}

	if _, ok := pc.ByName("Phase 9"); ok {
		t.Error("不存在的阶段不应命中")
	}

	bad := PhaseWindow{Name: "X", Start: "2016-02-01", End: "2016-01-01"}
	if _, _, err := bad.Window(); err == nil {
		t.Error("结束早于起始应当报错")
	}
}
