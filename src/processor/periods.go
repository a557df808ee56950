// periods.go
package processor

import (
	"fmt"
	"time"
)

// Period 观测相对限行阶段的时段标签
type Period string

const (
	PeriodBefore  Period = "Before"  // 限行前同等长度的窗口
	PeriodDuring  Period = "During"  // 限行期间
	PeriodAfter   Period = "After"   // 限行后同等长度的窗口
	PeriodControl Period = "Control" // 上一年同期
	PeriodOutside Period = "Outside" // 研究窗口之外
)

// ComparePeriods 表格与图表中时段的固定顺序
var ComparePeriods = []Period{PeriodBefore, PeriodDuring, PeriodAfter, PeriodControl}

// Phase 一个限行阶段, Start/End 为日期零点, 两端日期均含
type Phase struct {
	Name  string
	Start time.Time
	End   time.Time
}

const dateLayout = "2006-01-02"

// NewPhase 由日期字符串构造阶段
func NewPhase(name, start, end string) (Phase, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return Phase{}, fmt.Errorf("阶段 %s 起始日期无效: %w", name, err)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return Phase{}, fmt.Errorf("阶段 %s 结束日期无效: %w", name, err)
	}
	if e.Before(s) {
		return Phase{}, fmt.Errorf("阶段 %s 结束日期早于起始日期", name)
	}
	return Phase{Name: name, Start: s, End: e}, nil
}

// span 阶段首日零点到末日零点的间隔
func (ph Phase) span() time.Duration {
	return ph.End.Sub(ph.Start)
}

// Classify 判定时刻 t 相对阶段 ph 的时段
// 纯函数: 同一时刻同一阶段永远得到同一标签
//
//	During:  [Start, End] 整天
//	Before:  紧邻限行前的同等长度窗口 [Start-span-1天, Start)
//	After:   紧邻限行后的同等长度窗口 (End整天, End+span+1天]
//	Control: 上一年日历同期
func Classify(t time.Time, ph Phase) Period {
	span := ph.span()
	endNext := ph.End.AddDate(0, 0, 1)

	if !t.Before(ph.Start) && t.Before(endNext) {
		return PeriodDuring
	}

	beforeStart := ph.Start.Add(-span).AddDate(0, 0, -1)
	if !t.Before(beforeStart) && t.Before(ph.Start) {
		return PeriodBefore
	}

	afterEnd := endNext.Add(span).AddDate(0, 0, 1)
	if !t.Before(endNext) && t.Before(afterEnd) {
		return PeriodAfter
	}

	ctrlStart := ph.Start.AddDate(-1, 0, 0)
	ctrlEndNext := endNext.AddDate(-1, 0, 0)
	if !t.Before(ctrlStart) && t.Before(ctrlEndNext) {
		return PeriodControl
	}

	return PeriodOutside
}

// StudyWindow 阶段对应的连续研究窗口(Before 起点到 After 终点)
// 返回的两个日期两端均含, 对 Phase 1 即 2015-12-17 至 2016-01-30
func StudyWindow(ph Phase) (time.Time, time.Time) {
	span := ph.span()
	start := ph.Start.Add(-span).AddDate(0, 0, -1)
	end := ph.End.Add(span).AddDate(0, 0, 1)
	return start, end
}

// ControlWindow 上一年同期窗口, 两端均含
func ControlWindow(ph Phase) (time.Time, time.Time) {
	return ph.Start.AddDate(-1, 0, 0), ph.End.AddDate(-1, 0, 0)
}
