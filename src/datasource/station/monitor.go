// monitor.go
package station

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Monitor 监视数据文件所在目录, 文件被重新导出时触发回调
type Monitor struct {
	watchDir string
	target   string // 目标数据文件名, 为空时匹配所有 csv/xlsx
	watcher  *fsnotify.Watcher
	lastFile string
	lastMod  time.Time
	mu       sync.Mutex
}

// NewMonitor 创建数据文件监视器, dataPath 为被监视的数据文件
func NewMonitor(dataPath string) (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(dataPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &Monitor{
		watchDir: dir,
		target:   filepath.Base(dataPath),
		watcher:  watcher,
	}, nil
}

// Watch 阻塞监视, ctx 取消后返回
func (m *Monitor) Watch(ctx context.Context, handler func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !m.matches(event.Name) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}

			if m.shouldReload(event.Name, info.ModTime()) {
				go handler(event.Name)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// Close 停止监视
func (m *Monitor) Close() error {
	return m.watcher.Close()
}

func (m *Monitor) matches(name string) bool {
	base := filepath.Base(name)
	if m.target != "" {
		return base == m.target
	}
	ext := strings.ToLower(filepath.Ext(base))
	return ext == ".csv" || ext == ".xlsx"
}

// shouldReload 按修改时间去重, 同一次导出只触发一次
func (m *Monitor) shouldReload(name string, mod time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mod.After(m.lastMod) {
		m.lastMod = mod
		m.lastFile = name
		return true
	}
	return false
}
