package storage

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"OddEvenImpact/src/config"

	"github.com/sirupsen/logrus"
)

// LogLevel 定义日志级别类型
type LogLevel int

// 日志级别常量定义
const (
	DEBUG   LogLevel = iota // 调试信息
	INFO                    // 普通信息
	WARNING                 // 警告信息
	ERROR                   // 错误信息
	FATAL                   // 致命错误
)

// Logger 日志记录器, 同时写入日志文件和标准输出
type Logger struct {
	filename string
	file     *os.File
	mu       sync.Mutex
	log      *logrus.Logger
}

// NewLogger 创建新的日志记录器
// 参数:
//
//	filename: 日志文件路径
//
// 返回值:
//
//	*Logger: 日志记录器实例
//	error: 创建过程中的错误
func NewLogger(filename string) (*Logger, error) {
	// 打开或创建日志文件，权限设置为0644
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	lg := logrus.New()
	lg.SetOutput(io.MultiWriter(file, os.Stdout))
	lg.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &Logger{
		filename: filename,
		file:     file,
		log:      lg,
	}, nil
}

// SetLevel 设置日志级别, 接受 logrus 的级别名称 (debug/info/warning/error)
func (l *Logger) SetLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("无效的日志级别 %q: %w", level, err)
	}
	l.log.SetLevel(parsed)
	return nil
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Log 记录日志方法
// 参数:
//
//	level: 日志级别
//	message: 日志消息内容
func (l *Logger) Log(level LogLevel, message string) {
	l.log.Log(level.toLogrus(), message)
}

// CheckRotate 日志文件超过配置的大小上限时轮转
func (l *Logger) CheckRotate(cfg *config.Config) error {
	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("读取日志文件信息失败: %w", err)
	}

	if info.Size() > eval(cfg.LogMaxSize) {
		return l.rotateLog()
	}
	return nil
}

// Rotate 立即轮转日志, 供 SIGHUP 处理使用
func (l *Logger) Rotate() error {
	return l.rotateLog()
}

func (l *Logger) rotateLog() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
		// app.log -> app.20060102150405.log
		base := strings.TrimSuffix(l.filename, ".log")
		rotated := fmt.Sprintf("%s.%s.log", base, time.Now().Format("20060102150405"))
		if err := os.Rename(l.filename, rotated); err != nil {
			return fmt.Errorf("轮转日志文件失败: %w", err)
		}
	}

	file, err := os.OpenFile(l.filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("重建日志文件失败: %w", err)
	}
	l.file = file
	l.log.SetOutput(io.MultiWriter(file, os.Stdout))
	return nil
}

// String 实现LogLevel的String方法
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) toLogrus() logrus.Level {
	switch l {
	case DEBUG:
		return logrus.DebugLevel
	case WARNING:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	case FATAL:
		// 注意: 这里只记录不退出, 是否退出由调用方决定
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// eval 解析形如 "10 * 1024 * 1024" 的大小表达式
func eval(expr string) int64 {
	parts := strings.Split(expr, " * ")
	var result int64 = 1
	for _, part := range parts {
		num, _ := strconv.Atoi(part)
		result *= int64(num)
	}
	return result
}

// 以下是快捷日志方法
func (l *Logger) Debug(msg string)   { l.Log(DEBUG, msg) }   // 记录调试信息
func (l *Logger) Info(msg string)    { l.Log(INFO, msg) }    // 记录普通信息
func (l *Logger) Warning(msg string) { l.Log(WARNING, msg) } // 记录警告信息
func (l *Logger) Error(msg string)   { l.Log(ERROR, msg) }   // 记录错误信息
func (l *Logger) Fatal(msg string)   { l.Log(FATAL, msg) }   // 记录致命错误
