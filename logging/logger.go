package logging

import (
	"os"
	"sync"
)

// Field 结构化日志字段。
type Field struct {
	Key   string
	Value any
}

// Logger 分类日志接口。Fatal 在输出后终止进程。
type Logger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	Log(level LogLevel, msg string, fields ...Field)
	WithFields(fields ...Field) Logger
	WithCategory(category string) Logger
}

// LoggerFactory 按类别派生 Logger，统一管理提供者与最小级别。
type LoggerFactory interface {
	CreateLogger(category string) Logger
	AddProvider(provider LoggerProvider)
	SetMinimumLevel(level LogLevel)
}

// LoggerProvider 单一输出目标（控制台、文件等）的 Logger 来源。
type LoggerProvider interface {
	CreateLogger(category string) Logger
	SetMinimumLevel(level LogLevel)
}

type loggerFactory struct {
	mu           sync.RWMutex
	providers    []LoggerProvider
	minimumLevel LogLevel
}

func (f *loggerFactory) CreateLogger(category string) Logger {
	f.mu.RLock()
	defer f.mu.RUnlock()
	targets := make([]Logger, len(f.providers))
	for i, p := range f.providers {
		targets[i] = p.CreateLogger(category)
	}
	return &fanoutLogger{
		targets:      targets,
		minimumLevel: f.minimumLevel,
		category:     category,
	}
}

func (f *loggerFactory) AddProvider(provider LoggerProvider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	provider.SetMinimumLevel(f.minimumLevel)
	f.providers = append(f.providers, provider)
}

func (f *loggerFactory) SetMinimumLevel(level LogLevel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.minimumLevel = level
	for _, p := range f.providers {
		p.SetMinimumLevel(level)
	}
}

// fanoutLogger 把一条日志分发给所有提供者的 Logger。
type fanoutLogger struct {
	targets      []Logger
	minimumLevel LogLevel
	category     string
	fields       []Field
}

func (l *fanoutLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *fanoutLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *fanoutLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *fanoutLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *fanoutLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }

func (l *fanoutLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	os.Exit(1)
}

func (l *fanoutLogger) Log(level LogLevel, msg string, fields ...Field) {
	if level < l.minimumLevel {
		return
	}
	merged := mergeFields(l.fields, fields)
	for _, target := range l.targets {
		target.Log(level, msg, merged...)
	}
}

func (l *fanoutLogger) WithFields(fields ...Field) Logger {
	clone := *l
	clone.fields = mergeFields(l.fields, fields)
	return &clone
}

func (l *fanoutLogger) WithCategory(category string) Logger {
	targets := make([]Logger, len(l.targets))
	for i, target := range l.targets {
		targets[i] = target.WithCategory(category)
	}
	return &fanoutLogger{
		targets:      targets,
		minimumLevel: l.minimumLevel,
		category:     category,
		fields:       l.fields,
	}
}

// mergeFields 合并基础字段与调用字段。
// 始终返回新切片，派生 Logger 之间不共享底层数组。
func mergeFields(base, extra []Field) []Field {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make([]Field, 0, len(base)+len(extra))
	merged = append(merged, base...)
	return append(merged, extra...)
}
