package logging

import (
	"io"
	"os"
	"sync"
	"time"
)

// LogSink 接收待输出的日志条目。
type LogSink interface {
	WriteLog(entry *LogEntry)
}

// writerSink 同步 sink：格式化后在锁内写出，保证整行原子。
type writerSink struct {
	mu        sync.Mutex
	out       io.Writer
	formatter Formatter
}

func newWriterSink(out io.Writer, formatter Formatter) *writerSink {
	return &writerSink{out: out, formatter: formatter}
}

func (s *writerSink) WriteLog(entry *LogEntry) {
	data, err := s.formatter.Format(entry)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.Write(data)
}

// sinkLogger 把 Logger 调用转成 LogEntry 交给 sink。
// 控制台与文件提供者共用这一实现，只在 sink 与 Formatter 上分化。
type sinkLogger struct {
	category     string
	fields       []Field
	minimumLevel LogLevel
	sink         LogSink
}

func (l *sinkLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *sinkLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *sinkLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *sinkLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *sinkLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }

func (l *sinkLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	os.Exit(1)
}

func (l *sinkLogger) Log(level LogLevel, msg string, fields ...Field) {
	if level < l.minimumLevel {
		return
	}
	l.sink.WriteLog(&LogEntry{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   mergeFields(l.fields, fields),
	})
}

func (l *sinkLogger) WithFields(fields ...Field) Logger {
	clone := *l
	clone.fields = mergeFields(l.fields, fields)
	return &clone
}

func (l *sinkLogger) WithCategory(category string) Logger {
	clone := *l
	clone.category = category
	return &clone
}
