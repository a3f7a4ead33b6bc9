package logging

import (
	"time"
)

// Formatter 把日志条目编排成一行完整输出（含换行）。
type Formatter interface {
	Format(entry *LogEntry) ([]byte, error)
}

// LogEntry 日志条目。
type LogEntry struct {
	Time     time.Time
	Level    LogLevel
	Category string
	Message  string
	Fields   []Field
}
