package logging

import "strings"

// LogLevel 日志级别，数值越大越严重。
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// String 返回级别的大写名称。
func (l LogLevel) String() string {
	if l < LogLevelTrace || l > LogLevelFatal {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLogLevel 按名称解析级别（不区分大小写），未知名称回退 Info。
func ParseLogLevel(name string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TRACE":
		return LogLevelTrace
	case "DEBUG":
		return LogLevelDebug
	case "INFO":
		return LogLevelInfo
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	case "FATAL":
		return LogLevelFatal
	}
	return LogLevelInfo
}
