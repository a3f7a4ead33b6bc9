package logging

import (
	"io"
	"os"
	"sync"
)

// ConsoleLoggerOptions 控制台输出选项。
type ConsoleLoggerOptions struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
	Output           io.Writer
}

// ConsoleLoggerProvider 把日志同步写到终端。
type ConsoleLoggerProvider struct {
	mu           sync.RWMutex
	sink         *writerSink
	minimumLevel LogLevel
}

func NewConsoleLoggerProvider(options ConsoleLoggerOptions) *ConsoleLoggerProvider {
	out := options.Output
	if out == nil {
		out = os.Stdout
	}
	formatter := &TextFormatter{
		IncludeTimestamp: options.IncludeTimestamp,
		TimestampFormat:  options.TimestampFormat,
		ColorOutput:      options.ColorOutput,
	}
	return &ConsoleLoggerProvider{
		sink:         newWriterSink(out, formatter),
		minimumLevel: LogLevelInfo,
	}
}

func (p *ConsoleLoggerProvider) CreateLogger(category string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &sinkLogger{
		category:     category,
		minimumLevel: p.minimumLevel,
		sink:         p.sink,
	}
}

func (p *ConsoleLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minimumLevel = level
}
