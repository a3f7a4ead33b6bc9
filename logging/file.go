package logging

import (
	"fmt"
	"os"
	"sync"
)

// FileLoggerOptions 文件输出选项。
type FileLoggerOptions struct {
	Path string
	// Json 以 JSON 行输出，默认纯文本
	Json bool
	// BufferSize 大于零时启用异步写入，条目经缓冲通道落盘
	BufferSize int
}

// FileLoggerProvider 把日志追加到文件，可选异步缓冲。
// 文件在第一次创建 Logger 时惰性打开。
type FileLoggerProvider struct {
	mu           sync.Mutex
	options      FileLoggerOptions
	minimumLevel LogLevel
	sink         LogSink
	file         *os.File
	async        *AsyncWriter
}

func NewFileLoggerProvider(options FileLoggerOptions) *FileLoggerProvider {
	return &FileLoggerProvider{
		options:      options,
		minimumLevel: LogLevelInfo,
	}
}

func (p *FileLoggerProvider) CreateLogger(category string) Logger {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sink == nil {
		if err := p.open(); err != nil {
			// 打开失败降级到 stderr，日志不中断应用
			fmt.Fprintf(os.Stderr, "logging: 打开日志文件失败: %v\n", err)
			p.sink = newWriterSink(os.Stderr, p.formatter())
		}
	}
	return &sinkLogger{
		category:     category,
		minimumLevel: p.minimumLevel,
		sink:         p.sink,
	}
}

func (p *FileLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minimumLevel = level
}

// Close 刷新异步缓冲并关闭文件。
func (p *FileLoggerProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.async != nil {
		p.async.Close()
		p.async = nil
	}
	p.sink = nil
	if p.file != nil {
		err := p.file.Close()
		p.file = nil
		return err
	}
	return nil
}

func (p *FileLoggerProvider) open() error {
	file, err := os.OpenFile(p.options.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	p.file = file
	if p.options.BufferSize > 0 {
		p.async = NewAsyncWriter(file, p.formatter(), p.options.BufferSize)
		p.sink = p.async
	} else {
		p.sink = newWriterSink(file, p.formatter())
	}
	return nil
}

func (p *FileLoggerProvider) formatter() Formatter {
	if p.options.Json {
		return NewJsonFormatter()
	}
	return NewTextFormatter()
}
