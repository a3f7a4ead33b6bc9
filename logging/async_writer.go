package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncWriter 异步 sink：条目经缓冲通道由单个协程格式化写出。
// 缓冲满时 WriteLog 阻塞而不丢日志。Close 幂等，刷空队列后返回。
type AsyncWriter struct {
	out        io.Writer
	formatter  Formatter
	entryCh    chan *LogEntry
	done       chan struct{}
	closeOnce  sync.Once
	errHandler func(error)
}

func NewAsyncWriter(out io.Writer, formatter Formatter, bufferSize int) *AsyncWriter {
	w := &AsyncWriter{
		out:       out,
		formatter: formatter,
		entryCh:   make(chan *LogEntry, bufferSize),
		done:      make(chan struct{}),
	}
	go w.drain()
	return w
}

// WriteLog 入队一条日志。Close 之后不得再调用。
func (w *AsyncWriter) WriteLog(entry *LogEntry) {
	w.entryCh <- entry
}

// SetErrorHandler 设置格式化/写入错误的处理函数，缺省写 stderr。
func (w *AsyncWriter) SetErrorHandler(handler func(error)) {
	w.errHandler = handler
}

// Close 停止接收并等待队列写完。
func (w *AsyncWriter) Close() error {
	w.closeOnce.Do(func() {
		close(w.entryCh)
	})
	<-w.done
	return nil
}

func (w *AsyncWriter) drain() {
	defer close(w.done)
	for entry := range w.entryCh {
		data, err := w.formatter.Format(entry)
		if err != nil {
			w.report(err)
			continue
		}
		if _, err := w.out.Write(data); err != nil {
			w.report(err)
		}
	}
}

func (w *AsyncWriter) report(err error) {
	if w.errHandler != nil {
		w.errHandler(err)
		return
	}
	fmt.Fprintf(os.Stderr, "logging: async writer: %v\n", err)
}
