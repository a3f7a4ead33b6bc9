package logging

import "fmt"

// TextFormatter 单行文本格式："时间 级别 [类别] 消息 {k=v, ...}"。
type TextFormatter struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
}

func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		IncludeTimestamp: true,
		TimestampFormat:  defaultTimestampFormat,
	}
}

func (f *TextFormatter) Format(entry *LogEntry) ([]byte, error) {
	buf := GlobalBufferPool.Get()
	defer GlobalBufferPool.Put(buf)

	if f.IncludeTimestamp {
		format := f.TimestampFormat
		if format == "" {
			format = defaultTimestampFormat
		}
		buf.WriteString(entry.Time.Format(format))
		buf.WriteByte(' ')
	}

	if f.ColorOutput {
		buf.WriteString(colorize(entry.Level, entry.Level.String()))
	} else {
		buf.WriteString(entry.Level.String())
	}

	if entry.Category != "" {
		buf.WriteString(" [")
		buf.WriteString(entry.Category)
		buf.WriteByte(']')
	}

	buf.WriteByte(' ')
	buf.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		buf.WriteString(" {")
		for i, field := range entry.Fields {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(field.Key)
			buf.WriteByte('=')
			fmt.Fprintf(buf, "%v", field.Value)
		}
		buf.WriteByte('}')
	}

	buf.WriteByte('\n')

	// 条目可能被异步消费，结果须脱离池化 buffer
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// colorize 按级别给文本加 ANSI 颜色。
func colorize(level LogLevel, text string) string {
	const reset = "\033[0m"
	var color string
	switch level {
	case LogLevelTrace:
		color = "\033[90m" // 灰
	case LogLevelDebug:
		color = "\033[36m" // 青
	case LogLevelInfo:
		color = "\033[32m" // 绿
	case LogLevelWarn:
		color = "\033[33m" // 黄
	case LogLevelError:
		color = "\033[31m" // 红
	case LogLevelFatal:
		color = "\033[35m" // 品红
	default:
		return text
	}
	return color + text + reset
}
