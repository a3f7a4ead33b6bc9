package logging

import "encoding/json"

// JsonFormatter 单行 JSON 格式，便于日志采集系统消费。
type JsonFormatter struct {
	TimestampFormat string
}

func NewJsonFormatter() *JsonFormatter {
	return &JsonFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

func (f *JsonFormatter) Format(entry *LogEntry) ([]byte, error) {
	record := map[string]any{
		"time":  entry.Time.Format(f.TimestampFormat),
		"level": entry.Level.String(),
		"msg":   entry.Message,
	}
	if entry.Category != "" {
		record["category"] = entry.Category
	}
	if len(entry.Fields) > 0 {
		fields := make(map[string]any, len(entry.Fields))
		for _, field := range entry.Fields {
			fields[field.Key] = field.Value
		}
		record["fields"] = fields
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
