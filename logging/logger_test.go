package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// lockedBuffer 线程安全的测试输出
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(out io.Writer, level LogLevel) Logger {
	factory := NewLoggingBuilder().
		SetMinimumLevel(level).
		AddConsole(ConsoleLoggerOptions{Output: out}).
		Build()
	return factory.CreateLogger("Test")
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace":   LogLevelTrace,
		"DEBUG":   LogLevelDebug,
		" info ":  LogLevelInfo,
		"Warning": LogLevelWarn,
		"error":   LogLevelError,
		"FATAL":   LogLevelFatal,
		"bogus":   LogLevelInfo,
	}
	for name, expected := range cases {
		if got := ParseLogLevel(name); got != expected {
			t.Errorf("ParseLogLevel(%q) = %v, expected %v", name, got, expected)
		}
	}
}

func TestMinimumLevelFiltering(t *testing.T) {
	out := &lockedBuffer{}
	logger := newTestLogger(out, LogLevelWarn)

	logger.Info("should be dropped")
	logger.Warn("should be written")

	output := out.String()
	if strings.Contains(output, "should be dropped") {
		t.Error("Info entry should be filtered below minimum level")
	}
	if !strings.Contains(output, "should be written") {
		t.Error("Warn entry should pass minimum level")
	}
}

func TestWithFieldsDerivation(t *testing.T) {
	out := &lockedBuffer{}
	logger := newTestLogger(out, LogLevelInfo)

	base := logger.WithFields(Field{Key: "app", Value: "beans"})
	first := base.WithFields(Field{Key: "step", Value: 1})
	second := base.WithFields(Field{Key: "step", Value: 2})

	first.Info("first")
	second.Info("second")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "app=beans") || !strings.Contains(lines[0], "step=1") {
		t.Errorf("First line missing fields: %s", lines[0])
	}
	// 派生 Logger 不得互相污染字段
	if !strings.Contains(lines[1], "step=2") || strings.Contains(lines[1], "step=1") {
		t.Errorf("Second line has wrong fields: %s", lines[1])
	}
}

func TestWithCategoryPropagates(t *testing.T) {
	out := &lockedBuffer{}
	logger := newTestLogger(out, LogLevelInfo)

	logger.WithCategory("Renamed").Info("hello")

	if !strings.Contains(out.String(), "[Renamed]") {
		t.Errorf("Expected category [Renamed] in output: %s", out.String())
	}
}

func TestTextFormatter(t *testing.T) {
	f := NewTextFormatter()
	entry := &LogEntry{
		Time:     time.Now(),
		Level:    LogLevelInfo,
		Category: "Test",
		Message:  "Hello",
		Fields:   []Field{{Key: "key", Value: "val"}},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	line := string(out)
	for _, want := range []string{"INFO", "[Test]", "Hello", "key=val"} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected %q in output: %s", want, line)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("Text output should end with newline")
	}
}

func TestJsonFormatter(t *testing.T) {
	f := NewJsonFormatter()
	entry := &LogEntry{
		Time:     time.Now(),
		Level:    LogLevelInfo,
		Category: "Test",
		Message:  "Hello",
		Fields:   []Field{{Key: "key", Value: "val"}},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !strings.HasSuffix(string(out), "\n") {
		t.Error("JSON output should end with newline")
	}

	var record map[string]any
	if err := json.Unmarshal(out, &record); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if record["level"] != "INFO" || record["category"] != "Test" || record["msg"] != "Hello" {
		t.Errorf("Unexpected record: %v", record)
	}
	fields, ok := record["fields"].(map[string]any)
	if !ok || fields["key"] != "val" {
		t.Errorf("Expected fields.key=val, got %v", record["fields"])
	}
}

func TestAsyncWriterFlushOnClose(t *testing.T) {
	out := &lockedBuffer{}
	writer := NewAsyncWriter(out, NewTextFormatter(), 10)

	for i := 0; i < 5; i++ {
		writer.WriteLog(&LogEntry{Time: time.Now(), Level: LogLevelInfo, Message: "Async"})
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	// Close 幂等
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 {
		t.Errorf("Expected 5 lines after close, got %d", len(lines))
	}
}

func TestFileProviderBuffered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	provider := NewFileLoggerProvider(FileLoggerOptions{Path: path, BufferSize: 16})

	logger := provider.CreateLogger("File")
	logger.Info("buffered entry", Field{Key: "n", Value: 1})

	if err := provider.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "buffered entry") || !strings.Contains(content, "n=1") {
		t.Errorf("Unexpected file content: %s", content)
	}
}

func BenchmarkAsyncLogging(b *testing.B) {
	writer := NewAsyncWriter(io.Discard, NewTextFormatter(), 10000)
	defer writer.Close()

	entry := &LogEntry{Time: time.Now(), Level: LogLevelInfo, Message: "Benchmark"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		writer.WriteLog(entry)
	}
}
