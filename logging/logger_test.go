package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/grovetools/pulse/config"
	"github.com/sirupsen/logrus"
)

// quiet isolates a test from pulse.yml files and the real state directory.
func quiet(t *testing.T) *bytes.Buffer {
	t.Helper()
	t.Setenv("PULSE_HOME", t.TempDir())
	t.Setenv("PULSE_LOG_LEVEL", "")
	Reset()
	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	t.Cleanup(func() {
		Reset()
		SetGlobalOutput(os.Stderr)
	})
	return &buf
}

func TestNewLogger(t *testing.T) {
	quiet(t)
	Configure(Config{})

	logger := NewLogger("test-component")
	if logger == nil {
		t.Fatal("Expected logger to be created")
	}
	if logger.Data["component"] != "test-component" {
		t.Errorf("Expected component to be 'test-component', got %v", logger.Data["component"])
	}
	if again := NewLogger("test-component"); again != logger {
		t.Error("Expected the cached logger for the same component")
	}
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{}})

	entry := logger.WithField("component", "test")
	entry.Info("Test message")

	output := buf.String()
	for _, want := range []string{"[INFO]", "[test]", "Test message"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q, got: %s", want, output)
		}
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string
		notWant []string
	}{
		{
			name:   "default format",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "test message",
				Data: logrus.Fields{
					"component": "test-component",
					"key1":      "value1",
				},
			},
			want: []string{"[INFO]", "[test-component]", "test message", "key1=value1"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "warning message",
				Data: logrus.Fields{
					"component": "test-component",
				},
			},
			want:    []string{"[WARN]", "warning message"},
			notWant: []string{"[test-component]"},
		},
		{
			name:   "caller information with function name",
			config: FormatConfig{},
			entry: func() *logrus.Entry {
				logger := logrus.New()
				logger.SetReportCaller(true)
				return &logrus.Entry{
					Logger:  logger,
					Level:   logrus.InfoLevel,
					Message: "test message with caller",
					Data: logrus.Fields{
						"component": "test-component",
					},
					Caller: &runtime.Frame{
						File:     "/path/to/file.go",
						Line:     42,
						Function: "github.com/example/package.TestFunction",
					},
				}
			}(),
			want: []string{"[file.go:42 package.TestFunction]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TextFormatter{Config: tt.config}
			output, err := formatter.Format(tt.entry)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			outputStr := string(output)
			for _, want := range tt.want {
				if !strings.Contains(outputStr, want) {
					t.Errorf("Expected output to contain '%s', got: %s", want, outputStr)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(outputStr, notWant) {
					t.Errorf("Expected output NOT to contain '%s', got: %s", notWant, outputStr)
				}
			}
		})
	}
}

func TestTextFormatterSortsFields(t *testing.T) {
	formatter := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	output, err := formatter.Format(&logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "published",
		Data:    logrus.Fields{"version": 3, "subscribers": 2, "component": "hub"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "[INFO] [hub] published subscribers=2 version=3\n"
	if string(output) != want {
		t.Errorf("Expected %q, got %q", want, string(output))
	}
}

func TestLogLevels(t *testing.T) {
	buf := quiet(t)
	Configure(Config{Level: "warn", Format: FormatConfig{StructuredToStderr: "always", DisableTimestamp: true}})

	logger := NewLogger("levels")
	logger.Info("hidden")
	logger.Warn("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("Info should be filtered at warn level, got: %s", output)
	}
	if !strings.Contains(output, "[WARN] [levels] shown") {
		t.Errorf("Expected warning in output, got: %s", output)
	}
}

func TestEnvironmentVariables(t *testing.T) {
	quiet(t)
	t.Setenv("PULSE_LOG_LEVEL", "debug")
	t.Setenv("PULSE_LOG_CALLER", "true")
	Configure(Config{Level: "error"})

	logger := NewLogger("env")
	if logger.Logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected PULSE_LOG_LEVEL to win, got %s", logger.Logger.GetLevel())
	}
	if !logger.Logger.ReportCaller {
		t.Error("Expected PULSE_LOG_CALLER to enable caller reporting")
	}
}

func TestConfigureUpdatesExistingLoggers(t *testing.T) {
	quiet(t)
	Configure(Config{Level: "info"})

	logger := NewLogger("reconfigured")
	if logger.Logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("Expected info, got %s", logger.Logger.GetLevel())
	}

	Configure(Config{Level: "debug", Format: FormatConfig{Preset: "json"}})
	if logger.Logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug after Configure, got %s", logger.Logger.GetLevel())
	}
	if _, ok := logger.Logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("Expected JSON formatter, got %T", logger.Logger.Formatter)
	}
}

func TestStderrNever(t *testing.T) {
	buf := quiet(t)
	Configure(Config{Level: "debug", Format: FormatConfig{StructuredToStderr: "never"}})

	NewLogger("silent").Error("nobody hears this")
	if buf.Len() != 0 {
		t.Errorf("Expected no stderr output, got: %s", buf.String())
	}
}

func TestFileSink(t *testing.T) {
	quiet(t)
	path := filepath.Join(t.TempDir(), "logs", "pulsed.log")
	Configure(Config{
		File:   FileSinkConfig{Enabled: true, Path: path, Format: "json"},
		Format: FormatConfig{StructuredToStderr: "never"},
	})

	NewLogger("file").WithField("version", 7).Info("snapshot published")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file to exist: %v", err)
	}
	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &line); err != nil {
		t.Fatalf("Expected a JSON line, got %q: %v", data, err)
	}
	if line["msg"] != "snapshot published" || line["component"] != "file" {
		t.Errorf("Unexpected log line: %v", line)
	}
}

func TestFromConfig(t *testing.T) {
	t.Setenv("PULSE_HOME", t.TempDir())
	cfg, err := config.LoadFromBytes([]byte(`
logging:
  level: warn
  report_caller: true
  format:
    preset: simple
`), "yaml")
	if err != nil {
		t.Fatal(err)
	}

	logCfg, err := FromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if logCfg.Level != "warn" || !logCfg.ReportCaller || logCfg.Format.Preset != "simple" {
		t.Errorf("Unexpected logging config: %+v", logCfg)
	}
}

func TestPrettyLogger(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrettyLogger().WithWriter(&buf)

	p.Success("daemon started")
	p.Field("socket", "/tmp/pulsed.sock")
	p.Path("inbox", "/tmp/inbox")
	p.WarnPretty("daemon is slow")
	p.ErrorPretty("command failed", os.ErrNotExist)

	want := "✓ daemon started\nsocket: /tmp/pulsed.sock\ninbox: /tmp/inbox\n⚠ daemon is slow\n✗ command failed: file does not exist\n"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}
}
