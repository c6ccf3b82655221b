package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/pulse/config"
	"github.com/grovetools/pulse/pkg/paths"
	"github.com/grovetools/pulse/util/pathutil"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	override  *Config
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()
	apply(logger, component, currentConfig())

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// Configure replaces the logging configuration read from pulse.yml and
// re-applies it to every logger created so far. The daemon calls this after
// loading its config, and again on reload.
func Configure(cfg Config) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	override = &cfg
	for component, entry := range loggers {
		apply(entry.Logger, component, cfg)
	}
}

// Reset drops cached loggers and any Configure override.
func Reset() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	loggers = make(map[string]*logrus.Entry)
	override = nil
}

// FromConfig extracts the logging section of a loaded configuration.
func FromConfig(cfg *config.Config) (Config, error) {
	var logCfg Config
	if cfg == nil {
		return logCfg, nil
	}
	err := cfg.UnmarshalExtension("logging", &logCfg)
	return logCfg, err
}

func currentConfig() Config {
	if override != nil {
		return *override
	}
	cfg, err := config.LoadDefault()
	if err != nil {
		return Config{}
	}
	logCfg, err := FromConfig(cfg)
	if err != nil {
		logrus.Warnf("Failed to parse 'logging' config: %v", err)
	}
	return logCfg
}

func apply(logger *logrus.Logger, component string, logCfg Config) {
	// Configure Level
	levelStr := "info"
	if os.Getenv("PULSE_LOG_LEVEL") != "" {
		levelStr = os.Getenv("PULSE_LOG_LEVEL")
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetReportCaller(os.Getenv("PULSE_LOG_CALLER") == "true" || logCfg.ReportCaller)

	interactive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	colors := interactive && writesToStderr()

	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}, Colors: colors})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format, Colors: colors})
	}

	var writers []io.Writer
	logger.ReplaceHooks(make(logrus.LevelHooks))

	if logCfg.File.Enabled {
		logFilePath := logCfg.File.Path
		if logFilePath == "" {
			logFilePath = filepath.Join(paths.LogDir(),
				fmt.Sprintf("%s-%s.log", component, time.Now().Format("2006-01-02")))
		}
		if expanded, err := pathutil.Expand(logFilePath); err == nil {
			logFilePath = expanded
		}
		if file, err := openLogFile(logFilePath); err == nil {
			if logCfg.File.Format == "json" {
				logger.AddHook(&fileHook{w: file, formatter: &logrus.JSONFormatter{}})
			} else {
				writers = append(writers, file)
			}
		} else {
			fmt.Fprintf(os.Stderr, "pulse: failed to open log file %s: %v\n", logFilePath, err)
		}
	}

	stderrMode := "auto"
	if logCfg.Format.StructuredToStderr != "" {
		stderrMode = logCfg.Format.StructuredToStderr
	}

	shouldLogToStderr := false
	switch stderrMode {
	case "always":
		shouldLogToStderr = true
	case "never":
		shouldLogToStderr = false
	default:
		// Interactive CLI use stays quiet unless debugging; daemons and
		// piped output always log.
		isDebug := os.Getenv("PULSE_DEBUG") == "1" || logger.GetLevel() >= logrus.DebugLevel
		shouldLogToStderr = isDebug || !interactive
	}

	if shouldLogToStderr {
		writers = append(writers, GetGlobalOutput())
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}
}

var (
	openFiles   = make(map[string]*os.File)
	openFilesMu sync.Mutex
)

// openLogFile shares one handle per path across components.
func openLogFile(path string) (*os.File, error) {
	openFilesMu.Lock()
	defer openFilesMu.Unlock()

	if f, ok := openFiles[path]; ok {
		return f, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	openFiles[path] = f
	return f, nil
}
