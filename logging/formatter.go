package logging

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muesli/termenv"
	"github.com/sirupsen/logrus"
)

// TextFormatter is a custom logrus formatter.
type TextFormatter struct {
	Config FormatConfig
	// Colors enables ANSI styling of the level and component.
	Colors bool
}

func (f *TextFormatter) profile() termenv.Profile {
	if f.Colors {
		return termenv.ANSI
	}
	return termenv.Ascii
}

// Format renders a single log entry.
func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	p := f.profile()

	if !f.Config.DisableTimestamp {
		b.WriteString(entry.Time.Format("2006-01-02 15:04:05"))
		b.WriteString(" ")
	}

	levelStr := entry.Level.String()
	if levelStr == "warning" {
		levelStr = "warn"
	}
	level := fmt.Sprintf("[%s]", strings.ToUpper(levelStr))
	b.WriteString(p.String(level).Foreground(p.Color(levelColor(entry.Level))).String())

	if component, ok := entry.Data["component"]; ok && !f.Config.DisableComponent {
		componentStr := fmt.Sprintf("%v", component)
		b.WriteString(fmt.Sprintf(" [%s]", p.String(componentStr).Foreground(p.Color("12")).String()))
	}

	if entry.HasCaller() {
		fileName := filepath.Base(entry.Caller.File)
		funcName := filepath.Base(entry.Caller.Function)
		b.WriteString(fmt.Sprintf(" [%s:%d %s]", fileName, entry.Caller.Line, funcName))
	}

	b.WriteString(" ")
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		if key != "component" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.WriteString(fmt.Sprintf(" %s=%v", p.String(key).Faint().String(), entry.Data[key]))
	}

	b.WriteString("\n")
	return []byte(b.String()), nil
}

func levelColor(l logrus.Level) string {
	switch l {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return "9"
	case logrus.WarnLevel:
		return "11"
	case logrus.DebugLevel, logrus.TraceLevel:
		return "8"
	default:
		return "10"
	}
}
