package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
)

// PrettyLogger writes styled, human-facing lines for CLI commands. It
// ignores the configured log level.
type PrettyLogger struct {
	writer  io.Writer
	profile termenv.Profile
}

// NewPrettyLogger writes to stderr, colored when stderr supports it.
func NewPrettyLogger() *PrettyLogger {
	return &PrettyLogger{
		writer:  os.Stderr,
		profile: termenv.NewOutput(os.Stderr).EnvColorProfile(),
	}
}

// WithWriter redirects output to w, uncolored.
func (p *PrettyLogger) WithWriter(w io.Writer) *PrettyLogger {
	p.writer = w
	p.profile = termenv.Ascii
	return p
}

// ANSI palette indexes.
const (
	colorMuted   = "8"
	colorError   = "9"
	colorSuccess = "10"
	colorWarn    = "11"
	colorValue   = "14"
	colorPath    = "6"
)

func (p *PrettyLogger) paint(s, color string) termenv.Style {
	return p.profile.String(s).Foreground(p.profile.Color(color))
}

func (p *PrettyLogger) mark(symbol, color, message string) {
	fmt.Fprintf(p.writer, "%s %s\n", p.paint(symbol, color).Bold(), p.paint(message, color))
}

// Success prints a checkmarked message.
func (p *PrettyLogger) Success(message string) {
	p.mark("✓", colorSuccess, message)
}

// WarnPretty prints a warning line.
func (p *PrettyLogger) WarnPretty(message string) {
	p.mark("⚠", colorWarn, message)
}

// ErrorPretty prints a failure line, with err appended when non-nil.
func (p *PrettyLogger) ErrorPretty(message string, err error) {
	if err != nil {
		message += ": " + err.Error()
	}
	p.mark("✗", colorError, message)
}

// Field prints "key: value".
func (p *PrettyLogger) Field(key string, value interface{}) {
	fmt.Fprintf(p.writer, "%s: %s\n", p.paint(key, colorMuted), p.paint(fmt.Sprint(value), colorValue).Bold())
}

// Path prints "label: path".
func (p *PrettyLogger) Path(label, path string) {
	fmt.Fprintf(p.writer, "%s: %s\n", p.paint(label, colorMuted), p.paint(path, colorPath).Italic())
}
