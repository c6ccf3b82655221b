package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/grovetools/pulse/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a message and a hint for err, then returns err unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	t := DefaultTheme
	var pe *errors.PulseError
	stderrors.As(err, &pe)
	detail := func(key string) interface{} {
		if pe == nil {
			return nil
		}
		return pe.Details[key]
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeDaemonNotRunning:
		fmt.Fprintf(h.Out, "%s pulse daemon is not running\n", t.Error.Render("Error:"))
		if socket := detail("socket"); socket != nil {
			fmt.Fprintln(h.Out, t.Muted.Render(fmt.Sprintf("No daemon is listening on %v.", socket)))
		}
		fmt.Fprintln(h.Out, "Start it with 'pulse daemon start'.")

	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "%s configuration not found\n", t.Error.Render("Error:"))
		fmt.Fprintln(h.Out, "Create pulse.yml or pass --config. Run 'pulse config schema' for the format.")

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "%s %v\n", t.Error.Render("Error:"), err)
		fmt.Fprintln(h.Out, "Check pulse.yml against 'pulse config schema'.")

	case errors.ErrCodeCodeNotFound, errors.ErrCodeInvalidCode:
		fmt.Fprintf(h.Out, "%s code '%v' is not known\n", t.Error.Render("Error:"), detail("code"))
		fmt.Fprintln(h.Out, "Run 'pulse codes' to list assigned codes.")

	case errors.ErrCodeInvalidSection:
		fmt.Fprintf(h.Out, "%s %v\n", t.Error.Render("Error:"), err)
		fmt.Fprintln(h.Out, "Item sections are calendar, priorities and commitments.")

	default:
		fmt.Fprintf(h.Out, "%s %v\n", t.Error.Render("Error:"), err)
	}

	if h.Verbose && pe != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", pe.ToJSON())
	}
	return err
}
