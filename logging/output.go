package logging

import (
	"io"
	"os"
	"sync"
)

// outputSink is the console destination shared by every logger. Swapping
// its target redirects loggers that were created earlier.
type outputSink struct {
	mu     sync.RWMutex
	target io.Writer
}

var console = &outputSink{target: os.Stderr}

func (s *outputSink) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target.Write(p)
}

func (s *outputSink) current() io.Writer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

// SetGlobalOutput redirects console output of all loggers. Nil discards it.
func SetGlobalOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	console.mu.Lock()
	console.target = w
	console.mu.Unlock()
}

// GetGlobalOutput returns the shared console writer.
func GetGlobalOutput() io.Writer {
	return console
}

func writesToStderr() bool {
	return console.current() == os.Stderr
}
