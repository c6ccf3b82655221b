package logging

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// fileHook writes every entry to w with its own formatter, so a file can
// hold JSON while the console shows text.
type fileHook struct {
	mu        sync.Mutex
	w         io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(line)
	return err
}
