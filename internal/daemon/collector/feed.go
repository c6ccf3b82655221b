package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"path/filepath"
	"strings"

	"github.com/hpcloud/tail"
	"github.com/sirupsen/logrus"
)

// FeedCollector follows an append-only JSON Lines file. Every line is one
// batch: {"section": "...", "items": [...]}.
type FeedCollector struct {
	path   string
	logger *logrus.Entry
}

// NewFeedCollector creates a collector for the feed at path. The file does
// not need to exist yet.
func NewFeedCollector(path string, logger *logrus.Entry) *FeedCollector {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &FeedCollector{path: path, logger: logger}
}

// Name returns the collector's name.
func (c *FeedCollector) Name() string { return "feed" }

// Run replays the feed from the start, then follows appends.
func (c *FeedCollector) Run(ctx context.Context, updates chan<- Batch) error {
	t, err := tail.TailFile(c.path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return fmt.Errorf("tail feed %s: %w", c.path, err)
	}
	defer t.Cleanup()
	defer t.Stop()

	lineNo := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			lineNo++
			if line.Err != nil {
				c.logger.WithError(line.Err).Warn("Feed read error")
				continue
			}
			text := strings.TrimSpace(line.Text)
			if text == "" || strings.HasPrefix(text, "#") {
				continue
			}
			source := fmt.Sprintf("feed:%s:%d", filepath.Base(c.path), lineNo)
			b, err := ParseFeedLine(text, source)
			if err != nil {
				c.logger.WithError(err).WithField("line", lineNo).Warn("Rejected feed line")
				b = Batch{Source: source, Err: err}
			}
			if !send(ctx, updates, b) {
				return nil
			}
		}
	}
}

// ParseFeedLine decodes and validates one JSON batch.
func ParseFeedLine(text, source string) (Batch, error) {
	var doc interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return Batch{}, fmt.Errorf("invalid JSON: %w", err)
	}
	req, err := BatchFromDocument(doc, "")
	if err != nil {
		return Batch{}, err
	}
	return ToBatch(req, source)
}
