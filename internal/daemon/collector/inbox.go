package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

// Default inbox patterns.
var (
	DefaultInboxPatterns = []string{"*.json", "*.yaml", "*.yml", "*.toml"}
	DefaultInboxIgnore   = []string{".*", "*~", "*.swp"}
)

// errEmptyFile is skipped silently; editors often create a file before
// writing it.
var errEmptyFile = errors.New("empty batch file")

// InboxConfig configures an InboxCollector.
type InboxConfig struct {
	Dir      string
	Patterns []string
	Ignore   []string
	Debounce time.Duration
}

// InboxCollector watches a directory of batch files named after the section
// they replace (priorities.yml, calendar.json, ...). Every write to such a
// file re-ingests it.
type InboxCollector struct {
	dir      string
	include  *patternmatcher.PatternMatcher
	ignore   *patternmatcher.PatternMatcher
	debounce time.Duration
	logger   *logrus.Entry
	refresh  chan struct{}
}

// NewInboxCollector validates cfg and builds the collector.
func NewInboxCollector(cfg InboxConfig, logger *logrus.Entry) (*InboxCollector, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("inbox directory is required")
	}
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = DefaultInboxPatterns
	}
	ignorePatterns := cfg.Ignore
	if ignorePatterns == nil {
		ignorePatterns = DefaultInboxIgnore
	}
	include, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid inbox patterns: %w", err)
	}
	ignore, err := patternmatcher.New(ignorePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid inbox ignore patterns: %w", err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &InboxCollector{
		dir:      cfg.Dir,
		include:  include,
		ignore:   ignore,
		debounce: cfg.Debounce,
		logger:   logger,
		refresh:  make(chan struct{}, 1),
	}, nil
}

// Name returns the collector's name.
func (c *InboxCollector) Name() string { return "inbox" }

// Refresh schedules a rescan of every file in the inbox.
func (c *InboxCollector) Refresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// Run scans the inbox once, then follows changes until ctx is canceled.
func (c *InboxCollector) Run(ctx context.Context, updates chan<- Batch) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create inbox directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(c.dir); err != nil {
		return fmt.Errorf("watch inbox %s: %w", c.dir, err)
	}

	if !c.scanAll(ctx, updates) {
		return nil
	}

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			c.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !c.wants(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			if fire == nil {
				timer = time.NewTimer(c.debounce)
				fire = timer.C
			}

		case <-fire:
			fire = nil
			files := make([]string, 0, len(pending))
			for f := range pending {
				files = append(files, f)
			}
			pending = make(map[string]struct{})
			sort.Strings(files)
			for _, f := range files {
				if !c.ingest(ctx, f, updates) {
					return nil
				}
			}

		case <-c.refresh:
			if !c.scanAll(ctx, updates) {
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Errorf("Watcher error: %v", err)
		}
	}
}

func (c *InboxCollector) wants(path string) bool {
	name := filepath.Base(path)
	if _, _, ok := SectionForFile(name); !ok {
		return false
	}
	if ignored, _ := c.ignore.MatchesOrParentMatches(name); ignored {
		return false
	}
	included, _ := c.include.MatchesOrParentMatches(name)
	return included
}

func (c *InboxCollector) scanAll(ctx context.Context, updates chan<- Batch) bool {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to list inbox")
		return true
	}
	for _, entry := range entries {
		if entry.IsDir() || !c.wants(entry.Name()) {
			continue
		}
		if !c.ingest(ctx, filepath.Join(c.dir, entry.Name()), updates) {
			return false
		}
	}
	return true
}

// ingest reads one file and sends its batch. It returns false when ctx was
// canceled.
func (c *InboxCollector) ingest(ctx context.Context, path string, updates chan<- Batch) bool {
	b, err := ReadBatchFile(path)
	if err != nil {
		if os.IsNotExist(err) || err == errEmptyFile {
			return true
		}
		c.logger.WithError(err).WithField("file", filepath.Base(path)).Warn("Rejected inbox file")
		b = Batch{Section: b.Section, Source: "inbox:" + filepath.Base(path), Err: err}
	}
	return send(ctx, updates, b)
}

// ReadBatchFile decodes and validates one inbox file.
func ReadBatchFile(path string) (Batch, error) {
	sec, format, ok := SectionForFile(path)
	if !ok {
		return Batch{}, fmt.Errorf("%s is not a batch file", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Batch{Section: sec}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Batch{Section: sec}, errEmptyFile
	}
	doc, err := DecodeDocument(data, format)
	if err != nil {
		return Batch{Section: sec}, err
	}
	req, err := BatchFromDocument(doc, string(sec))
	if err != nil {
		return Batch{Section: sec}, err
	}
	return ToBatch(req, "inbox:"+filepath.Base(path))
}
