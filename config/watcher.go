package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reloads the configuration when a config file changes and hands the
// result to a callback. Parse failures are logged and the previous
// configuration stays in effect.
type Watcher struct {
	watcher  *fsnotify.Watcher
	startDir string
	debounce time.Duration
	logger   *logrus.Entry
	onReload func(*Config)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher watches startDir and the user config directory. fsnotify does
// not recurse, so only files directly inside those directories are seen.
func NewWatcher(startDir string, dirs []string, debounce time.Duration, logger *logrus.Entry, onReload func(*Config)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	seen := map[string]bool{}
	for _, dir := range append([]string{startDir}, dirs...) {
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		if err := watcher.Add(dir); err != nil {
			logger.WithError(err).WithField("dir", dir).Debug("Not watching config directory")
		}
	}

	return &Watcher{
		watcher:  watcher,
		startDir: startDir,
		debounce: debounce,
		logger:   logger,
		onReload: onReload,
	}, nil
}

// Start blocks until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !isConfigFile(event.Name) {
				continue
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("Config watcher error")
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := LoadFromWithLogger(w.startDir, w.logger)
	if err != nil {
		w.logger.WithError(err).Warn("Config reload failed, keeping previous configuration")
		return
	}
	w.logger.Info("Configuration reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

func isConfigFile(path string) bool {
	base := filepath.Base(path)
	for _, name := range configNames {
		if base == name {
			return true
		}
	}
	for _, name := range overrideNames {
		if base == name {
			return true
		}
	}
	return false
}
