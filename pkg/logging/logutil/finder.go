// Package logutil locates the log files written by the daemon's file sink.
package logutil

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/grovetools/pulse/logging"
	"github.com/grovetools/pulse/pkg/paths"
	"github.com/grovetools/pulse/util/pathutil"
)

// dateSuffix is the shape of the date in <component>-<date>.log.
const dateSuffix = "-2006-01-02"

// SharedComponent names the single file used when logging.file.path is set.
const SharedComponent = "pulse"

// FindLogFiles returns the newest log file per component, keyed by
// component. A configured file path is one shared file for every component.
// When components is non-empty only those are returned.
func FindLogFiles(cfg logging.Config, components []string) (map[string]string, error) {
	if cfg.File.Path != "" {
		path, err := pathutil.Expand(cfg.File.Path)
		if err != nil {
			return nil, err
		}
		return map[string]string{SharedComponent: path}, nil
	}

	matches, err := filepath.Glob(filepath.Join(paths.LogDir(), "*-*.log"))
	if err != nil {
		return nil, err
	}
	// Dates sort lexically, so the newest file of a component comes last.
	sort.Strings(matches)

	want := map[string]bool{}
	for _, c := range components {
		if c = strings.TrimSpace(c); c != "" {
			want[c] = true
		}
	}
	files := map[string]string{}
	for _, path := range matches {
		component, ok := componentOf(path)
		if !ok || (len(want) > 0 && !want[component]) {
			continue
		}
		files[component] = path
	}
	return files, nil
}

// componentOf extracts the component from <component>-<YYYY-MM-DD>.log.
func componentOf(path string) (string, bool) {
	base := strings.TrimSuffix(filepath.Base(path), ".log")
	if len(base) <= len(dateSuffix) {
		return "", false
	}
	return base[:len(base)-len(dateSuffix)], true
}
