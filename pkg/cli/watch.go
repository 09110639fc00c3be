package cli

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/devicelab-dev/flowdriver/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

// Editors often emit several events per save.
const watchDebounce = 300 * time.Millisecond

var watchedExts = map[string]bool{
	".yaml": true,
	".yml":  true,
	".csv":  true,
	".txt":  true,
	".xlsx": true,
	".xlsm": true,
}

// watchAndRun runs once, then again after every change to a scenario or
// data file, until ctx is cancelled.
func watchAndRun(ctx context.Context, rc *RunConfig, out *console) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs := watchDirs(rc)
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	run := func() {
		if _, err := executeRun(ctx, rc, out); err != nil {
			out.printf("\n  %sError:%s %v\n", color(colorRed), color(colorReset), err)
		}
		out.printf("\n  %sWatching %d folder(s) for changes. Press Ctrl+C to stop.%s\n",
			color(colorGray), len(dirs), color(colorReset))
	}
	run()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantChange(ev) {
				continue
			}
			logger.Debug("watch: %s %s", ev.Op, ev.Name)
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: %v", err)
		case <-fire:
			fire = nil
			run()
		}
	}
}

// watchDirs returns the folders holding the selected scenarios and data,
// including subfolders of folder arguments.
func watchDirs(rc *RunConfig) []string {
	set := make(map[string]bool)
	add := func(dir string) {
		if dir == "" {
			dir = "."
		}
		set[filepath.Clean(dir)] = true
	}

	for _, p := range rc.Paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			add(filepath.Dir(p))
			continue
		}
		_ = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				add(path)
			}
			return nil
		})
	}

	if rc.DataDir != "" {
		add(rc.DataDir)
	}
	if len(set) == 0 {
		// built-in scenarios read their data from the working directory
		add(".")
	}

	dirs := make([]string, 0, len(set))
	for d := range set {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

func relevantChange(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return watchedExts[strings.ToLower(filepath.Ext(base))]
}
