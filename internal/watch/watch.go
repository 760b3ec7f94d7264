// Package watch rebuilds a bundle whenever one of its inputs changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const DefaultDebounce = 300 * time.Millisecond

// BuildFunc runs one build and returns the files whose change should trigger
// the next one. A failed build keeps the previous file set.
type BuildFunc func(ctx context.Context) ([]string, error)

type Watcher struct {
	build    BuildFunc
	logger   zerolog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	files   map[string]bool
	dirs    map[string]bool
}

func New(build BuildFunc, logger zerolog.Logger) *Watcher {
	return &Watcher{build: build, logger: logger, debounce: DefaultDebounce}
}

// SetDebounce changes how long the watcher waits for events to settle.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run builds once, then rebuilds after every settled burst of changes to the
// watched files until ctx is cancelled. always lists files watched
// regardless of what a build reports, such as the configuration file.
func (w *Watcher) Run(ctx context.Context, always ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	w.watcher = watcher
	w.files = make(map[string]bool)
	w.dirs = make(map[string]bool)

	w.rebuild(ctx, always)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.files[filepath.Clean(event.Name)] {
				continue
			}
			// Atomic saves show up as create or rename.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.logger.Debug().Str("event", event.Op.String()).Str("file", event.Name).Msg("input changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.rebuild(ctx, always)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("file watcher error")
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context, always []string) {
	files, err := w.build(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("build failed, keeping previous watch list")
		files = nil
		for f := range w.files {
			files = append(files, f)
		}
	}
	w.track(append(append([]string(nil), always...), files...))
}

// track replaces the watched file set. Directories are watched instead of
// files so editors that replace files on save keep triggering events.
func (w *Watcher) track(files []string) {
	w.files = make(map[string]bool, len(files))
	wantDirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		w.files[abs] = true
		wantDirs[filepath.Dir(abs)] = true
	}

	for dir := range w.dirs {
		if !wantDirs[dir] {
			_ = w.watcher.Remove(dir)
			delete(w.dirs, dir)
		}
	}
	for _, dir := range sortedKeys(wantDirs) {
		if w.dirs[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Warn().Err(err).Str("dir", dir).Msg("can't watch directory")
			continue
		}
		w.dirs[dir] = true
	}
	w.logger.Info().Int("files", len(w.files)).Int("dirs", len(w.dirs)).Msg("watching for changes")
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
