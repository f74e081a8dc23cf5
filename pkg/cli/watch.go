package cli

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Editors often write a file several times when saving it
const watchDebounce = 100 * time.Millisecond

type watcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	dirs      map[string]bool
}

func newWatcher(debounce time.Duration) (*watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	return &watcher{
		fsWatcher: fsWatcher,
		debounce:  debounce,
		dirs:      make(map[string]bool),
	}, nil
}

func (w *watcher) close() error {
	return w.fsWatcher.Close()
}

// Returns the sorted directories of the inputs that are on the local file
// system. Inputs in other storage can't be watched.
func watchDirs(inputs []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, input := range inputs {
		if strings.HasPrefix(input, "file://") {
			input = strings.TrimPrefix(input, "file://")
		} else if strings.Contains(input, "://") {
			continue
		}
		if !filepath.IsAbs(input) {
			continue
		}
		if dir := filepath.Dir(input); !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// Starts watching the directories of these inputs and stops watching the
// directories that no input is in anymore
func (w *watcher) setInputs(inputs []string) {
	next := make(map[string]bool)
	for _, dir := range watchDirs(inputs) {
		if w.dirs[dir] {
			next[dir] = true
			continue
		}

		// A directory that can't be watched yet is tried again after the next
		// build
		if err := w.fsWatcher.Add(dir); err == nil {
			next[dir] = true
		}
	}
	for dir := range w.dirs {
		if !next[dir] {
			_ = w.fsWatcher.Remove(dir)
		}
	}
	w.dirs = next
}

// Calls "rebuild" once the watched directories have been quiet for the
// debounce interval after a change. The inputs that "rebuild" returns are
// what gets watched afterward.
func (w *watcher) run(ctx context.Context, rebuild func() []string) error {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true

		case <-timer.C:
			if pending {
				pending = false
				w.setInputs(rebuild())
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			return errors.Wrap(err, "file watcher failed")
		}
	}
}

func (c *cliContext) watch(osArgs []string, options *cliOptions, inputs []string) error {
	w, err := newWatcher(watchDebounce)
	if err != nil {
		return err
	}
	defer w.close()

	// Entry points are watched even if the first build couldn't load them
	fsys := c.newFS()
	entryPoints := make([]string, len(options.build.EntryPoints))
	for i, entryPoint := range options.build.EntryPoints {
		entryPoints[i] = c.absPath(fsys, entryPoint)
	}

	w.setInputs(append(append([]string{}, inputs...), entryPoints...))
	return w.run(c.ctx, func() []string {
		result, _ := c.buildAndWrite(osArgs, options)
		return append(result.Inputs, entryPoints...)
	})
}
