// Package reload hot-reloads the one dynamic field a running framework
// cares about from its on-disk descriptor: the log-level key (spec.md §6).
// Every other field of the descriptor is static — changing it on disk has
// no effect until the process restarts, mirroring the teacher's
// internal/reload static-vs-dynamic field split.
package reload

import (
	"context"
	"log"

	"github.com/fsnotify/fsnotify"
	"github.com/golobby/cast"

	"github.com/ubundle/ubundle/internal/descriptor"
)

// LevelSetter receives the new numeric log level whenever the watched
// descriptor's log_level field changes.
type LevelSetter interface {
	SetLevel(level int)
}

// Watcher watches one descriptor file and applies log-level changes to a
// LevelSetter as they land on disk.
type Watcher struct {
	path      string
	target    LevelSetter
	fsw       *fsnotify.Watcher
	lastLevel int
	haveLevel bool
}

// NewWatcher creates a Watcher over path, applying changes to target.
func NewWatcher(path string, target LevelSetter) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{path: path, target: target, fsw: fsw}, nil
}

// Run blocks, applying log-level changes until ctx is done or the
// underlying watcher errors out unrecoverably.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.applyFrom(evt.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("reload: watcher error: %v", err)
		}
	}
}

func (w *Watcher) applyFrom(path string) {
	d, err := descriptor.Load(path)
	if err != nil {
		log.Printf("reload: %v", err)
		return
	}
	if d.LogLevel == "" {
		return
	}
	lv, err := cast.FromString(d.LogLevel, cast.Int)
	if err != nil {
		log.Printf("reload: bad log_level %q: %v", d.LogLevel, err)
		return
	}
	level := lv.(int)
	if w.haveLevel && level == w.lastLevel {
		return
	}
	w.lastLevel = level
	w.haveLevel = true
	w.target.SetLevel(level)
}
