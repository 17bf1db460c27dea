// Package watch reports rebuilds of a module file.
//
// The directory is watched rather than the file: linkers and editors often
// replace a file by rename, which drops a watch placed on the file itself.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wippyai/hotswap/errors"
	"github.com/wippyai/hotswap/loader"
)

// DefaultSettle coalesces the burst of events a single build produces.
const DefaultSettle = 100 * time.Millisecond

// Watcher calls OnChange after the module file is written or replaced.
type Watcher struct {
	path    string
	fs      *fsnotify.Watcher
	log     *zap.Logger
	settle  time.Duration
	changed func(path string)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// WithSettle sets how long the watcher waits for events to stop before
// reporting a change. Zero reports every event.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) { w.settle = d }
}

// New watches the directory containing path.
func New(path string, onChange func(path string), opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.IO(errors.PhaseReload, "resolve "+path, err)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.IO(errors.PhaseReload, "create watcher", err)
	}

	w := &Watcher{
		path:    abs,
		fs:      fs,
		log:     zap.NewNop(),
		settle:  DefaultSettle,
		changed: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}

	dir := filepath.Dir(abs)
	if err := fs.Add(dir); err != nil {
		_ = fs.Close()
		return nil, errors.IO(errors.PhaseReload, "watch "+dir, err)
	}
	w.log.Debug("watching module directory",
		zap.String("dir", dir),
		zap.String("file", filepath.Base(abs)))
	return w, nil
}

// Matches reports whether an event concerns the watched file. Loaded
// copies the runtime creates next to it never match.
func (w *Watcher) Matches(ev fsnotify.Event) bool {
	if loader.IsLoadedCopy(filepath.Base(ev.Name)) {
		return false
	}
	name, err := filepath.Abs(ev.Name)
	if err != nil || name != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

// Run delivers change notifications until ctx is done, then closes the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.fs.Close(); err != nil {
			w.log.Warn("close watcher", zap.Error(err))
		}
	}()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.Matches(ev) {
				continue
			}
			w.log.Debug("module file changed",
				zap.String("file", ev.Name),
				zap.String("op", ev.Op.String()))
			if w.settle <= 0 {
				w.changed(w.path)
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.settle)
			} else {
				timer.Reset(w.settle)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.log.Info("module rebuilt", zap.String("path", w.path))
			w.changed(w.path)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", zap.Error(err))
		}
	}
}
