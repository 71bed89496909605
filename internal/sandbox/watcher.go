package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce absorbs the bursts of writes that editors and copies
// produce when replacing a module file.
const DefaultDebounce = 250 * time.Millisecond

// Watcher signals when the control program file changes on disk so the
// node can hot-reload it. The parent directory is watched because most
// tools replace files by rename.
type Watcher struct {
	path     string
	debounce time.Duration
	events   chan struct{}
	logger   zerolog.Logger
}

func NewWatcher(path string, debounce time.Duration, logger zerolog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		events:   make(chan struct{}, 1),
		logger:   logger,
	}
}

// Events emits one signal per debounced change of the watched file.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("sandbox: watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("sandbox: watch %s: %w", dir, err)
	}

	go w.loop(ctx, fsw)
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer fsw.Close()

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-timerC:
			select {
			case w.events <- struct{}{}:
				w.logger.Info().Str("path", w.path).Msg("control program changed on disk")
			default:
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("module watcher error")
		}
	}
}
