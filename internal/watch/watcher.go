// Package watch notices when another process changes the note database.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called once per debounced burst of database writes.
type ChangeCallback func(ctx context.Context)

// Watch watches the directory holding dbPath and calls cb after writes to
// the database file or its WAL settle for debounce. It blocks until ctx is
// cancelled.
//
// The directory is watched rather than the file because SQLite replaces and
// truncates its journal files, which drops file-level watches on some
// platforms.
func Watch(ctx context.Context, dbPath string, debounce time.Duration, logger *slog.Logger, cb ChangeCallback) error {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("db", abs))

	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			timer = nil
			timerCh = nil
			logger.Debug("watcher: database changed")
			if cb != nil {
				cb(ctx)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isDBFile(abs, ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// isDBFile reports whether name is the database file or its WAL.
func isDBFile(dbPath, name string) bool {
	name = filepath.Clean(name)
	return name == dbPath || name == dbPath+"-wal"
}
