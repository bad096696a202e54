package config

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/munichmade/hostsync/internal/logging"
)

// DefaultWatchInterval is how often the config file's mtime is polled.
const DefaultWatchInterval = 2 * time.Second

// Watcher polls a config file and hands freshly loaded configs to a callback.
type Watcher struct {
	path     string
	onChange func(*Config)
	stop     chan struct{}
	wg       sync.WaitGroup
	lastMod  time.Time
	interval time.Duration
}

// NewWatcher creates a watcher for path. A non-positive interval uses
// DefaultWatchInterval.
func NewWatcher(path string, interval time.Duration, onChange func(*Config)) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Watcher{
		path:     path,
		onChange: onChange,
		stop:     make(chan struct{}),
		interval: interval,
	}
}

// Start records the current mtime and begins polling.
func (w *Watcher) Start() error {
	info, err := os.Stat(w.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		w.lastMod = time.Time{}
	case err != nil:
		return err
	default:
		w.lastMod = info.ModTime()
	}

	w.wg.Add(1)
	go w.watch()

	logging.Debug("config watcher started", "path", w.path)
	return nil
}

// Stop stops polling and waits for the loop to exit.
func (w *Watcher) Stop() {
	close(w.stop)
	w.wg.Wait()
	logging.Debug("config watcher stopped", "path", w.path)
}

func (w *Watcher) watch() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.checkForChanges()
		}
	}
}

// checkForChanges reloads the file when its mtime moved forward.
// A file that fails to load is logged and the previous config stays in use.
func (w *Watcher) checkForChanges() {
	info, err := os.Stat(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !w.lastMod.IsZero() {
			w.lastMod = time.Time{}
			logging.Debug("config file deleted", "path", w.path)
		}
		return
	}

	modTime := info.ModTime()
	if !modTime.After(w.lastMod) {
		return
	}
	w.lastMod = modTime
	logging.Info("config file changed, reloading", "path", w.path)

	cfg, err := LoadFromFile(w.path)
	if err != nil {
		logging.Error("failed to reload config", "path", w.path, "error", err)
		return
	}

	if w.onChange != nil {
		w.onChange(cfg)
	}
}
