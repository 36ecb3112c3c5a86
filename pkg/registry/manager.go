package registry

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Manager wraps a Registry with hot-reload support, adapted from the
// teacher's internal/config.Manager: same atomic.Pointer swap and
// fsnotify debounce loop, repurposed to reload the model catalogue
// instead of the gateway's server config.
type Manager struct {
	current  atomic.Pointer[Registry]
	path     string
	watcher  *fsnotify.Watcher
	onChange []func(*Registry)
	logger   *slog.Logger
}

// NewManager loads path and wraps it in a Manager. logger defaults to
// slog.Default() when nil.
func NewManager(path string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg, err := Load(path)
	if err != nil {
		return nil, err
	}

	m := &Manager{path: path, logger: logger}
	m.current.Store(reg)
	return m, nil
}

// Get returns the currently active Registry. Safe for concurrent use.
func (m *Manager) Get() *Registry {
	return m.current.Load()
}

// OnChange registers a callback invoked with the new Registry after
// every successful reload.
func (m *Manager) OnChange(fn func(*Registry)) {
	m.onChange = append(m.onChange, fn)
}

// Reload forces a reload from disk. On parse/validation failure the
// previously active Registry is kept and the error is returned.
func (m *Manager) Reload() error {
	reg, err := Load(m.path)
	if err != nil {
		return err
	}
	m.current.Store(reg)

	for _, fn := range m.onChange {
		fn(reg)
	}
	return nil
}

// Watch starts watching the registry file for changes, debouncing
// rapid writes and reloading atomically. It returns once the watcher
// is established; the watch loop itself runs in a goroutine until ctx
// is done or Close is called.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(m.path); err != nil {
		_ = watcher.Close()
		return err
	}
	m.watcher = watcher

	go m.watchLoop(ctx)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context) {
	const debounceDelay = 500 * time.Millisecond
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			_ = m.watcher.Close()
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					if err := m.Reload(); err != nil {
						m.logger.Error("failed to reload model registry, keeping current", "error", err)
					}
				})
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("registry watcher error", "error", err)
		}
	}
}

// Close stops the file watcher, if one was started.
func (m *Manager) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}
