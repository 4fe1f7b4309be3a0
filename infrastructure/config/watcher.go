package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 100 * time.Millisecond

// LayoutWatcher keeps the layout configuration in sync with its file.
// Sessions read Current each time they load a graph.
type LayoutWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  *LayoutConfig
	mu       sync.RWMutex
	onChange []func(*LayoutConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLayoutWatcher loads the file and prepares a watcher for it.
func NewLayoutWatcher(path string, logger *zap.Logger) (*LayoutWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg, err := LoadLayoutFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial layout config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory too so atomic saves (write + rename) are seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch layout directory: %w", err)
	}

	return &LayoutWatcher{
		path:    path,
		watcher: watcher,
		current: cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for changes
func (w *LayoutWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("Layout config watcher started", zap.String("path", w.path))
}

// Stop stops watching. It is safe to call more than once.
func (w *LayoutWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("Layout config watcher stopped")
	})
}

func (w *LayoutWatcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Layout watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the file; an invalid file keeps the current configuration.
func (w *LayoutWatcher) reload() {
	cfg, err := LoadLayoutFile(w.path)
	if err != nil {
		w.logger.Error("Failed to reload layout config, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	handlers := append([]func(*LayoutConfig){}, w.onChange...)
	w.mu.Unlock()

	if old.Layout != cfg.Layout || old.View != cfg.View {
		w.logger.Info("Layout config reloaded",
			zap.Float64("linkDistance", cfg.Layout.LinkDistance),
			zap.Float64("chargeStrength", cfg.Layout.ChargeStrength),
			zap.Duration("recenterDuration", cfg.View.RecenterDuration))
	}

	for _, handler := range handlers {
		handler(cfg)
	}
}

// OnChange registers a callback invoked after every successful reload.
func (w *LayoutWatcher) OnChange(handler func(*LayoutConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the latest valid configuration.
func (w *LayoutWatcher) Current() *LayoutConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}
