package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeHandler receives the reloaded configuration
type ChangeHandler func(cfg *Config)

// Watcher reloads the config file when it, or any extra watched file, changes.
// A file that fails to load or validate keeps the previous config in place.
type Watcher struct {
	path     string
	extra    map[string]bool
	current  atomic.Pointer[Config]
	handlers []ChangeHandler
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger
	mu       sync.Mutex
	stopOnce sync.Once
	done     chan struct{}
}

// NewWatcher watches cfg.Path plus extra files such as the templates YAML.
// Files are watched through their directories so editor renames are seen.
func NewWatcher(cfg *Config, logger *zap.Logger, extra ...string) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("config was not loaded from a file")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		path:     filepath.Clean(cfg.Path),
		extra:    make(map[string]bool),
		watcher:  fw,
		debounce: 50 * time.Millisecond,
		logger:   logger,
		done:     make(chan struct{}),
	}
	w.current.Store(cfg)

	dirs := map[string]bool{filepath.Dir(w.path): true}
	for _, p := range extra {
		if p == "" {
			continue
		}
		p = filepath.Clean(p)
		w.extra[p] = true
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// OnChange registers a handler. Handlers run in registration order on the watch goroutine.
func (w *Watcher) OnChange(h ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Current returns the latest successfully loaded config
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Start runs the watch loop until ctx is done or Stop is called
func (w *Watcher) Start(ctx context.Context) {
	go w.watchLoop(ctx)
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop closes the underlying watcher; it is safe to call more than once
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Watch loop panicked", zap.Any("panic", r))
		}
	}()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				// coalesce bursts of writes from a single save
				pending = time.After(w.debounce)
			}
		case <-pending:
			pending = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == w.path || w.extra[name]
}

func (w *Watcher) reload() {
	cfg, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("Failed to reload configuration, keeping previous", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.current.Store(cfg)

	w.mu.Lock()
	handlers := append([]ChangeHandler(nil), w.handlers...)
	w.mu.Unlock()

	for _, h := range handlers {
		h(cfg)
	}
	w.logger.Info("Configuration reloaded", zap.String("path", w.path), zap.Int("handlers", len(handlers)))
}
