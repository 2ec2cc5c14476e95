package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DefaultReloadDelay is how long the file must stay quiet before a reload.
const DefaultReloadDelay = 200 * time.Millisecond

// Watcher hot-reloads one config file. Viper's fsnotify callback only signals
// that the file changed; the goroutine running Run owns the settle timer and
// performs every reload.
type Watcher struct {
	path    string
	delay   time.Duration
	changed chan struct{}
	ready   chan struct{}
}

func NewWatcher(path string, delay time.Duration) *Watcher {
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	return &Watcher{
		path:    filepath.Clean(path),
		delay:   delay,
		changed: make(chan struct{}, 1),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once file events are being delivered.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run watches until ctx ends. Each settled change is parsed with Load, stored
// with Set and handed to the RegisterOnReload callbacks. A file that fails to
// parse leaves the current config in place.
func (w *Watcher) Run(ctx context.Context) error {
	v := viper.New()
	v.SetConfigFile(w.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	v.OnConfigChange(w.onEvent)
	v.WatchConfig()
	close(w.ready)

	settle := time.NewTimer(w.delay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.changed:
			settle.Reset(w.delay)
		case <-settle.C:
			w.reload()
		}
	}
}

func (w *Watcher) onEvent(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	if filepath.Clean(e.Name) != w.path {
		return
	}
	select {
	case w.changed <- struct{}{}:
	default:
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		slog.Warn("config reload skipped", "path", w.path, "error", err)
		return
	}
	Set(cfg)
	notifyReload(cfg)
	slog.Info("config reloaded", "path", w.path, "gateway", cfg.Gateway.URL)
}

// Watch runs a Watcher with the default delay. Run it in a goroutine.
func Watch(ctx context.Context, path string) {
	if err := NewWatcher(path, DefaultReloadDelay).Run(ctx); err != nil {
		slog.Warn("config watch disabled", "error", err)
	}
}
