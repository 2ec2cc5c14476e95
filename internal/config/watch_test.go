package config

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, path string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(path, 20*time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher stopped early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}
}

func TestWatchReloadsGatewayURL(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "gateway:\n  url: http://before:8090\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	Set(cfg)

	var seen atomic.Pointer[string]
	RegisterOnReload(func(c *Config) {
		u := c.Gateway.URL
		seen.Store(&u)
	})
	startWatcher(t, path)

	assert.Eventually(t, func() bool {
		if u := seen.Load(); u != nil && *u == "http://after:9000" {
			return true
		}
		_ = os.WriteFile(path, []byte("gateway:\n  url: http://after:9000\n  timeout: 2s\n"), 0600)
		return false
	}, 5*time.Second, 100*time.Millisecond)
	assert.Equal(t, "http://after:9000", Get().Gateway.URL)
	assert.Equal(t, 2*time.Second, Get().Gateway.Timeout)
}

func TestWatchKeepsConfigWhenFileBreaks(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "gateway:\n  url: http://steady:8090\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	Set(cfg)
	startWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte("gateway: [unclosed\n"), 0600))
	time.Sleep(200 * time.Millisecond)
	assert.Same(t, cfg, Get())
}

func TestWatcherMissingFile(t *testing.T) {
	err := NewWatcher("/nonexistent/toolsel.yaml", 0).Run(context.Background())
	require.Error(t, err)
}
