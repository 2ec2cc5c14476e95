package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lhdbsbz/toolsel/internal/api"
	"github.com/lhdbsbz/toolsel/internal/config"
	"github.com/lhdbsbz/toolsel/internal/refresh"
)

func TestApplyReloadRepointsClientAndScheduler(t *testing.T) {
	client := api.NewClient("http://before:8090", api.WithTimeout(10*time.Second))
	var triggered atomic.Int32
	sched := refresh.NewScheduler(func(context.Context) error {
		triggered.Add(1)
		return nil
	})

	cfg := config.DefaultConfig()
	cfg.Gateway.URL = "http://after:9000/"
	cfg.Gateway.Timeout = 3 * time.Second
	cfg.Refresh.Schedule = "@every 5m"
	applyReload(client, sched)(cfg)

	assert.Equal(t, "http://after:9000", client.BaseURL())
	assert.Equal(t, 3*time.Second, client.Timeout())
	assert.Equal(t, "@every 5m", sched.Schedule())
	assert.Eventually(t, func() bool { return triggered.Load() == 1 }, time.Second, 10*time.Millisecond)

	cfg.Refresh.Schedule = ""
	applyReload(client, sched)(cfg)
	assert.Empty(t, sched.Schedule())
	assert.Never(t, func() bool { return triggered.Load() > 1 }, 100*time.Millisecond, 10*time.Millisecond, "same url does not refresh again")
}
