package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lhdbsbz/toolsel/internal/api"
	"github.com/lhdbsbz/toolsel/internal/config"
	"github.com/lhdbsbz/toolsel/internal/panel"
	"github.com/lhdbsbz/toolsel/internal/refresh"
	"github.com/lhdbsbz/toolsel/internal/tui"
	"github.com/lhdbsbz/toolsel/internal/web"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("toolsel v%s\n", version)
	case "serve":
		err = serve(os.Args[2:])
	case "tui":
		err = runTUI(os.Args[2:])
	case "init":
		err = initConfig(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("toolsel - MCP tool selector")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  toolsel serve [--config path]   Start the web UI")
	fmt.Println("  toolsel tui [--config path]     Start the terminal UI")
	fmt.Println("  toolsel init [--config path]    Write a config file with a fresh auth token")
	fmt.Println("  toolsel version                 Show version info")
}

func parseFlags(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("config", "", "config file (default $TOOLSEL_HOME/config.yaml)")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return config.ResolveConfigPath(*path), nil
}

// app is what serve and tui share: config, gateway client, panel and scheduled refresh.
type app struct {
	cfgPath string
	client  *api.Client
	panel   *panel.Panel
	refresh *refresh.Scheduler
}

func setup(name string, args []string, logOut io.Writer) (*app, error) {
	_ = godotenv.Load()

	cfgPath, err := parseFlags(name, args)
	if err != nil {
		return nil, err
	}

	resolved := cfgPath
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.LoadFromExample()
		cfgPath = ""
	}
	if err != nil {
		return nil, err
	}
	config.Set(cfg)

	level := slog.LevelInfo
	if cfg.UI.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level})))
	if cfgPath == "" {
		slog.Warn("config not found, using defaults", "path", resolved)
	}
	slog.Info("toolsel starting", "version", version, "gateway", cfg.Gateway.URL)

	client := api.NewClient(cfg.Gateway.URL, api.WithTimeout(cfg.Gateway.Timeout))
	p := panel.New(client)

	sched := refresh.NewScheduler(func(ctx context.Context) error { return p.LoadTools(ctx) })
	if err := sched.SetSchedule(cfg.Refresh.Schedule); err != nil {
		slog.Warn("scheduled refresh disabled", "error", err)
	}

	config.RegisterOnReload(applyReload(client, sched))

	return &app{cfgPath: cfgPath, client: client, panel: p, refresh: sched}, nil
}

// applyReload re-points the client and scheduler at a reloaded config.
// The UI listen address still needs a restart.
func applyReload(client *api.Client, sched *refresh.Scheduler) func(*config.Config) {
	return func(c *config.Config) {
		if c.Gateway.URL != client.BaseURL() {
			slog.Info("gateway url changed", "url", c.Gateway.URL)
			client.SetBaseURL(c.Gateway.URL)
			go sched.RunNow()
		}
		if c.Gateway.Timeout != client.Timeout() {
			slog.Info("gateway timeout changed", "timeout", c.Gateway.Timeout)
			client.SetTimeout(c.Gateway.Timeout)
		}
		if err := sched.SetSchedule(c.Refresh.Schedule); err != nil {
			slog.Warn("refresh schedule not applied", "error", err)
		}
	}
}

// start runs the config watcher and the scheduler until ctx ends.
func (a *app) start(ctx context.Context) {
	if a.cfgPath != "" {
		go config.Watch(ctx, a.cfgPath)
	}
	a.refresh.Start()
	go func() {
		<-ctx.Done()
		a.refresh.Stop()
	}()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("shutdown signal received", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func serve(args []string) error {
	a, err := setup("serve", args, os.Stdout)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	a.start(ctx)

	srv := web.NewServer(config.Get(), a.panel, a.client, slog.Default())
	config.RegisterOnReload(srv.SetConfig)

	go a.panel.Init(ctx)
	return srv.Start(ctx)
}

func runTUI(args []string) error {
	// The terminal belongs to the UI; logs go to stderr only when asked for.
	logOut := io.Discard
	if os.Getenv("TOOLSEL_TUI_LOG") != "" {
		logOut = os.Stderr
	}
	a, err := setup("tui", args, logOut)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	a.start(ctx)

	return tui.Run(ctx, a.panel)
}

func initConfig(args []string) error {
	cfgPath, err := parseFlags("init", args)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("config already exists: %s", cfgPath)
	}
	if err := config.CreateFromExample(cfgPath); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", cfgPath)
	return nil
}
