// Package web serves the tool selector over HTTP: the panel as server-rendered
// HTML with websocket push, and a pass-through proxy to the gateway API.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/lhdbsbz/toolsel/internal/api"
	"github.com/lhdbsbz/toolsel/internal/config"
	"github.com/lhdbsbz/toolsel/internal/observability"
	"github.com/lhdbsbz/toolsel/internal/panel"
)

//go:embed templates/*.html static/*
var webFS embed.FS

// viewPushWindow merges bursts of panel changes (loading, then loaded) into one push.
const viewPushWindow = 30 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the tool selector web UI.
type Server struct {
	Panel  *panel.Panel
	Client *api.Client
	Conns  *ConnManager

	push    *coalescer[panel.Snapshot]
	cfg     atomic.Pointer[config.Config]
	logger  *slog.Logger
	httpSrv *http.Server
	startAt time.Time
}

func NewServer(cfg *config.Config, p *panel.Panel, client *api.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Panel:   p,
		Client:  client,
		Conns:   NewConnManager(),
		logger:  logger,
		startAt: time.Now(),
	}
	s.cfg.Store(cfg)
	s.push = newCoalescer(viewPushWindow, s.broadcastView)
	p.Subscribe(s.push.Submit)
	return s
}

// Config returns the config the server currently enforces.
func (s *Server) Config() *config.Config { return s.cfg.Load() }

// SetConfig applies a reloaded config. The listen address only changes on restart.
func (s *Server) SetConfig(cfg *config.Config) {
	if cfg != nil {
		s.cfg.Store(cfg)
	}
}

// Engine builds the gin engine with every route registered.
func (s *Server) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(observability.RequestLogger(s.logger))
	engine.Use(observability.RequestMetricsMiddleware())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	engine.Use(cors.New(corsCfg))

	tmpl := template.Must(template.New("").ParseFS(webFS, "templates/*.html"))
	engine.SetHTMLTemplate(tmpl)

	staticFS, _ := fs.Sub(webFS, "static")
	engine.StaticFS("/static", http.FS(staticFS))

	engine.GET("/health", s.ginHealth)
	engine.GET("/metrics", gin.WrapH(observability.Handler()))

	auth := s.authMiddleware()
	engine.GET("/", auth, s.ginIndex)
	engine.GET("/ws", auth, s.ginWebSocket)
	s.registerUIRoutes(engine.Group("/ui", auth))
	s.registerProxyRoutes(engine.Group(apiPrefix, auth))
	return engine
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	if s.Config().UI.Debug {
		gin.SetMode(gin.DebugMode)
	}

	addr := s.Config().ListenAddr()
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("tool selector UI starting", "addr", addr, "gateway", s.Client.BaseURL())
	uiURL := "http://localhost" + addrPort(addr) + "/"
	if t := s.Config().UI.Auth.Token; t != "" {
		uiURL += "?token=" + url.QueryEscape(t)
	}
	s.logger.Info("tool selector UI", "url", uiURL)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.push.Stop()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", "error", err)
		}
	}()

	if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func addrPort(addr string) string {
	if _, port, err := net.SplitHostPort(addr); err == nil {
		return ":" + port
	}
	return ""
}

func (s *Server) ginHealth(c *gin.Context) {
	var gateway any
	if h, err := s.Client.Health(c.Request.Context()); err != nil {
		gateway = gin.H{"success": false, "error": err.Error()}
	} else {
		gateway = h
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"gateway": gateway,
		"uptime":  time.Since(s.startAt).String(),
		"clients": s.Conns.Count(),
	})
}

func (s *Server) broadcastView(snap panel.Snapshot) {
	if s.Conns.Count() == 0 {
		return
	}
	s.Conns.Broadcast(EventView, panel.View(snap, panel.Handlers{}))
}
