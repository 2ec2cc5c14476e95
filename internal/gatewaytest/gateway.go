// Package gatewaytest runs an in-process gateway that speaks the management API
// the tool selector consumes. Tests use it in place of the real router.
package gatewaytest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/lhdbsbz/toolsel/internal/api"
)

// Preset is a preset as the gateway stores it.
type Preset struct {
	Name        string
	Description string
	Tools       []string
}

// Gateway holds tool state in memory and serves it over HTTP.
type Gateway struct {
	mu       sync.Mutex
	groups   api.Groups
	enabled  map[string]bool
	presets  []Preset
	toolsErr string
	requests []string
	server   *httptest.Server
	engine   *gin.Engine
}

// New builds a gateway with the given groups; Enabled flags seed the enabled set.
func New(groups api.Groups, presets ...Preset) *Gateway {
	g := &Gateway{
		groups:  groups.Clone(),
		enabled: make(map[string]bool),
		presets: presets,
	}
	for _, grp := range groups {
		for _, t := range grp.Tools {
			if t.Enabled {
				g.enabled[t.Name] = true
			}
		}
	}

	gin.SetMode(gin.TestMode)
	g.engine = gin.New()
	g.engine.Use(g.recordRequest)
	g.engine.GET(api.PathTools, g.listTools)
	g.engine.GET(api.PathCurrent, g.current)
	g.engine.POST(api.PathUpdate, g.update)
	g.engine.POST(api.PathToggle, g.toggle)
	g.engine.POST(api.PathEnable, g.enable)
	g.engine.POST(api.PathDisable, g.disable)
	g.engine.GET(api.PathPresets, g.listPresets)
	g.engine.POST(api.PathPresetsLoad, g.loadPreset)
	g.engine.GET(api.PathHealth, g.health)
	return g
}

// Start serves the gateway on a loopback listener and returns its base URL.
func (g *Gateway) Start() string {
	g.server = httptest.NewServer(g.engine)
	return g.server.URL
}

// Close stops the listener started by Start.
func (g *Gateway) Close() {
	if g.server != nil {
		g.server.Close()
	}
}

// Handler exposes the routes without a listener.
func (g *Gateway) Handler() http.Handler { return g.engine }

// FailTools makes GET /api/tools answer success:false with msg; empty restores it.
func (g *Gateway) FailTools(msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.toolsErr = msg
}

// SetEnabled replaces the enabled set, as another client would.
func (g *Gateway) SetEnabled(names ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setLocked(names)
}

// Enabled returns the enabled set sorted by name.
func (g *Gateway) Enabled() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabledLocked()
}

// Requests returns "METHOD /path" for every request served so far.
func (g *Gateway) Requests() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.requests))
	copy(out, g.requests)
	return out
}

func (g *Gateway) recordRequest(c *gin.Context) {
	g.mu.Lock()
	g.requests = append(g.requests, c.Request.Method+" "+c.Request.URL.Path)
	g.mu.Unlock()
	c.Next()
}

func (g *Gateway) setLocked(names []string) {
	g.enabled = make(map[string]bool, len(names))
	for _, n := range names {
		g.enabled[n] = true
	}
}

func (g *Gateway) enabledLocked() []string {
	out := make([]string, 0, len(g.enabled))
	for n := range g.enabled {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (g *Gateway) known(tool string) bool {
	for _, grp := range g.groups {
		for _, t := range grp.Tools {
			if t.Name == tool {
				return true
			}
		}
	}
	return false
}

func (g *Gateway) listTools(c *gin.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.toolsErr != "" {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": g.toolsErr})
		return
	}
	servers := g.groups.Clone()
	total := 0
	for gi := range servers {
		for ti := range servers[gi].Tools {
			servers[gi].Tools[ti].Enabled = g.enabled[servers[gi].Tools[ti].Name]
			total++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"total":         total,
		"enabled_count": len(g.enabled),
		"servers":       servers,
	})
}

func (g *Gateway) current(c *gin.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tools := g.enabledLocked()
	c.JSON(http.StatusOK, gin.H{"success": true, "tools": tools, "count": len(tools)})
}

func (g *Gateway) update(c *gin.Context) {
	var body api.UpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setLocked(body.Tools)
	c.JSON(http.StatusOK, gin.H{"success": true, "tools": g.enabledLocked()})
}

func (g *Gateway) bindTool(c *gin.Context) (string, bool) {
	var body api.ToolRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Tool == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "tool required"})
		return "", false
	}
	return body.Tool, true
}

func (g *Gateway) toggle(c *gin.Context) {
	tool, ok := g.bindTool(c)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.enabled[tool] {
		delete(g.enabled, tool)
		c.JSON(http.StatusOK, gin.H{"success": true, "tool": tool, "enabled": false})
		return
	}
	if !g.known(tool) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Unknown tool: " + tool})
		return
	}
	g.enabled[tool] = true
	c.JSON(http.StatusOK, gin.H{"success": true, "tool": tool, "enabled": true})
}

func (g *Gateway) enable(c *gin.Context) {
	tool, ok := g.bindTool(c)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.known(tool) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Unknown tool: " + tool})
		return
	}
	g.enabled[tool] = true
	c.JSON(http.StatusOK, gin.H{"success": true, "tool": tool, "enabled": true})
}

func (g *Gateway) disable(c *gin.Context) {
	tool, ok := g.bindTool(c)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.enabled, tool)
	c.JSON(http.StatusOK, gin.H{"success": true, "tool": tool, "enabled": false})
}

func (g *Gateway) listPresets(c *gin.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]api.Preset, 0, len(g.presets))
	for _, p := range g.presets {
		out = append(out, api.Preset{Name: p.Name, Description: p.Description, ToolCount: len(p.Tools)})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "presets": out})
}

func (g *Gateway) loadPreset(c *gin.Context) {
	var body api.PresetLoadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.presets {
		if p.Name == body.Name {
			g.setLocked(p.Tools)
			tools := g.enabledLocked()
			c.JSON(http.StatusOK, gin.H{"success": true, "preset": p.Name, "tools": tools, "count": len(tools)})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Preset not found: " + body.Name})
}

func (g *Gateway) health(c *gin.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, grp := range g.groups {
		total += len(grp.Tools)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"servers":         len(g.groups),
		"tools_available": total,
		"tools_enabled":   len(g.enabled),
	})
}
