package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lhdbsbz/toolsel/internal/panel"
)

// pageData feeds the index and panel templates.
type pageData struct {
	View *panel.Node
}

// actionResult is the JSON answer to an action.
type actionResult struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	View    *panel.Node `json:"view"`
}

func (s *Server) registerUIRoutes(g *gin.RouterGroup) {
	g.GET("/view", s.ginView)
	g.GET("/panel", s.ginPanelFragment)
	g.POST("/action", s.ginAction)
}

func (s *Server) view() *panel.Node {
	return s.Panel.View(panel.Handlers{})
}

func (s *Server) ginIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index", pageData{View: s.view()})
}

func (s *Server) ginPanelFragment(c *gin.Context) {
	c.HTML(http.StatusOK, "panel", pageData{View: s.view()})
}

func (s *Server) ginView(c *gin.Context) {
	c.JSON(http.StatusOK, s.view())
}

// ginAction runs a panel action. HTML forms are redirected back to the page;
// JSON callers get the outcome and the resulting view.
func (s *Server) ginAction(c *gin.Context) {
	var a panel.Action
	if err := c.ShouldBind(&a); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid action"})
		return
	}
	if !knownAction(a.Kind) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown action: " + string(a.Kind)})
		return
	}

	err := s.Panel.Dispatch(c.Request.Context(), a)
	if err != nil {
		s.logger.Debug("panel action failed", "action", a.Kind, "error", err)
	}

	if c.ContentType() != gin.MIMEJSON {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	res := actionResult{Success: err == nil, View: s.view()}
	if err != nil {
		res.Error = err.Error()
	}
	c.JSON(http.StatusOK, res)
}

func knownAction(k panel.ActionKind) bool {
	switch k {
	case panel.ActionRefresh, panel.ActionToggleTool, panel.ActionToggleGroup,
		panel.ActionSelectPreset, panel.ActionLoadPreset, panel.ActionDisableAll:
		return true
	}
	return false
}

// ginWebSocket streams view events. Clients may also send "action" and "view" requests.
func (s *Server) ginWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	conn := &Conn{
		ID:          uuid.NewString(),
		WS:          ws,
		ConnectedAt: time.Now(),
	}
	s.Conns.Add(conn)
	defer s.Conns.Remove(conn.ID)
	s.logger.Debug("websocket connected", "id", conn.ID)

	if err := conn.Send(EventFrame(EventView, 0, s.view())); err != nil {
		return
	}

	for {
		frame, err := ReadFrame(ws)
		if err != nil {
			s.logger.Debug("websocket closed", "id", conn.ID, "error", err)
			return
		}
		if frame.Type != "req" {
			continue
		}

		switch frame.Method {
		case MethodView:
			conn.Send(ResOK(frame.ID, s.view()))
		case MethodAction:
			var a panel.Action
			if err := json.Unmarshal(frame.Params, &a); err != nil || !knownAction(a.Kind) {
				conn.Send(ResErr(frame.ID, "INVALID_PARAMS", "invalid action"))
				continue
			}
			go func(id string, a panel.Action) {
				if err := s.Panel.Dispatch(context.Background(), a); err != nil {
					conn.Send(ResErr(id, "ERROR", err.Error()))
					return
				}
				conn.Send(ResOK(id, s.view()))
			}(frame.ID, a)
		default:
			conn.Send(ResErr(frame.ID, "UNKNOWN_METHOD", "supported methods: action, view"))
		}
	}
}
