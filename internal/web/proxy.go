package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lhdbsbz/toolsel/internal/api"
)

const apiPrefix = "/api"

func (s *Server) registerProxyRoutes(g *gin.RouterGroup) {
	for _, path := range []string{api.PathTools, api.PathCurrent, api.PathPresets} {
		g.GET(strings.TrimPrefix(path, apiPrefix), s.proxy(path))
	}
	for _, path := range []string{api.PathUpdate, api.PathEnable, api.PathDisable, api.PathToggle, api.PathPresetsLoad} {
		g.POST(strings.TrimPrefix(path, apiPrefix), s.proxy(path))
	}
}

// proxy forwards the request body to the gateway and relays its JSON answer
// with status 200. Failures to reach the gateway or to read its answer become
// a {"success":false,"error":...} envelope.
func (s *Server) proxy(path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Method != http.MethodGet {
			data, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
			if err != nil {
				proxyFailure(c, err.Error())
				return
			}
			if len(data) > 0 {
				body = data
			}
		}

		data, status, err := s.Client.Do(c.Request.Context(), c.Request.Method, path, body)
		if err != nil {
			proxyFailure(c, err.Error())
			return
		}
		if !json.Valid(data) {
			s.logger.Warn("gateway returned non-JSON", "path", path, "status", status)
			proxyFailure(c, fmt.Sprintf("gateway returned invalid JSON (HTTP %d)", status))
			return
		}
		c.Data(http.StatusOK, "application/json", data)
	}
}

func proxyFailure(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "error": msg})
}
