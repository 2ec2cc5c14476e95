package web

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const tokenCookie = "toolsel_token"

// requestToken reads the bearer header, then the token query parameter, then the cookie.
func requestToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if t := c.Query("token"); t != "" {
		return t
	}
	t, _ := c.Cookie(tokenCookie)
	return t
}

func (s *Server) authenticate(token string) bool {
	expected := s.Config().UI.Auth.Token
	if expected == "" {
		return true // no auth configured
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := requestToken(c)
		if !s.authenticate(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}
		// Browsers cannot set headers on form posts or websocket upgrades.
		if token != "" && c.Query("token") != "" {
			c.SetSameSite(http.SameSiteStrictMode)
			c.SetCookie(tokenCookie, token, 0, "/", "", false, true)
		}
		c.Next()
	}
}
