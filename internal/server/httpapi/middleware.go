package httpapi

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()
		s.metrics.ObserveRequest(c.Request.Method, route, status, elapsed)
		s.logger.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader(common.AuthorizationHeaderName)
	if !strings.HasPrefix(h, common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, common.BearerPrefix))
}

// authRequired rejects requests without a valid bearer token and stores
// the caller's id in the context.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			s.abort(c, common.ErrorUnauthorized)
			return
		}
		id, err := s.svc.Users.UserIDFromToken(c.Request.Context(), token)
		if err != nil {
			s.abort(c, err)
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

// optionalAuth resolves the caller when a valid token is present and lets
// anonymous requests through otherwise.
func (s *Server) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if id, err := s.svc.Users.UserIDFromToken(c.Request.Context(), token); err == nil {
				c.Set(userIDKey, id)
			}
		}
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
