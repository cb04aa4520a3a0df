package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/cloudra/internal/server/services"
	"github.com/gin-gonic/gin"
)

type createShareRequest struct {
	IsPublic  bool `json:"isPublic"`
	ExpiresIn int  `json:"expiresIn"`
}

type shareUserRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (s *Server) shareSettings(kind services.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := s.svc.Share.Settings(c.Request.Context(), currentUserID(c), kind, c.Param("id"))
		if err != nil {
			s.fail(c, err)
			return
		}
		respond(c, http.StatusOK, v)
	}
}

func (s *Server) createShare(kind services.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createShareRequest
		// An empty body issues a private link without expiry.
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				s.fail(c, badRequest(err))
				return
			}
		}
		v, err := s.svc.Share.Share(c.Request.Context(), currentUserID(c), kind, c.Param("id"), services.ShareRequest{
			IsPublic:       req.IsPublic,
			ExpiresInHours: req.ExpiresIn,
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		respond(c, http.StatusOK, v)
	}
}

func (s *Server) revokeShare(kind services.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := s.svc.Share.Revoke(c.Request.Context(), currentUserID(c), kind, c.Param("id"))
		if err != nil {
			s.fail(c, err)
			return
		}
		respond(c, http.StatusOK, v)
	}
}

func (s *Server) addShareUser(kind services.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req shareUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, badRequest(err))
			return
		}
		v, err := s.svc.Share.AddUser(c.Request.Context(), currentUserID(c), kind, c.Param("id"), req.UserID)
		if err != nil {
			s.fail(c, err)
			return
		}
		respond(c, http.StatusOK, v)
	}
}

func (s *Server) removeShareUser(kind services.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := s.svc.Share.RemoveUser(c.Request.Context(), currentUserID(c), kind, c.Param("id"), c.Param("userId"))
		if err != nil {
			s.fail(c, err)
			return
		}
		respond(c, http.StatusOK, v)
	}
}

func (s *Server) resolveShare(c *gin.Context) {
	res, err := s.svc.Share.Resolve(c.Request.Context(), c.Param("token"), currentUserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}
