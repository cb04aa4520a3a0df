package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
	"github.com/dmitrijs2005/cloudra/internal/server/services"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

// oneTimeTokenError reports bad activation and reset tokens as bad input
// rather than as an authentication failure.
func oneTimeTokenError(err error) error {
	if errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrTokenExpired) {
		return fmt.Errorf("%w: invalid or expired token", common.ErrorValidation)
	}
	return err
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	user, err := s.svc.Users.Register(c.Request.Context(), services.Registration{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, user)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	session, err := s.svc.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, loginResponse{Token: session.Token, User: session.User})
}

func (s *Server) me(c *gin.Context) {
	user, err := s.svc.Users.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, user)
}

func (s *Server) activate(c *gin.Context) {
	user, err := s.svc.Users.Activate(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.fail(c, oneTimeTokenError(err))
		return
	}
	respond(c, http.StatusOK, user)
}

func (s *Server) forgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	if err := s.svc.Users.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		s.fail(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "password reset email sent")
}

func (s *Server) resetPassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	if err := s.svc.Users.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		s.fail(c, oneTimeTokenError(err))
		return
	}
	respondMessage(c, http.StatusOK, "password updated")
}

type userSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func (s *Server) searchUsers(c *gin.Context) {
	users, err := s.svc.Users.Search(c.Request.Context(), currentUserID(c), c.Query("email"))
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]userSummary, 0, len(users))
	for _, u := range users {
		out = append(out, userSummary{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email})
	}
	respond(c, http.StatusOK, out)
}
