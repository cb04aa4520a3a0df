package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/gin-gonic/gin"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success      bool   `json:"success"`
	Data         any    `json:"data,omitempty"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
	IsDuplicate  bool   `json:"isDuplicate,omitempty"`
	IsNewVersion bool   `json:"isNewVersion,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, msg string) {
	c.JSON(status, envelope{Success: true, Message: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error response for err. Internal errors are logged and
// reported without detail.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "route", c.FullPath(), "error", err)
		msg = "internal server error"
	}
	c.JSON(status, envelope{Success: false, Error: msg})
}

func (s *Server) abort(c *gin.Context, err error) {
	s.fail(c, err)
	c.Abort()
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %v", common.ErrorValidation, err)
}

// optionalID decodes a JSON field that may be absent, null or a string.
// present is false only when the field was absent.
func optionalID(raw json.RawMessage) (present bool, id *string, err error) {
	if raw == nil {
		return false, nil, nil
	}
	var v *string
	if err := json.Unmarshal(raw, &v); err != nil {
		return true, nil, badRequest(err)
	}
	if v != nil && *v == "" {
		v = nil
	}
	return true, v, nil
}

// queryID reads an optional id from the query string. Empty means root.
func queryID(c *gin.Context, name string) *string {
	if v := c.Query(name); v != "" {
		return &v
	}
	return nil
}
