package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/cloudra/internal/server/models"
	"github.com/dmitrijs2005/cloudra/internal/server/services"
	"github.com/gin-gonic/gin"
)

type createFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
}

type updateFolderRequest struct {
	Name     *string         `json:"name"`
	ParentID json.RawMessage `json:"parentId"`
}

func (s *Server) createFolder(c *gin.Context) {
	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}
	f, err := s.svc.Folders.Create(c.Request.Context(), currentUserID(c), req.Name, req.ParentID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, f)
}

func (s *Server) listFolders(c *gin.Context) {
	folders, err := s.svc.Folders.List(c.Request.Context(), currentUserID(c), queryID(c, "parentId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if folders == nil {
		folders = []*models.Folder{}
	}
	respond(c, http.StatusOK, folders)
}

func (s *Server) getFolder(c *gin.Context) {
	f, err := s.svc.Folders.Get(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, f)
}

func (s *Server) updateFolder(c *gin.Context) {
	var req updateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	move, parentID, err := optionalID(req.ParentID)
	if err != nil {
		s.fail(c, err)
		return
	}
	f, err := s.svc.Folders.Update(c.Request.Context(), currentUserID(c), c.Param("id"), services.FolderUpdate{
		Name:     req.Name,
		Move:     move,
		ParentID: parentID,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, f)
}

func (s *Server) deleteFolder(c *gin.Context) {
	if err := s.svc.Folders.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "folder deleted")
}

func (s *Server) toggleFolderFavorite(c *gin.Context) {
	f, err := s.svc.Folders.ToggleFavorite(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, f)
}
