package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/cloudra/internal/server/models"
	"github.com/dmitrijs2005/cloudra/internal/server/services"
	"github.com/gin-gonic/gin"
)

const archiveFileName = "cloudra-files.zip"

type saveFileRequest struct {
	FileName  string  `json:"fileName"`
	FileType  string  `json:"fileType"`
	FileSize  int64   `json:"fileSize"`
	ObjectKey string  `json:"objectKey"`
	FileHash  string  `json:"fileHash"`
	FolderID  *string `json:"folderId"`
}

type updateFileRequest struct {
	FileName *string         `json:"fileName"`
	FolderID json.RawMessage `json:"folderId"`
}

type bulkRequest struct {
	FileIDs             []string        `json:"fileIds"`
	FolderIDs           []string        `json:"folderIds"`
	DestinationFolderID json.RawMessage `json:"destinationFolderId"`
}

type downloadResponse struct {
	URL  string       `json:"url"`
	File *models.File `json:"file"`
}

func (s *Server) uploadURL(c *gin.Context) {
	sig, err := s.svc.Files.UploadSignature(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, sig)
}

func (s *Server) saveFile(c *gin.Context) {
	var req saveFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	if req.FolderID != nil && *req.FolderID == "" {
		req.FolderID = nil
	}
	res, err := s.svc.Files.SaveMetadata(c.Request.Context(), currentUserID(c), services.SaveRequest{
		FileName:  req.FileName,
		FileType:  req.FileType,
		ObjectKey: req.ObjectKey,
		Size:      req.FileSize,
		Hash:      req.FileHash,
		FolderID:  req.FolderID,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	switch res.Outcome {
	case services.OutcomeDuplicate:
		c.JSON(http.StatusOK, envelope{Success: true, Data: res.File, IsDuplicate: true, Message: "file already exists"})
	case services.OutcomeNewVersion:
		c.JSON(http.StatusOK, envelope{Success: true, Data: res.File, IsNewVersion: true, Message: "new version saved"})
	default:
		respond(c, http.StatusCreated, res.File)
	}
}

func (s *Server) listFiles(c *gin.Context) {
	files, err := s.svc.Files.List(c.Request.Context(), currentUserID(c), queryID(c, "parentId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if files == nil {
		files = []*models.File{}
	}
	respond(c, http.StatusOK, files)
}

func (s *Server) getFile(c *gin.Context) {
	f, err := s.svc.Files.Get(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, f)
}

func (s *Server) updateFile(c *gin.Context) {
	var req updateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	move, folderID, err := optionalID(req.FolderID)
	if err != nil {
		s.fail(c, err)
		return
	}
	f, err := s.svc.Files.Update(c.Request.Context(), currentUserID(c), c.Param("id"), services.FileUpdate{
		FileName: req.FileName,
		Move:     move,
		FolderID: folderID,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, f)
}

func (s *Server) deleteFile(c *gin.Context) {
	if err := s.svc.Files.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "file deleted")
}

func (s *Server) downloadFile(c *gin.Context) {
	url, f, err := s.svc.Files.DownloadURL(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, downloadResponse{URL: url, File: f})
}

func (s *Server) toggleFileFavorite(c *gin.Context) {
	f, err := s.svc.Files.ToggleFavorite(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, f)
}

func (s *Server) restoreVersion(c *gin.Context) {
	f, err := s.svc.Files.RestoreVersion(c.Request.Context(), currentUserID(c), c.Param("id"), c.Param("versionId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, f)
}

func (s *Server) bulkDelete(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	res, err := s.svc.Files.BulkDelete(c.Request.Context(), currentUserID(c), req.FileIDs, req.FolderIDs)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

func (s *Server) bulkMove(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	_, dest, err := optionalID(req.DestinationFolderID)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.svc.Files.BulkMove(c.Request.Context(), currentUserID(c), req.FileIDs, req.FolderIDs, dest)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

// bulkDownload streams the selected files as a ZIP. Once streaming has
// started errors can only be logged.
func (s *Server) bulkDownload(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	ctx := c.Request.Context()
	entries, err := s.svc.Files.PrepareArchive(ctx, currentUserID(c), req.FileIDs)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archiveFileName))
	c.Status(http.StatusOK)

	n, err := s.svc.Files.WriteArchive(ctx, c.Writer, entries)
	if err != nil {
		s.logger.Error(ctx, "archive stream failed", "written", n, "error", err)
		return
	}
	s.logger.Info(ctx, "archive streamed", "requested", len(entries), "written", n)
}
