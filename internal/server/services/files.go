package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/dbx"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
)

// SaveOutcome classifies a metadata save.
type SaveOutcome int

const (
	// OutcomeCreated means a new file record was created.
	OutcomeCreated SaveOutcome = iota
	// OutcomeDuplicate means an identical file (same hash and name) already
	// existed and was returned unchanged.
	OutcomeDuplicate
	// OutcomeNewVersion means a file with the same name in the same folder
	// was rolled forward to the uploaded object.
	OutcomeNewVersion
)

func (o SaveOutcome) String() string {
	switch o {
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeNewVersion:
		return "new_version"
	default:
		return "created"
	}
}

// SaveRequest is the metadata of an object the client has uploaded. The
// object URL is derived from ObjectKey, never taken from the client.
type SaveRequest struct {
	FileName  string
	FileType  string
	ObjectKey string
	Size      int64
	Hash      string
	FolderID  *string
}

func (r SaveRequest) validate(ownerID string) error {
	switch {
	case cleanName(r.FileName) == "":
		return fmt.Errorf("%w: fileName is required", common.ErrorValidation)
	case r.FileType == "":
		return fmt.Errorf("%w: fileType is required", common.ErrorValidation)
	case r.ObjectKey == "":
		return fmt.Errorf("%w: objectKey is required", common.ErrorValidation)
	case !ownsKey(ownerID, r.ObjectKey):
		return fmt.Errorf("%w: objectKey is outside the upload namespace", common.ErrorValidation)
	case r.Size < 0:
		return fmt.Errorf("%w: fileSize must not be negative", common.ErrorValidation)
	}
	return nil
}

// ownsKey reports whether key lies inside the upload namespace of ownerID.
func ownsKey(ownerID, key string) bool {
	prefix := common.UploadNamespace(ownerID) + "/"
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok || rest == "" {
		return false
	}
	for _, part := range strings.Split(rest, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

type SaveResult struct {
	File    *models.File
	Outcome SaveOutcome
}

// FileUpdate describes a PATCH on a file. A nil FileName keeps the name.
// When Move is set the file goes into FolderID, or to the root when
// FolderID is nil.
type FileUpdate struct {
	FileName *string
	Move     bool
	FolderID *string
}

// FileService manages file metadata, version history and bulk operations.
type FileService struct {
	base
	archive ArchiveWriter
}

func NewFileService(d Deps, archive ArchiveWriter) *FileService {
	return &FileService{base: newBase(d, "files"), archive: archive}
}

// UploadSignature lets the client upload straight into its namespace of
// the object store.
func (s *FileService) UploadSignature(ctx context.Context, ownerID string) (*models.UploadSignature, error) {
	return s.objects.IssueUploadSignature(ctx, common.UploadNamespace(ownerID))
}

// SaveMetadata records an uploaded object. It is, in order of precedence:
// a duplicate of an owned file with the same hash and name, a new version
// of the owned file with the same name in the same folder, or a new file.
func (s *FileService) SaveMetadata(ctx context.Context, ownerID string, req SaveRequest) (*SaveResult, error) {
	if err := req.validate(ownerID); err != nil {
		return nil, err
	}
	req.FileName = cleanName(req.FileName)

	var result *SaveResult
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Files(tx)

		if req.FolderID != nil {
			if _, err := s.repos.Folders(tx).Get(ctx, ownerID, *req.FolderID); err != nil {
				return fmt.Errorf("folder: %w", err)
			}
		}

		if req.Hash != "" {
			existing, err := repo.FindByHashAndName(ctx, ownerID, req.Hash, req.FileName)
			if err == nil {
				result = &SaveResult{File: existing, Outcome: OutcomeDuplicate}
				return nil
			}
			if !errors.Is(err, common.ErrorNotFound) {
				return err
			}
		}

		next := models.ObjectRef{Key: req.ObjectKey, URL: s.objects.PublicURL(req.ObjectKey), Size: req.Size}
		now := s.now()

		existing, err := repo.FindByNameInFolder(ctx, ownerID, req.FileName, req.FolderID)
		switch {
		case err == nil:
			v := existing.PushVersion(s.newID(), next, req.FileType, req.Hash, now)
			if err := repo.Update(ctx, existing); err != nil {
				return err
			}
			if err := repo.AddVersion(ctx, existing.ID, v); err != nil {
				return err
			}
			result = &SaveResult{File: existing, Outcome: OutcomeNewVersion}
			return nil
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		file := &models.File{
			ID:        s.newID(),
			OwnerID:   ownerID,
			FolderID:  req.FolderID,
			FileName:  req.FileName,
			FileType:  req.FileType,
			Object:    next,
			Hash:      req.Hash,
			Versions:  []models.FileVersion{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.Create(ctx, file); err != nil {
			return err
		}
		result = &SaveResult{File: file, Outcome: OutcomeCreated}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "file metadata saved", "owner_id", ownerID, "file_id", result.File.ID, "outcome", result.Outcome.String())
	return result, nil
}

func (s *FileService) List(ctx context.Context, ownerID string, folderID *string) ([]*models.File, error) {
	return s.repos.Files(s.tx.Conn()).ListByFolder(ctx, ownerID, folderID)
}

func (s *FileService) Get(ctx context.Context, ownerID, id string) (*models.File, error) {
	return s.repos.Files(s.tx.Conn()).Get(ctx, ownerID, id)
}

// DownloadURL returns a presigned URL for the live object of the file.
func (s *FileService) DownloadURL(ctx context.Context, ownerID, id string) (string, *models.File, error) {
	f, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return "", nil, err
	}
	url, err := s.objects.PresignGet(ctx, f.Object.Key)
	if err != nil {
		return "", nil, err
	}
	return url, f, nil
}

// Update renames and/or moves a file. The destination folder must be
// owned by the caller.
func (s *FileService) Update(ctx context.Context, ownerID, id string, u FileUpdate) (*models.File, error) {
	var result *models.File
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Files(tx)
		f, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if u.FileName != nil {
			name := cleanName(*u.FileName)
			if name == "" {
				return fmt.Errorf("%w: fileName is required", common.ErrorValidation)
			}
			f.FileName = name
		}
		if u.Move {
			if u.FolderID != nil {
				if _, err := s.repos.Folders(tx).Get(ctx, ownerID, *u.FolderID); err != nil {
					return fmt.Errorf("folder: %w", err)
				}
			}
			f.FolderID = u.FolderID
		}
		f.UpdatedAt = s.now()
		if err := repo.Update(ctx, f); err != nil {
			return err
		}
		result = f
		return nil
	})
	return result, err
}

// Delete removes a single file. Failing to delete its live object aborts
// the operation; version objects are removed best-effort.
func (s *FileService) Delete(ctx context.Context, ownerID, id string) error {
	repo := s.repos.Files(s.tx.Conn())
	f, err := repo.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if f.Object.Key != "" {
		if err := s.objects.DeleteObject(ctx, f.Object.Key); err != nil {
			return err
		}
	}
	versions := *f
	versions.Object = models.ObjectRef{}
	s.deleteObjects(ctx, []*models.File{&versions})

	if _, err := repo.Delete(ctx, ownerID, []string{f.ID}); err != nil {
		return err
	}
	s.logger.Info(ctx, "file deleted", "owner_id", ownerID, "file_id", f.ID)
	return nil
}

func (s *FileService) ToggleFavorite(ctx context.Context, ownerID, id string) (*models.File, error) {
	var result *models.File
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Files(tx)
		f, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		f.IsFavorite = !f.IsFavorite
		f.UpdatedAt = s.now()
		if err := repo.Update(ctx, f); err != nil {
			return err
		}
		result = f
		return nil
	})
	return result, err
}

// RestoreVersion makes the given version live and keeps the previously live
// state as a version. Restoring that new version undoes the operation.
func (s *FileService) RestoreVersion(ctx context.Context, ownerID, fileID, versionID string) (*models.File, error) {
	var result *models.File
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Files(tx)
		f, err := repo.Get(ctx, ownerID, fileID)
		if err != nil {
			return err
		}
		restored, pushed, err := f.RestoreVersion(versionID, s.newID(), s.now())
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		if err := repo.Update(ctx, f); err != nil {
			return err
		}
		if err := repo.DeleteVersion(ctx, f.ID, restored.ID); err != nil {
			return err
		}
		if err := repo.AddVersion(ctx, f.ID, pushed); err != nil {
			return err
		}
		result = f
		return nil
	})
	return result, err
}
