// Package files persists file metadata and version history.
package files

import (
	"context"

	"github.com/dmitrijs2005/cloudra/internal/server/models"
)

// Repository scopes every lookup and mutation by owner. Records owned by
// someone else are reported as common.ErrorNotFound.
type Repository interface {
	// Create stores f together with any versions it already carries.
	Create(ctx context.Context, f *models.File) error
	// Get returns the file with its versions, oldest first.
	Get(ctx context.Context, ownerID, id string) (*models.File, error)
	ListByFolder(ctx context.Context, ownerID string, folderID *string) ([]*models.File, error)
	ListByIDs(ctx context.Context, ownerID string, ids []string) ([]*models.File, error)
	ListByFolders(ctx context.Context, ownerID string, folderIDs []string) ([]*models.File, error)
	FindByHashAndName(ctx context.Context, ownerID, hash, fileName string) (*models.File, error)
	FindByNameInFolder(ctx context.Context, ownerID, fileName string, folderID *string) (*models.File, error)
	// Update writes the live state, placement, sharing and favorite flag.
	// Versions are not touched.
	Update(ctx context.Context, f *models.File) error
	SetFolder(ctx context.Context, ownerID string, ids []string, folderID *string) (int64, error)
	Delete(ctx context.Context, ownerID string, ids []string) (int64, error)
	DeleteByFolders(ctx context.Context, ownerID string, folderIDs []string) (int64, error)
	AddVersion(ctx context.Context, fileID string, v models.FileVersion) error
	DeleteVersion(ctx context.Context, fileID, versionID string) error
	GetByShareToken(ctx context.Context, token string) (*models.File, error)
}
