// Package folders persists the folder tree and its denormalized ancestor
// paths.
package folders

import (
	"context"

	"github.com/dmitrijs2005/cloudra/internal/server/models"
)

// Repository scopes every lookup and mutation by owner. Records owned by
// someone else are reported as common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, folder *models.Folder) error
	Get(ctx context.Context, ownerID, id string) (*models.Folder, error)
	ListByParent(ctx context.Context, ownerID string, parentID *string) ([]*models.Folder, error)
	ListByIDs(ctx context.Context, ownerID string, ids []string) ([]*models.Folder, error)
	// ListByAncestor returns every folder whose path contains id.
	ListByAncestor(ctx context.Context, ownerID, id string) ([]*models.Folder, error)
	Update(ctx context.Context, folder *models.Folder) error
	UpdatePath(ctx context.Context, ownerID, id string, path models.Path) error
	Delete(ctx context.Context, ownerID string, ids []string) (int64, error)
	GetByShareToken(ctx context.Context, token string) (*models.Folder, error)
}
