package users

import (
	"context"

	"github.com/dmitrijs2005/cloudra/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByVerificationToken(ctx context.Context, tokenHash string) (*models.User, error)
	GetByResetToken(ctx context.Context, tokenHash string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	SearchByEmailPrefix(ctx context.Context, prefix, excludeID string, limit int) ([]*models.User, error)
}
