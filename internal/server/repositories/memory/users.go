package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/dbx"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
)

type UsersRepository struct {
	s *Store
	tx dbx.DBTX
}

func (r *UsersRepository) Create(ctx context.Context, user *models.User) error {
	defer r.s.lockWrite(r.tx)()

	email := strings.ToLower(user.Email)
	for _, u := range r.s.users {
		if u.Email == email {
			return common.ErrorAlreadyExists
		}
	}
	c := user.Clone()
	c.Email = email
	r.s.users[c.ID] = c
	return nil
}

func (r *UsersRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(email)
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *UsersRepository) GetByVerificationToken(ctx context.Context, tokenHash string) (*models.User, error) {
	return r.find(func(u *models.User) bool {
		return u.VerificationToken != nil && *u.VerificationToken == tokenHash
	})
}

func (r *UsersRepository) GetByResetToken(ctx context.Context, tokenHash string) (*models.User, error) {
	return r.find(func(u *models.User) bool {
		return u.ResetPasswordToken != nil && *u.ResetPasswordToken == tokenHash
	})
}

func (r *UsersRepository) Update(ctx context.Context, user *models.User) error {
	defer r.s.lockWrite(r.tx)()

	cur, ok := r.s.users[user.ID]
	if !ok {
		return common.ErrorNotFound
	}
	c := user.Clone()
	c.Email = cur.Email
	c.CreatedAt = cur.CreatedAt
	r.s.users[c.ID] = c
	return nil
}

func (r *UsersRepository) SearchByEmailPrefix(ctx context.Context, prefix, excludeID string, limit int) ([]*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	prefix = strings.ToLower(prefix)
	var out []*models.User
	for _, u := range r.s.users {
		if u.IsActive && u.ID != excludeID && strings.HasPrefix(strings.ToLower(u.Email), prefix) {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *UsersRepository) find(match func(*models.User) bool) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, common.ErrorNotFound
}
