package memory

import (
	"context"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/dbx"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
)

type FoldersRepository struct {
	s *Store
	tx dbx.DBTX
}

func (r *FoldersRepository) Create(ctx context.Context, f *models.Folder) error {
	defer r.s.lockWrite(r.tx)()

	if _, ok := r.s.folders[f.ID]; ok {
		return common.ErrorAlreadyExists
	}
	r.s.folders[f.ID] = f.Clone()
	return nil
}

func (r *FoldersRepository) Get(ctx context.Context, ownerID, id string) (*models.Folder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	f, ok := r.s.folders[id]
	if !ok || f.OwnerID != ownerID {
		return nil, common.ErrorNotFound
	}
	return f.Clone(), nil
}

func (r *FoldersRepository) GetByShareToken(ctx context.Context, token string) (*models.Folder, error) {
	list := r.filter(func(f *models.Folder) bool {
		return f.Share.Token != nil && *f.Share.Token == token
	})
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	return list[0], nil
}

func (r *FoldersRepository) ListByParent(ctx context.Context, ownerID string, parentID *string) ([]*models.Folder, error) {
	return r.filter(func(f *models.Folder) bool {
		return f.OwnerID == ownerID && strPtrEqual(f.ParentID, parentID)
	}), nil
}

func (r *FoldersRepository) ListByIDs(ctx context.Context, ownerID string, ids []string) ([]*models.Folder, error) {
	set := idSet(ids)
	return r.filter(func(f *models.Folder) bool {
		_, ok := set[f.ID]
		return ok && f.OwnerID == ownerID
	}), nil
}

func (r *FoldersRepository) ListByAncestor(ctx context.Context, ownerID, id string) ([]*models.Folder, error) {
	return r.filter(func(f *models.Folder) bool {
		return f.OwnerID == ownerID && f.Path.Contains(id)
	}), nil
}

func (r *FoldersRepository) Update(ctx context.Context, f *models.Folder) error {
	defer r.s.lockWrite(r.tx)()

	cur, ok := r.s.folders[f.ID]
	if !ok || cur.OwnerID != f.OwnerID {
		return common.ErrorNotFound
	}
	c := f.Clone()
	c.CreatedAt = cur.CreatedAt
	r.s.folders[f.ID] = c
	return nil
}

func (r *FoldersRepository) UpdatePath(ctx context.Context, ownerID, id string, path models.Path) error {
	defer r.s.lockWrite(r.tx)()

	cur, ok := r.s.folders[id]
	if !ok || cur.OwnerID != ownerID {
		return common.ErrorNotFound
	}
	cur.Path = append(models.Path(nil), path...)
	return nil
}

func (r *FoldersRepository) Delete(ctx context.Context, ownerID string, ids []string) (int64, error) {
	defer r.s.lockWrite(r.tx)()

	var n int64
	for _, id := range ids {
		if f, ok := r.s.folders[id]; ok && f.OwnerID == ownerID {
			delete(r.s.folders, id)
			n++
		}
	}
	return n, nil
}

func (r *FoldersRepository) filter(match func(*models.Folder) bool) []*models.Folder {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Folder
	for _, f := range r.s.folders {
		if match(f) {
			out = append(out, f.Clone())
		}
	}
	sortFolders(out)
	return out
}
