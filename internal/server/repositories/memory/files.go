package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/dbx"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
)

type FilesRepository struct {
	s *Store
	tx dbx.DBTX
}

func (r *FilesRepository) Create(ctx context.Context, f *models.File) error {
	defer r.s.lockWrite(r.tx)()

	if _, ok := r.s.files[f.ID]; ok {
		return common.ErrorAlreadyExists
	}
	r.s.files[f.ID] = f.Clone()
	return nil
}

func (r *FilesRepository) Get(ctx context.Context, ownerID, id string) (*models.File, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	f, ok := r.s.files[id]
	if !ok || f.OwnerID != ownerID {
		return nil, common.ErrorNotFound
	}
	return f.Clone(), nil
}

func (r *FilesRepository) GetByShareToken(ctx context.Context, token string) (*models.File, error) {
	return r.first(func(f *models.File) bool {
		return f.Share.Token != nil && *f.Share.Token == token
	})
}

func (r *FilesRepository) FindByHashAndName(ctx context.Context, ownerID, hash, fileName string) (*models.File, error) {
	return r.first(func(f *models.File) bool {
		return f.OwnerID == ownerID && f.Hash == hash && f.FileName == fileName
	})
}

func (r *FilesRepository) FindByNameInFolder(ctx context.Context, ownerID, fileName string, folderID *string) (*models.File, error) {
	return r.first(func(f *models.File) bool {
		return f.OwnerID == ownerID && f.FileName == fileName && strPtrEqual(f.FolderID, folderID)
	})
}

func (r *FilesRepository) ListByFolder(ctx context.Context, ownerID string, folderID *string) ([]*models.File, error) {
	return r.filter(func(f *models.File) bool {
		return f.OwnerID == ownerID && strPtrEqual(f.FolderID, folderID)
	}), nil
}

func (r *FilesRepository) ListByIDs(ctx context.Context, ownerID string, ids []string) ([]*models.File, error) {
	set := idSet(ids)
	return r.filter(func(f *models.File) bool {
		_, ok := set[f.ID]
		return ok && f.OwnerID == ownerID
	}), nil
}

func (r *FilesRepository) ListByFolders(ctx context.Context, ownerID string, folderIDs []string) ([]*models.File, error) {
	set := idSet(folderIDs)
	return r.filter(func(f *models.File) bool {
		if f.OwnerID != ownerID || f.FolderID == nil {
			return false
		}
		_, ok := set[*f.FolderID]
		return ok
	}), nil
}

func (r *FilesRepository) Update(ctx context.Context, f *models.File) error {
	defer r.s.lockWrite(r.tx)()

	cur, ok := r.s.files[f.ID]
	if !ok || cur.OwnerID != f.OwnerID {
		return common.ErrorNotFound
	}
	c := f.Clone()
	c.Versions = cur.Versions
	c.CreatedAt = cur.CreatedAt
	r.s.files[f.ID] = c
	return nil
}

func (r *FilesRepository) SetFolder(ctx context.Context, ownerID string, ids []string, folderID *string) (int64, error) {
	defer r.s.lockWrite(r.tx)()

	var n int64
	now := time.Now()
	for _, id := range ids {
		f, ok := r.s.files[id]
		if !ok || f.OwnerID != ownerID {
			continue
		}
		if folderID == nil {
			f.FolderID = nil
		} else {
			dest := *folderID
			f.FolderID = &dest
		}
		f.UpdatedAt = now
		n++
	}
	return n, nil
}

func (r *FilesRepository) Delete(ctx context.Context, ownerID string, ids []string) (int64, error) {
	defer r.s.lockWrite(r.tx)()

	var n int64
	for _, id := range ids {
		if f, ok := r.s.files[id]; ok && f.OwnerID == ownerID {
			delete(r.s.files, id)
			n++
		}
	}
	return n, nil
}

func (r *FilesRepository) DeleteByFolders(ctx context.Context, ownerID string, folderIDs []string) (int64, error) {
	defer r.s.lockWrite(r.tx)()

	set := idSet(folderIDs)
	var n int64
	for id, f := range r.s.files {
		if f.OwnerID != ownerID || f.FolderID == nil {
			continue
		}
		if _, ok := set[*f.FolderID]; ok {
			delete(r.s.files, id)
			n++
		}
	}
	return n, nil
}

func (r *FilesRepository) AddVersion(ctx context.Context, fileID string, v models.FileVersion) error {
	defer r.s.lockWrite(r.tx)()

	f, ok := r.s.files[fileID]
	if !ok {
		return common.ErrorNotFound
	}
	f.Versions = append(f.Versions, v)
	return nil
}

func (r *FilesRepository) DeleteVersion(ctx context.Context, fileID, versionID string) error {
	defer r.s.lockWrite(r.tx)()

	f, ok := r.s.files[fileID]
	if !ok {
		return common.ErrorNotFound
	}
	for i, v := range f.Versions {
		if v.ID == versionID {
			f.Versions = append(f.Versions[:i:i], f.Versions[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r *FilesRepository) first(match func(*models.File) bool) (*models.File, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var hits []*models.File
	for _, f := range r.s.files {
		if match(f) {
			hits = append(hits, f)
		}
	}
	if len(hits) == 0 {
		return nil, common.ErrorNotFound
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].CreatedAt.Before(hits[j].CreatedAt) })
	return hits[0].Clone(), nil
}

func (r *FilesRepository) filter(match func(*models.File) bool) []*models.File {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.File
	for _, f := range r.s.files {
		if match(f) {
			out = append(out, f.Clone())
		}
	}
	sortFiles(out)
	return out
}
