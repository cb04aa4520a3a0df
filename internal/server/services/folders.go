package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/dbx"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
)

// FolderUpdate describes a PATCH on a folder. A nil Name keeps the name.
// When Move is set the folder goes under ParentID, or to the root when
// ParentID is nil.
type FolderUpdate struct {
	Name     *string
	Move     bool
	ParentID *string
}

// FolderService manages the folder tree and keeps ancestor paths
// consistent.
type FolderService struct {
	base
}

func NewFolderService(d Deps) *FolderService {
	return &FolderService{base: newBase(d, "folders")}
}

// Create adds a folder under parentID, or at the root when parentID is nil.
func (s *FolderService) Create(ctx context.Context, ownerID, name string, parentID *string) (*models.Folder, error) {
	name = cleanName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is required", common.ErrorValidation)
	}

	now := s.now()
	folder := &models.Folder{
		ID:        s.newID(),
		OwnerID:   ownerID,
		Name:      name,
		Path:      models.Path{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	conn := s.tx.Conn()
	if parentID != nil {
		parent, err := s.repos.Folders(conn).Get(ctx, ownerID, *parentID)
		if err != nil {
			return nil, fmt.Errorf("parent folder: %w", err)
		}
		folder.ParentID = &parent.ID
		folder.Path = parent.ChildPath()
	}

	if err := s.repos.Folders(conn).Create(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *FolderService) List(ctx context.Context, ownerID string, parentID *string) ([]*models.Folder, error) {
	return s.repos.Folders(s.tx.Conn()).ListByParent(ctx, ownerID, parentID)
}

func (s *FolderService) Get(ctx context.Context, ownerID, id string) (*models.Folder, error) {
	return s.repos.Folders(s.tx.Conn()).Get(ctx, ownerID, id)
}

// Update renames and/or moves a folder. Renames are propagated into the
// paths of all descendants; a move recomputes the folder's own path and
// rebases every descendant onto it. All of it happens in one transaction.
func (s *FolderService) Update(ctx context.Context, ownerID, id string, u FolderUpdate) (*models.Folder, error) {
	var result *models.Folder
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Folders(tx)
		folder, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}

		renamed := false
		if u.Name != nil {
			name := cleanName(*u.Name)
			if name == "" {
				return fmt.Errorf("%w: folder name is required", common.ErrorValidation)
			}
			renamed = name != folder.Name
			folder.Name = name
		}

		if u.Move {
			if err := s.placeUnder(ctx, tx, folder, u.ParentID); err != nil {
				return err
			}
		}

		folder.UpdatedAt = s.now()
		if err := repo.Update(ctx, folder); err != nil {
			return err
		}

		switch {
		case u.Move:
			err = s.rebaseDescendants(ctx, tx, folder)
		case renamed:
			err = s.propagateRename(ctx, tx, folder)
		}
		if err != nil {
			return err
		}
		result = folder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// placeUnder points folder at parentID and recomputes its own path. Moving a
// folder into itself or below itself is rejected.
func (s *FolderService) placeUnder(ctx context.Context, tx dbx.DBTX, folder *models.Folder, parentID *string) error {
	if parentID == nil {
		folder.ParentID = nil
		folder.Path = models.Path{}
		return nil
	}
	if *parentID == folder.ID {
		return fmt.Errorf("%w: folder cannot be moved into itself", common.ErrorValidation)
	}
	parent, err := s.repos.Folders(tx).Get(ctx, folder.OwnerID, *parentID)
	if err != nil {
		return fmt.Errorf("parent folder: %w", err)
	}
	if parent.Path.Contains(folder.ID) {
		return fmt.Errorf("%w: folder cannot be moved into its own subfolder", common.ErrorValidation)
	}
	folder.ParentID = &parent.ID
	folder.Path = parent.ChildPath()
	return nil
}

// propagateRename patches the name of folder inside every path that
// references it. No other path entry is touched.
func (s *FolderService) propagateRename(ctx context.Context, tx dbx.DBTX, folder *models.Folder) error {
	repo := s.repos.Folders(tx)
	desc, err := repo.ListByAncestor(ctx, folder.OwnerID, folder.ID)
	if err != nil {
		return err
	}
	for _, d := range desc {
		if err := repo.UpdatePath(ctx, folder.OwnerID, d.ID, d.Path.Rename(folder.ID, folder.Name)); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the folder with its whole subtree and contained files.
func (s *FolderService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.repos.Folders(s.tx.Conn()).Get(ctx, ownerID, id); err != nil {
		return err
	}
	_, err := s.purgeFolders(ctx, ownerID, []string{id})
	return err
}

func (s *FolderService) ToggleFavorite(ctx context.Context, ownerID, id string) (*models.Folder, error) {
	var result *models.Folder
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Folders(tx)
		folder, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		folder.IsFavorite = !folder.IsFavorite
		folder.UpdatedAt = s.now()
		if err := repo.Update(ctx, folder); err != nil {
			return err
		}
		result = folder
		return nil
	})
	return result, err
}
