package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/dbx"
	"github.com/dmitrijs2005/cloudra/internal/server/config"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
)

// Kind selects what a share operation applies to.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

const shareTokenBytes = 16

// ShareRequest configures a share link. ExpiresInHours <= 0 means the link
// does not expire.
type ShareRequest struct {
	IsPublic       bool
	ExpiresInHours int
}

// ShareView is the share state of a resource as shown to its owner.
type ShareView struct {
	Settings models.ShareSettings `json:"settings"`
	Link     string               `json:"shareLink,omitempty"`
	Users    []*models.User       `json:"sharedWith"`
}

// SharedResource is what a share token resolves to. Exactly one of File
// and Folder is set.
type SharedResource struct {
	Kind        Kind             `json:"kind"`
	File        *models.File     `json:"file,omitempty"`
	DownloadURL string           `json:"downloadUrl,omitempty"`
	Folder      *models.Folder   `json:"folder,omitempty"`
	Folders     []*models.Folder `json:"folders,omitempty"`
	Files       []*models.File   `json:"files,omitempty"`
}

// ShareService manages share links and per-user grants on files and
// folders.
type ShareService struct {
	base
	frontendURL string
}

func NewShareService(d Deps, cfg *config.Config) *ShareService {
	return &ShareService{
		base:        newBase(d, "share"),
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
	}
}

// Share issues a fresh share token, replacing any previous one.
func (s *ShareService) Share(ctx context.Context, ownerID string, kind Kind, id string, req ShareRequest) (*ShareView, error) {
	token, err := common.MakeRandHexString(shareTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	settings, err := s.mutate(ctx, ownerID, kind, id, func(sh *models.ShareSettings) error {
		sh.Token = &token
		sh.IsPublic = req.IsPublic
		sh.ExpiresAt = nil
		if req.ExpiresInHours > 0 {
			exp := s.now().Add(time.Duration(req.ExpiresInHours) * time.Hour)
			sh.ExpiresAt = &exp
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "share link issued", "owner_id", ownerID, "kind", string(kind), "id", id)
	return s.view(ctx, settings)
}

// Revoke drops the share link. Per-user grants stay.
func (s *ShareService) Revoke(ctx context.Context, ownerID string, kind Kind, id string) (*ShareView, error) {
	settings, err := s.mutate(ctx, ownerID, kind, id, func(sh *models.ShareSettings) error {
		sh.Token = nil
		sh.ExpiresAt = nil
		sh.IsPublic = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, settings)
}

// AddUser grants an active user other than the owner access.
func (s *ShareService) AddUser(ctx context.Context, ownerID string, kind Kind, id, userID string) (*ShareView, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", common.ErrorValidation)
	}
	if userID == ownerID {
		return nil, fmt.Errorf("%w: cannot share with yourself", common.ErrorValidation)
	}
	target, err := s.repos.Users(s.tx.Conn()).GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	if !target.IsActive {
		return nil, fmt.Errorf("%w: user is not active", common.ErrorValidation)
	}
	settings, err := s.mutate(ctx, ownerID, kind, id, func(sh *models.ShareSettings) error {
		sh.SharedWith = sh.SharedWith.Add(userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, settings)
}

func (s *ShareService) RemoveUser(ctx context.Context, ownerID string, kind Kind, id, userID string) (*ShareView, error) {
	settings, err := s.mutate(ctx, ownerID, kind, id, func(sh *models.ShareSettings) error {
		sh.SharedWith = sh.SharedWith.Remove(userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, settings)
}

// Settings returns the share state together with the users it is shared
// with.
func (s *ShareService) Settings(ctx context.Context, ownerID string, kind Kind, id string) (*ShareView, error) {
	conn := s.tx.Conn()
	var settings models.ShareSettings
	switch kind {
	case KindFile:
		f, err := s.repos.Files(conn).Get(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		settings = f.Share
	case KindFolder:
		f, err := s.repos.Folders(conn).Get(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		settings = f.Share
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", common.ErrorValidation, kind)
	}
	return s.view(ctx, &settings)
}

// Resolve looks up a share token. viewerID may be empty for anonymous
// callers. Links that are expired, or private links opened by someone who
// is neither the owner nor a grantee, are reported as not found.
func (s *ShareService) Resolve(ctx context.Context, token, viewerID string) (*SharedResource, error) {
	conn := s.tx.Conn()
	now := s.now()

	f, err := s.repos.Files(conn).GetByShareToken(ctx, token)
	switch {
	case err == nil:
		if !visible(f.Share, f.OwnerID, viewerID, now) {
			return nil, fmt.Errorf("share: %w", common.ErrorNotFound)
		}
		url, err := s.objects.PresignGet(ctx, f.Object.Key)
		if err != nil {
			return nil, err
		}
		if viewerID != f.OwnerID {
			f.Versions = nil
		}
		return &SharedResource{Kind: KindFile, File: f, DownloadURL: url}, nil
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}

	folder, err := s.repos.Folders(conn).GetByShareToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("share: %w", err)
	}
	if !visible(folder.Share, folder.OwnerID, viewerID, now) {
		return nil, fmt.Errorf("share: %w", common.ErrorNotFound)
	}
	children, err := s.repos.Folders(conn).ListByParent(ctx, folder.OwnerID, &folder.ID)
	if err != nil {
		return nil, err
	}
	files, err := s.repos.Files(conn).ListByFolder(ctx, folder.OwnerID, &folder.ID)
	if err != nil {
		return nil, err
	}
	if viewerID != folder.OwnerID {
		for _, f := range files {
			f.Versions = nil
		}
	}
	return &SharedResource{Kind: KindFolder, Folder: folder, Folders: children, Files: files}, nil
}

func visible(sh models.ShareSettings, ownerID, viewerID string, now time.Time) bool {
	if sh.Expired(now) {
		return false
	}
	if sh.IsPublic {
		return true
	}
	return viewerID != "" && (viewerID == ownerID || sh.SharedWith.Contains(viewerID))
}

// mutate applies fn to the share settings of an owned file or folder in a
// transaction and returns the stored result.
func (s *ShareService) mutate(ctx context.Context, ownerID string, kind Kind, id string, fn func(*models.ShareSettings) error) (*models.ShareSettings, error) {
	var out models.ShareSettings
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		switch kind {
		case KindFile:
			repo := s.repos.Files(tx)
			f, err := repo.Get(ctx, ownerID, id)
			if err != nil {
				return err
			}
			if err := fn(&f.Share); err != nil {
				return err
			}
			f.UpdatedAt = s.now()
			out = f.Share
			return repo.Update(ctx, f)
		case KindFolder:
			repo := s.repos.Folders(tx)
			f, err := repo.Get(ctx, ownerID, id)
			if err != nil {
				return err
			}
			if err := fn(&f.Share); err != nil {
				return err
			}
			f.UpdatedAt = s.now()
			out = f.Share
			return repo.Update(ctx, f)
		default:
			return fmt.Errorf("%w: unknown kind %q", common.ErrorValidation, kind)
		}
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ShareService) view(ctx context.Context, settings *models.ShareSettings) (*ShareView, error) {
	v := &ShareView{Settings: *settings, Users: []*models.User{}}
	if settings.Token != nil {
		v.Link = s.frontendURL + "/share/" + *settings.Token
	}
	repo := s.repos.Users(s.tx.Conn())
	for _, id := range settings.SharedWith {
		u, err := repo.GetByID(ctx, id)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		v.Users = append(v.Users, u)
	}
	return v, nil
}
