// Package services contains the server-side business logic: the folder tree,
// file metadata with dedup and versions, bulk operations, sharing and
// accounts. Every operation is scoped by the calling owner.
package services

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudra/internal/dbx"
	"github.com/dmitrijs2005/cloudra/internal/logging"
	"github.com/dmitrijs2005/cloudra/internal/server/archive"
	"github.com/dmitrijs2005/cloudra/internal/server/metrics"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
	"github.com/dmitrijs2005/cloudra/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ObjectStorage is the object store holding file contents.
type ObjectStorage interface {
	IssueUploadSignature(ctx context.Context, namespace string) (*models.UploadSignature, error)
	DeleteObject(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string) (string, error)
	PublicURL(key string) string
}

// ArchiveWriter streams remote objects into a ZIP and reports how many made
// it in.
type ArchiveWriter interface {
	Write(ctx context.Context, out io.Writer, entries []archive.Entry) (int, error)
}

// Deps bundles the collaborators shared by all services.
type Deps struct {
	Tx      dbx.TxRunner
	Repos   repomanager.RepositoryManager
	Objects ObjectStorage
	Logger  logging.Logger
	Metrics *metrics.Collector
}

type base struct {
	tx      dbx.TxRunner
	repos   repomanager.RepositoryManager
	objects ObjectStorage
	logger  logging.Logger
	metrics *metrics.Collector
	now     func() time.Time
	newID   func() string
}

func newBase(d Deps, module string) base {
	return base{
		tx:      d.Tx,
		repos:   d.Repos,
		objects: d.Objects,
		logger:  d.Logger.With("module", module),
		metrics: d.Metrics,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// deleteObjects removes the live object and every version object of each
// file. Failures are logged and counted; it returns how many failed.
func (b *base) deleteObjects(ctx context.Context, files []*models.File) int {
	failed := 0
	for _, f := range files {
		for _, key := range objectKeys(f) {
			if err := b.objects.DeleteObject(ctx, key); err != nil {
				failed++
				b.logger.Warn(ctx, "object delete failed", "file_id", f.ID, "key", key, "error", err)
			}
		}
	}
	b.metrics.BestEffortFailure("object_delete", failed)
	return failed
}

// purgeFolders deletes the owned folders among ids together with every
// descendant folder and every file inside any of them. File objects are
// removed best-effort before the records.
func (b *base) purgeFolders(ctx context.Context, ownerID string, ids []string) (int64, error) {
	conn := b.tx.Conn()
	roots, err := b.repos.Folders(conn).ListByIDs(ctx, ownerID, ids)
	if err != nil {
		return 0, err
	}
	if len(roots) == 0 {
		return 0, nil
	}

	seen := map[string]struct{}{}
	var all []string
	add := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			all = append(all, id)
		}
	}
	for _, r := range roots {
		add(r.ID)
		desc, err := b.repos.Folders(conn).ListByAncestor(ctx, ownerID, r.ID)
		if err != nil {
			return 0, err
		}
		for _, d := range desc {
			add(d.ID)
		}
	}

	contained, err := b.repos.Files(conn).ListByFolders(ctx, ownerID, all)
	if err != nil {
		return 0, err
	}
	b.deleteObjects(ctx, contained)

	var removed int64
	err = b.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := b.repos.Files(tx).DeleteByFolders(ctx, ownerID, all); err != nil {
			return err
		}
		n, err := b.repos.Folders(tx).Delete(ctx, ownerID, all)
		removed = n
		return err
	})
	if err != nil {
		return 0, err
	}
	b.logger.Info(ctx, "folders purged", "owner_id", ownerID, "folders", removed, "files", len(contained))
	return removed, nil
}

// rebaseDescendants rewrites the path of every folder below f so that it
// runs through f's current path.
func (b *base) rebaseDescendants(ctx context.Context, tx dbx.DBTX, f *models.Folder) error {
	repo := b.repos.Folders(tx)
	desc, err := repo.ListByAncestor(ctx, f.OwnerID, f.ID)
	if err != nil {
		return err
	}
	prefix := f.ChildPath()
	for _, d := range desc {
		if err := repo.UpdatePath(ctx, f.OwnerID, d.ID, d.Path.Rebase(f.ID, prefix)); err != nil {
			return err
		}
	}
	return nil
}

func objectKeys(f *models.File) []string {
	keys := make([]string, 0, len(f.Versions)+1)
	if f.Object.Key != "" {
		keys = append(keys, f.Object.Key)
	}
	for _, v := range f.Versions {
		if v.Object.Key != "" && v.Object.Key != f.Object.Key {
			keys = append(keys, v.Object.Key)
		}
	}
	return keys
}

func cleanName(s string) string {
	return strings.TrimSpace(s)
}
