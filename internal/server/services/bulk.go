package services

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/dbx"
	"github.com/dmitrijs2005/cloudra/internal/server/archive"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
)

// BulkResult reports how many records a bulk operation touched. Ids the
// caller does not own are silently ignored and not counted.
type BulkResult struct {
	Files   int64 `json:"files"`
	Folders int64 `json:"folders"`
}

// BulkDelete removes the owned files among fileIDs and the owned folders
// among folderIDs, the latter with their whole subtree. Objects are
// deleted best-effort; records are removed regardless.
func (s *FileService) BulkDelete(ctx context.Context, ownerID string, fileIDs, folderIDs []string) (*BulkResult, error) {
	res := &BulkResult{}

	if len(fileIDs) > 0 {
		repo := s.repos.Files(s.tx.Conn())
		files, err := repo.ListByIDs(ctx, ownerID, fileIDs)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			s.deleteObjects(ctx, files)
			ids := make([]string, 0, len(files))
			for _, f := range files {
				ids = append(ids, f.ID)
			}
			n, err := repo.Delete(ctx, ownerID, ids)
			if err != nil {
				return nil, err
			}
			res.Files = n
		}
	}

	if len(folderIDs) > 0 {
		n, err := s.purgeFolders(ctx, ownerID, folderIDs)
		if err != nil {
			return nil, err
		}
		res.Folders = n
	}

	s.logger.Info(ctx, "bulk delete", "owner_id", ownerID, "files", res.Files, "folders", res.Folders)
	return res, nil
}

// BulkMove places the owned files and folders under destination, or at the
// root when destination is nil. Moved folders get their paths recomputed
// together with their descendants.
func (s *FileService) BulkMove(ctx context.Context, ownerID string, fileIDs, folderIDs []string, destination *string) (*BulkResult, error) {
	res := &BulkResult{}
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		folders := s.repos.Folders(tx)

		prefix := models.Path{}
		if destination != nil {
			dest, err := folders.Get(ctx, ownerID, *destination)
			if err != nil {
				return fmt.Errorf("destination folder: %w", err)
			}
			prefix = dest.ChildPath()
		}

		if len(fileIDs) > 0 {
			n, err := s.repos.Files(tx).SetFolder(ctx, ownerID, fileIDs, destination)
			if err != nil {
				return err
			}
			res.Files = n
		}

		if len(folderIDs) == 0 {
			return nil
		}
		moved, err := folders.ListByIDs(ctx, ownerID, folderIDs)
		if err != nil {
			return err
		}
		for _, f := range moved {
			if destination != nil && (*destination == f.ID || prefix.Contains(f.ID)) {
				return fmt.Errorf("%w: folder %q cannot be moved into itself or its subfolder", common.ErrorValidation, f.Name)
			}
		}
		now := s.now()
		for _, f := range moved {
			// An earlier rebase in this loop may have changed f's stored path.
			current, err := folders.Get(ctx, ownerID, f.ID)
			if err != nil {
				return err
			}
			current.ParentID = destination
			current.Path = prefix
			current.UpdatedAt = now
			if err := folders.Update(ctx, current); err != nil {
				return err
			}
			if err := s.rebaseDescendants(ctx, tx, current); err != nil {
				return err
			}
			res.Folders++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "bulk move", "owner_id", ownerID, "files", res.Files, "folders", res.Folders)
	return res, nil
}

// PrepareArchive resolves the owned files among fileIDs into archive
// entries. An empty selection is reported as not found.
func (s *FileService) PrepareArchive(ctx context.Context, ownerID string, fileIDs []string) ([]archive.Entry, error) {
	if len(fileIDs) == 0 {
		return nil, fmt.Errorf("no files selected: %w", common.ErrorNotFound)
	}
	files, err := s.repos.Files(s.tx.Conn()).ListByIDs(ctx, ownerID, fileIDs)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files selected: %w", common.ErrorNotFound)
	}

	entries := make([]archive.Entry, 0, len(files))
	for _, f := range files {
		url, err := s.objects.PresignGet(ctx, f.Object.Key)
		if err != nil {
			s.logger.Warn(ctx, "presign failed, using stored url", "file_id", f.ID, "error", err)
			url = f.Object.URL
		}
		entries = append(entries, archive.Entry{URL: url, Name: f.FileName})
	}
	return entries, nil
}

// WriteArchive streams entries into out as a ZIP. Entries that could not
// be fetched are skipped and counted.
func (s *FileService) WriteArchive(ctx context.Context, out io.Writer, entries []archive.Entry) (int, error) {
	n, err := s.archive.Write(ctx, out, entries)
	if err != nil {
		return n, err
	}
	s.metrics.BestEffortFailure("archive_entry", len(entries)-n)
	return n, nil
}
