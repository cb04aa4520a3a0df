package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/dbx"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
)

const fileColumns = `id, owner_id, folder_id, file_name, file_type,
		object_key, object_url, file_size, file_hash,
		is_public, share_token, share_expires, shared_with, is_favorite,
		created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, f *models.File) error {
	query :=
		`INSERT INTO files (id, owner_id, folder_id, file_name, file_type,
		 object_key, object_url, file_size, file_hash,
		 is_public, share_token, share_expires, shared_with, is_favorite, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.OwnerID, f.FolderID, f.FileName, f.FileType,
		f.Object.Key, f.Object.URL, f.Object.Size, f.Hash,
		f.Share.IsPublic, f.Share.Token, f.Share.ExpiresAt, f.Share.SharedWith, f.IsFavorite,
		f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	for _, v := range f.Versions {
		if err := r.AddVersion(ctx, f.ID, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND owner_id = $2`
	return r.getOne(ctx, query, id, ownerID)
}

func (r *PostgresRepository) GetByShareToken(ctx context.Context, token string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE share_token = $1`
	return r.getOne(ctx, query, token)
}

// FindByHashAndName looks for an owned file with the same content hash and
// name, anywhere in the tree.
func (r *PostgresRepository) FindByHashAndName(ctx context.Context, ownerID, hash, fileName string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		 WHERE owner_id = $1 AND file_hash = $2 AND file_name = $3
		 ORDER BY created_at
		 LIMIT 1`
	return r.getOne(ctx, query, ownerID, hash, fileName)
}

func (r *PostgresRepository) FindByNameInFolder(ctx context.Context, ownerID, fileName string, folderID *string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		 WHERE owner_id = $1 AND file_name = $2 AND folder_id IS NOT DISTINCT FROM $3
		 ORDER BY created_at
		 LIMIT 1`
	return r.getOne(ctx, query, ownerID, fileName, folderID)
}

// ListByFolder lists files directly inside folderID; nil lists root files.
func (r *PostgresRepository) ListByFolder(ctx context.Context, ownerID string, folderID *string) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		 WHERE owner_id = $1 AND folder_id IS NOT DISTINCT FROM $2
		 ORDER BY file_name`
	return r.list(ctx, query, ownerID, folderID)
}

func (r *PostgresRepository) ListByIDs(ctx context.Context, ownerID string, ids []string) ([]*models.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + fileColumns + ` FROM files
		 WHERE owner_id = $1 AND id IN (` + dbx.Placeholders(2, len(ids)) + `)`
	return r.list(ctx, query, dbx.StringArgs([]any{ownerID}, ids)...)
}

func (r *PostgresRepository) ListByFolders(ctx context.Context, ownerID string, folderIDs []string) ([]*models.File, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + fileColumns + ` FROM files
		 WHERE owner_id = $1 AND folder_id IN (` + dbx.Placeholders(2, len(folderIDs)) + `)`
	return r.list(ctx, query, dbx.StringArgs([]any{ownerID}, folderIDs)...)
}

func (r *PostgresRepository) Update(ctx context.Context, f *models.File) error {
	query :=
		`UPDATE files SET folder_id = $3, file_name = $4, file_type = $5,
		 object_key = $6, object_url = $7, file_size = $8, file_hash = $9,
		 is_public = $10, share_token = $11, share_expires = $12, shared_with = $13,
		 is_favorite = $14, updated_at = $15
		 WHERE id = $1 AND owner_id = $2`

	res, err := r.db.ExecContext(ctx, query,
		f.ID, f.OwnerID, f.FolderID, f.FileName, f.FileType,
		f.Object.Key, f.Object.URL, f.Object.Size, f.Hash,
		f.Share.IsPublic, f.Share.Token, f.Share.ExpiresAt, f.Share.SharedWith,
		f.IsFavorite, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOne(res)
}

func (r *PostgresRepository) SetFolder(ctx context.Context, ownerID string, ids []string, folderID *string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `UPDATE files SET folder_id = $2, updated_at = now()
		 WHERE owner_id = $1 AND id IN (` + dbx.Placeholders(3, len(ids)) + `)`
	return r.execCount(ctx, query, dbx.StringArgs([]any{ownerID, folderID}, ids)...)
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM files WHERE owner_id = $1 AND id IN (` + dbx.Placeholders(2, len(ids)) + `)`
	return r.execCount(ctx, query, dbx.StringArgs([]any{ownerID}, ids)...)
}

func (r *PostgresRepository) DeleteByFolders(ctx context.Context, ownerID string, folderIDs []string) (int64, error) {
	if len(folderIDs) == 0 {
		return 0, nil
	}
	query := `DELETE FROM files WHERE owner_id = $1 AND folder_id IN (` + dbx.Placeholders(2, len(folderIDs)) + `)`
	return r.execCount(ctx, query, dbx.StringArgs([]any{ownerID}, folderIDs)...)
}

func (r *PostgresRepository) AddVersion(ctx context.Context, fileID string, v models.FileVersion) error {
	query :=
		`INSERT INTO file_versions (id, file_id, object_key, object_url, file_size, file_hash, file_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		v.ID, fileID, v.Object.Key, v.Object.URL, v.Object.Size, v.Hash, v.FileType, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteVersion(ctx context.Context, fileID, versionID string) error {
	query := `DELETE FROM file_versions WHERE id = $1 AND file_id = $2`
	res, err := r.db.ExecContext(ctx, query, versionID, fileID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOne(res)
}

func (r *PostgresRepository) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.File, error) {
	f, err := scanFile(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := r.attachVersions(ctx, []*models.File{f}); err != nil {
		return nil, err
	}
	return f, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.File, error) {
	result, err := r.scanAll(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	// The file rows must be closed first; a transaction runs one query at a time.
	if err := r.attachVersions(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) scanAll(ctx context.Context, query string, args ...any) ([]*models.File, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// attachVersions loads the history of all files in one query.
func (r *PostgresRepository) attachVersions(ctx context.Context, files []*models.File) error {
	if len(files) == 0 {
		return nil
	}
	byID := make(map[string]*models.File, len(files))
	ids := make([]string, 0, len(files))
	for _, f := range files {
		byID[f.ID] = f
		ids = append(ids, f.ID)
	}

	query := `SELECT file_id, id, object_key, object_url, file_size, file_hash, file_type, created_at
		 FROM file_versions
		 WHERE file_id IN (` + dbx.Placeholders(1, len(ids)) + `)
		 ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query, dbx.StringArgs(nil, ids)...)
	if err != nil {
		return fmt.Errorf("failed to select versions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fileID string
		var v models.FileVersion
		if err := rows.Scan(&fileID, &v.ID, &v.Object.Key, &v.Object.URL, &v.Object.Size, &v.Hash, &v.FileType, &v.CreatedAt); err != nil {
			return err
		}
		if f, ok := byID[fileID]; ok {
			f.Versions = append(f.Versions, v)
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.File, error) {
	f := &models.File{}
	err := s.Scan(&f.ID, &f.OwnerID, &f.FolderID, &f.FileName, &f.FileType,
		&f.Object.Key, &f.Object.URL, &f.Object.Size, &f.Hash,
		&f.Share.IsPublic, &f.Share.Token, &f.Share.ExpiresAt, &f.Share.SharedWith, &f.IsFavorite,
		&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}
