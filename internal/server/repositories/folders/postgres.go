package folders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/dbx"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
)

const folderColumns = `id, owner_id, name, parent_id, path,
		is_public, share_token, share_expires, shared_with, is_favorite,
		created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, f *models.Folder) error {
	query :=
		`INSERT INTO folders (id, owner_id, name, parent_id, path,
		 is_public, share_token, share_expires, shared_with, is_favorite, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.OwnerID, f.Name, f.ParentID, f.Path,
		f.Share.IsPublic, f.Share.Token, f.Share.ExpiresAt, f.Share.SharedWith, f.IsFavorite,
		f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (*models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE id = $1 AND owner_id = $2`
	return r.getOne(ctx, query, id, ownerID)
}

func (r *PostgresRepository) GetByShareToken(ctx context.Context, token string) (*models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE share_token = $1`
	return r.getOne(ctx, query, token)
}

// ListByParent lists direct children of parentID; nil lists root folders.
func (r *PostgresRepository) ListByParent(ctx context.Context, ownerID string, parentID *string) ([]*models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders
		 WHERE owner_id = $1 AND parent_id IS NOT DISTINCT FROM $2
		 ORDER BY name`
	return r.list(ctx, query, ownerID, parentID)
}

func (r *PostgresRepository) ListByIDs(ctx context.Context, ownerID string, ids []string) ([]*models.Folder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + folderColumns + ` FROM folders
		 WHERE owner_id = $1 AND id IN (` + dbx.Placeholders(2, len(ids)) + `)`
	return r.list(ctx, query, dbx.StringArgs([]any{ownerID}, ids)...)
}

func (r *PostgresRepository) ListByAncestor(ctx context.Context, ownerID, id string) ([]*models.Folder, error) {
	// Containment ignores the name key, so {"id": ...} alone matches.
	query := `SELECT ` + folderColumns + ` FROM folders
		 WHERE owner_id = $1 AND path @> jsonb_build_array(jsonb_build_object('id', $2::text))`
	return r.list(ctx, query, ownerID, id)
}

func (r *PostgresRepository) Update(ctx context.Context, f *models.Folder) error {
	query :=
		`UPDATE folders SET name = $3, parent_id = $4, path = $5,
		 is_public = $6, share_token = $7, share_expires = $8, shared_with = $9,
		 is_favorite = $10, updated_at = $11
		 WHERE id = $1 AND owner_id = $2`

	res, err := r.db.ExecContext(ctx, query,
		f.ID, f.OwnerID, f.Name, f.ParentID, f.Path,
		f.Share.IsPublic, f.Share.Token, f.Share.ExpiresAt, f.Share.SharedWith,
		f.IsFavorite, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOne(res)
}

func (r *PostgresRepository) UpdatePath(ctx context.Context, ownerID, id string, path models.Path) error {
	query := `UPDATE folders SET path = $3 WHERE id = $1 AND owner_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, ownerID, path)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOne(res)
}

// Delete removes the owned folders among ids and reports how many went.
func (r *PostgresRepository) Delete(ctx context.Context, ownerID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM folders WHERE owner_id = $1 AND id IN (` + dbx.Placeholders(2, len(ids)) + `)`
	res, err := r.db.ExecContext(ctx, query, dbx.StringArgs([]any{ownerID}, ids)...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Folder, error) {
	f, err := scanFolder(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Folder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select folders: %w", err)
	}
	defer rows.Close()

	var result []*models.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanFolder(s scanner) (*models.Folder, error) {
	f := &models.Folder{}
	err := s.Scan(&f.ID, &f.OwnerID, &f.Name, &f.ParentID, &f.Path,
		&f.Share.IsPublic, &f.Share.Token, &f.Share.ExpiresAt, &f.Share.SharedWith, &f.IsFavorite,
		&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}
