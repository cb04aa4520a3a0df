package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/dbx"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
)

const userColumns = `id, first_name, last_name, email, password_hash, is_active,
		verification_token, verification_token_expires,
		reset_password_token, reset_password_token_expires,
		created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) error {
	query :=
		`INSERT INTO users (id, first_name, last_name, email, password_hash, is_active,
		 verification_token, verification_token_expires, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Email, user.PasswordHash, user.IsActive,
		user.VerificationToken, user.VerificationTokenExpires, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
}

func (r *PostgresRepository) GetByVerificationToken(ctx context.Context, tokenHash string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE verification_token = $1`, tokenHash)
}

func (r *PostgresRepository) GetByResetToken(ctx context.Context, tokenHash string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE reset_password_token = $1`, tokenHash)
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User) error {
	query :=
		`UPDATE users SET first_name = $2, last_name = $3, password_hash = $4, is_active = $5,
		 verification_token = $6, verification_token_expires = $7,
		 reset_password_token = $8, reset_password_token_expires = $9, updated_at = $10
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.FirstName, user.LastName, user.PasswordHash, user.IsActive,
		user.VerificationToken, user.VerificationTokenExpires,
		user.ResetPasswordToken, user.ResetPasswordTokenExpires, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOne(res)
}

// SearchByEmailPrefix returns active users whose email starts with prefix,
// ignoring case. The user with excludeID is never returned.
func (r *PostgresRepository) SearchByEmailPrefix(ctx context.Context, prefix, excludeID string, limit int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE is_active AND lower(email) LIKE $1 ESCAPE '\' AND id <> $2
		 ORDER BY email
		 LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, likePrefix(strings.ToLower(prefix)), excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	u := &models.User{}
	err := s.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.IsActive,
		&u.VerificationToken, &u.VerificationTokenExpires,
		&u.ResetPasswordToken, &u.ResetPasswordTokenExpires,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(s string) string {
	return likeEscaper.Replace(s) + "%"
}
