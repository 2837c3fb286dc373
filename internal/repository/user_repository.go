package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/iot-auth-service/internal/model"
)

const userColumns = "id,tenant_id,username,email,password_hash,role,is_banned,created_at,updated_at,deleted_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

type scanner interface{ Scan(dest ...any) error }

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.TenantID, &u.Username, &u.Email, &u.PasswordHash,
		&u.Role, &u.IsBanned, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts u. Email is stored lower-cased.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(u.Email)
	ts := now()
	u.CreatedAt, u.UpdatedAt = ts, ts
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (id,tenant_id,username,email,active_username,active_email,password_hash,role,is_banned,created_at,updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.TenantID, u.Username, u.Email, u.Username, u.Email, u.PasswordHash, u.Role, u.IsBanned, ts, ts)
	return userWriteErr(err)
}

func userWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case duplicateOn(err, "uq_users_tenant_email", "users.active_email"):
		return ErrEmailExists
	case duplicateOn(err, "uq_users_tenant_username", "users.active_username"):
		return ErrUsernameExists
	case isDuplicate(err):
		return ErrConflict
	}
	return err
}

// GetActiveByEmail finds a live account by email. An empty tenantID searches
// every tenant and fails with ErrAmbiguous on more than one match.
func (r *UserRepo) GetActiveByEmail(ctx context.Context, tenantID, email string) (*model.User, error) {
	return r.findOne(ctx, "email", tenantID, strings.ToLower(email))
}

// GetActiveByUsername is GetActiveByEmail for usernames.
func (r *UserRepo) GetActiveByUsername(ctx context.Context, tenantID, username string) (*model.User, error) {
	return r.findOne(ctx, "username", tenantID, username)
}

func (r *UserRepo) findOne(ctx context.Context, column, tenantID, value string) (*model.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE " + column + "=? AND deleted_at IS NULL"
	args := []any{value}
	if tenantID != "" {
		query += " AND tenant_id=?"
		args = append(args, tenantID)
	}
	rows, err := r.DB.QueryContext(ctx, query+" LIMIT 2", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return found[0], nil
	}
	return nil, ErrAmbiguous
}

// GetActiveByID fetches a live user by id.
func (r *UserRepo) GetActiveByID(ctx context.Context, id string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? AND deleted_at IS NULL", id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// ListActiveByTenant returns the live users of a tenant, oldest first.
func (r *UserRepo) ListActiveByTenant(ctx context.Context, tenantID string) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE tenant_id=? AND deleted_at IS NULL ORDER BY created_at, username",
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Update writes the mutable account fields of a live user.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(u.Email)
	u.UpdatedAt = now()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET username=?, email=?, active_username=?, active_email=?, password_hash=?, role=?, updated_at=?
		 WHERE id=? AND deleted_at IS NULL`,
		u.Username, u.Email, u.Username, u.Email, u.PasswordHash, u.Role, u.UpdatedAt, u.ID)
	if err != nil {
		return userWriteErr(err)
	}
	return affectedOne(res)
}

// SetBanned flips the ban flag of a live user.
func (r *UserRepo) SetBanned(ctx context.Context, id string, banned bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_banned=?, updated_at=? WHERE id=? AND deleted_at IS NULL",
		banned, now(), id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// SoftDelete marks the user deleted, releases its username and email,
// soft-deletes its details and revokes its refresh tokens in one transaction.
func (r *UserRepo) SoftDelete(ctx context.Context, id string) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ts := now()
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET deleted_at=?, updated_at=?, active_username=NULL, active_email=NULL
		 WHERE id=? AND deleted_at IS NULL`, ts, ts, id)
	if err != nil {
		return err
	}
	if err = affectedOne(res); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE user_details SET deleted_at=?, updated_at=? WHERE user_id=? AND deleted_at IS NULL",
		ts, ts, id); err != nil {
		return fmt.Errorf("cascade details: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		ts, id); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}
