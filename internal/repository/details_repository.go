package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/iot-auth-service/internal/model"
)

// DetailsRepo stores the 1:1 profile rows in `user_details`.
type DetailsRepo struct{ DB *sql.DB }

func NewDetailsRepo(db *sql.DB) *DetailsRepo { return &DetailsRepo{DB: db} }

// GetActiveByUserID returns the live details of a user. Rows soft-deleted by
// a user deletion are never returned.
func (r *DetailsRepo) GetActiveByUserID(ctx context.Context, userID string) (*model.UserDetails, error) {
	var d model.UserDetails
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,user_id,full_name,phone_number,address,date_of_birth,profile_picture,created_at,updated_at
		 FROM user_details WHERE user_id=? AND deleted_at IS NULL`, userID).
		Scan(&d.ID, &d.UserID, &d.FullName, &d.PhoneNumber, &d.Address, &d.DateOfBirth,
			&d.ProfilePicture, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// Save inserts or overwrites the details row of d.UserID.
func (r *DetailsRepo) Save(ctx context.Context, d *model.UserDetails) error {
	existing, err := r.GetActiveByUserID(ctx, d.UserID)
	switch {
	case errors.Is(err, ErrNotFound):
		err = r.insert(ctx, d)
		if !errors.Is(err, ErrConflict) {
			return err
		}
		// lost an insert race; fall through to update the winner's row
	case err != nil:
		return err
	default:
		d.ID = existing.ID
		d.CreatedAt = existing.CreatedAt
	}
	return r.update(ctx, d)
}

func (r *DetailsRepo) insert(ctx context.Context, d *model.UserDetails) error {
	ts := now()
	d.ID = uuid.NewString()
	d.CreatedAt, d.UpdatedAt = ts, ts
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO user_details (id,user_id,full_name,phone_number,address,date_of_birth,profile_picture,created_at,updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		d.ID, d.UserID, nullString(d.FullName), nullString(d.PhoneNumber), nullString(d.Address),
		nullString(d.DateOfBirth), nullString(d.ProfilePicture), ts, ts)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

func (r *DetailsRepo) update(ctx context.Context, d *model.UserDetails) error {
	d.UpdatedAt = now()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE user_details SET full_name=?, phone_number=?, address=?, date_of_birth=?, profile_picture=?, updated_at=?
		 WHERE user_id=? AND deleted_at IS NULL`,
		nullString(d.FullName), nullString(d.PhoneNumber), nullString(d.Address),
		nullString(d.DateOfBirth), nullString(d.ProfilePicture), d.UpdatedAt, d.UserID)
	if err != nil {
		return err
	}
	return affectedOne(res)
}
