package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/iot-auth-service/internal/model"
)

const mqttColumns = "id,username,password_hash,is_superuser,created_at,updated_at,deleted_at"

// MQTTRepo persists broker credentials in `mqtt_users`. Usernames stay
// reserved after deletion.
type MQTTRepo struct{ DB *sql.DB }

func NewMQTTRepo(db *sql.DB) *MQTTRepo { return &MQTTRepo{DB: db} }

func scanMQTTUser(row scanner) (*model.MQTTUser, error) {
	var m model.MQTTUser
	if err := row.Scan(&m.ID, &m.Username, &m.PasswordHash, &m.IsSuperuser, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MQTTRepo) Create(ctx context.Context, m *model.MQTTUser) error {
	ts := now()
	m.CreatedAt, m.UpdatedAt = ts, ts
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO mqtt_users (id,username,password_hash,is_superuser,created_at,updated_at)
		 VALUES (?,?,?,?,?,?)`,
		m.ID, m.Username, m.PasswordHash, m.IsSuperuser, ts, ts)
	if isDuplicate(err) {
		return ErrUsernameExists
	}
	return err
}

// GetActiveByUsername treats deleted credentials as absent.
func (r *MQTTRepo) GetActiveByUsername(ctx context.Context, username string) (*model.MQTTUser, error) {
	m, err := scanMQTTUser(r.DB.QueryRowContext(ctx,
		"SELECT "+mqttColumns+" FROM mqtt_users WHERE username=? AND deleted_at IS NULL", username))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (r *MQTTRepo) ListActive(ctx context.Context) ([]model.MQTTUser, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+mqttColumns+" FROM mqtt_users WHERE deleted_at IS NULL ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.MQTTUser{}
	for rows.Next() {
		m, err := scanMQTTUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// SoftDelete returns ErrNotFound when no live credential has the username,
// including on a repeated delete.
func (r *MQTTRepo) SoftDelete(ctx context.Context, username string) error {
	ts := now()
	res, err := r.DB.ExecContext(ctx,
		"UPDATE mqtt_users SET deleted_at=?, updated_at=? WHERE username=? AND deleted_at IS NULL",
		ts, ts, username)
	if err != nil {
		return err
	}
	return affectedOne(res)
}
