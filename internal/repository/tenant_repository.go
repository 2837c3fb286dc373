package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/iot-auth-service/internal/model"
)

const tenantColumns = "id,name,description,is_active,created_at,updated_at,deleted_at"

// TenantRepo persists tenants. Live tenant names are unique case-insensitively
// through the active_name column, which deletion clears.
type TenantRepo struct{ DB *sql.DB }

func NewTenantRepo(db *sql.DB) *TenantRepo { return &TenantRepo{DB: db} }

func nameKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func scanTenant(row scanner) (*model.Tenant, error) {
	var t model.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.IsActive, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts t, failing with ErrNameExists when a live tenant already
// carries the name.
func (r *TenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	ts := now()
	t.CreatedAt, t.UpdatedAt = ts, ts
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO tenants (id,name,active_name,description,is_active,created_at,updated_at)
		 VALUES (?,?,?,?,?,?,?)`,
		t.ID, t.Name, nameKey(t.Name), nullString(t.Description), t.IsActive, ts, ts)
	if isDuplicate(err) {
		return ErrNameExists
	}
	return err
}

func (r *TenantRepo) GetActiveByID(ctx context.Context, id string) (*model.Tenant, error) {
	t, err := scanTenant(r.DB.QueryRowContext(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE id=? AND deleted_at IS NULL", id))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (r *TenantRepo) GetActiveByName(ctx context.Context, name string) (*model.Tenant, error) {
	t, err := scanTenant(r.DB.QueryRowContext(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE active_name=? AND deleted_at IS NULL", nameKey(name)))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// ListActive returns every tenant that is not soft-deleted.
func (r *TenantRepo) ListActive(ctx context.Context) ([]model.Tenant, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE deleted_at IS NULL ORDER BY created_at, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Update writes name, description and is_active of a live tenant.
func (r *TenantRepo) Update(ctx context.Context, t *model.Tenant) error {
	t.UpdatedAt = now()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tenants SET name=?, active_name=?, description=?, is_active=?, updated_at=?
		 WHERE id=? AND deleted_at IS NULL`,
		t.Name, nameKey(t.Name), nullString(t.Description), t.IsActive, t.UpdatedAt, t.ID)
	if isDuplicate(err) {
		return ErrNameExists
	}
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// SoftDelete marks a live tenant deleted. Users keep their tenant_id.
func (r *TenantRepo) SoftDelete(ctx context.Context, id string) error {
	ts := now()
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tenants SET deleted_at=?, updated_at=?, active_name=NULL WHERE id=? AND deleted_at IS NULL",
		ts, ts, id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}
