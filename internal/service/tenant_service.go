package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/iot-auth-service/internal/model"
	"github.com/iliyamo/iot-auth-service/internal/queue"
	"github.com/iliyamo/iot-auth-service/internal/repository"
	"github.com/iliyamo/iot-auth-service/internal/utils"
)

const maxTenantName = 255

// TenantService is the tenant registry.
type TenantService struct {
	tenants TenantStore
	events  events
}

func NewTenantService(tenants TenantStore, pub queue.Publisher, log *zap.Logger) *TenantService {
	return &TenantService{tenants: tenants, events: events{pub: pub, log: log}}
}

type TenantInput struct {
	Name        string
	Description *string
}

// BootstrapCreate is the tenant-secret path. It returns the live tenant of
// the same name instead of creating a duplicate; created reports which
// happened.
func (s *TenantService) BootstrapCreate(ctx context.Context, in TenantInput) (t *model.Tenant, created bool, err error) {
	return s.create(ctx, in, "")
}

// AuthenticatedCreate behaves like BootstrapCreate for a token holder.
func (s *TenantService) AuthenticatedCreate(ctx context.Context, claims *utils.Claims, in TenantInput) (*model.Tenant, bool, error) {
	if claims == nil || claims.Subject == "" {
		return nil, false, errUnauthorized
	}
	return s.create(ctx, in, claims.Subject)
}

func (s *TenantService) create(ctx context.Context, in TenantInput, actorID string) (*model.Tenant, bool, error) {
	name, err := tenantName(in.Name)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.tenants.GetActiveByName(ctx, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("look up tenant: %w", err)
	}

	t := &model.Tenant{
		ID:          uuid.NewString(),
		Name:        name,
		Description: trimmedOrNil(in.Description),
		IsActive:    true,
	}
	if err := s.tenants.Create(ctx, t); err != nil {
		if !errors.Is(err, repository.ErrNameExists) {
			return nil, false, fmt.Errorf("create tenant: %w", err)
		}
		// a concurrent create won; converge on its row
		existing, err := s.tenants.GetActiveByName(ctx, name)
		if err != nil {
			return nil, false, fmt.Errorf("reload tenant: %w", err)
		}
		return existing, false, nil
	}
	s.events.emit(ctx, queue.AuthEvent{Type: queue.TenantCreated, TenantID: t.ID, Subject: t.Name, ActorID: actorID})
	return t, true, nil
}

func (s *TenantService) Get(ctx context.Context, id string) (*model.Tenant, error) {
	t, err := s.tenants.GetActiveByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (s *TenantService) ListActive(ctx context.Context) ([]model.Tenant, error) {
	list, err := s.tenants.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return list, nil
}

// TenantPatch carries the fields of a partial update; nil means unchanged.
type TenantPatch struct {
	Name        *string
	Description *string
	IsActive    *bool
}

func (s *TenantService) Update(ctx context.Context, id string, p TenantPatch) (*model.Tenant, error) {
	if p.Name == nil && p.Description == nil && p.IsActive == nil {
		return nil, newError(KindBadRequest, "No fields to update")
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		if t.Name, err = tenantName(*p.Name); err != nil {
			return nil, err
		}
	}
	if p.Description != nil {
		t.Description = trimmedOrNil(p.Description)
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}

	switch err := s.tenants.Update(ctx, t); {
	case errors.Is(err, repository.ErrNameExists):
		return nil, newError(KindConflict, "Tenant name already exists")
	case errors.Is(err, repository.ErrNotFound):
		return nil, errTenantNotFound
	case err != nil:
		return nil, fmt.Errorf("update tenant: %w", err)
	}
	return t, nil
}

// SoftDelete hides the tenant. Users keep their tenant_id. Deleting an
// already deleted tenant is not found.
func (s *TenantService) SoftDelete(ctx context.Context, id, actorID string) error {
	err := s.tenants.SoftDelete(ctx, strings.TrimSpace(id))
	if errors.Is(err, repository.ErrNotFound) {
		return errTenantNotFound
	}
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	s.events.emit(ctx, queue.AuthEvent{Type: queue.TenantDeleted, TenantID: id, ActorID: actorID})
	return nil
}

func tenantName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return "", newError(KindValidation, "Validation error", utils.FieldError{Field: "name", Message: "is required"})
	case n > maxTenantName:
		return "", newError(KindValidation, "Validation error", utils.FieldError{Field: "name", Message: "must be at most 255 characters"})
	}
	return name, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
