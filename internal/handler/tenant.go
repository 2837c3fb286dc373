package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-auth-service/internal/middleware"
	"github.com/iliyamo/iot-auth-service/internal/model"
	"github.com/iliyamo/iot-auth-service/internal/response"
	"github.com/iliyamo/iot-auth-service/internal/service"
)

type TenantHandler struct {
	Tenants *service.TenantService
	Timeout time.Duration
}

func NewTenantHandler(tenants *service.TenantService, timeout time.Duration) *TenantHandler {
	return &TenantHandler{Tenants: tenants, Timeout: timeout}
}

type tenantReq struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type tenantPatchReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// Create is reachable with either the tenant secret or a bearer token. An
// existing tenant of the same name is returned with 200.
func (h *TenantHandler) Create(c echo.Context) error {
	var req tenantReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	in := service.TenantInput{Name: req.Name, Description: req.Description}
	var (
		t       *model.Tenant
		created bool
		err     error
	)
	if middleware.HasTenantSecret(c) {
		t, created, err = h.Tenants.BootstrapCreate(ctx, in)
	} else {
		t, created, err = h.Tenants.AuthenticatedCreate(ctx, middleware.Claims(c), in)
	}
	if err != nil {
		return err
	}
	if created {
		return response.OK(c, http.StatusCreated, "Tenant created successfully", t)
	}
	return response.OK(c, http.StatusOK, "Tenant already exists", t)
}

func (h *TenantHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	list, err := h.Tenants.ListActive(ctx)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, "Tenants retrieved successfully", echo.Map{"tenants": list})
}

func (h *TenantHandler) Get(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	t, err := h.Tenants.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, "Tenant retrieved successfully", t)
}

func (h *TenantHandler) Update(c echo.Context) error {
	var req tenantPatchReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	t, err := h.Tenants.Update(ctx, c.Param("id"), service.TenantPatch{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, "Tenant updated successfully", t)
}

// Delete answers 204; a second delete of the same id is 404.
func (h *TenantHandler) Delete(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Tenants.SoftDelete(ctx, c.Param("id"), middleware.UserID(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
