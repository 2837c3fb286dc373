package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-auth-service/internal/middleware"
	"github.com/iliyamo/iot-auth-service/internal/response"
	"github.com/iliyamo/iot-auth-service/internal/service"
)

// UserHandler serves the signed-in user's own account. Every route runs
// behind JWTAuth.
type UserHandler struct {
	Users   *service.UserService
	Timeout time.Duration
}

func NewUserHandler(users *service.UserService, timeout time.Duration) *UserHandler {
	return &UserHandler{Users: users, Timeout: timeout}
}

type userPatchReq struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type detailsReq struct {
	FullName       *string `json:"full_name"`
	PhoneNumber    *string `json:"phone_number"`
	Address        *string `json:"address"`
	DateOfBirth    *string `json:"date_of_birth"`
	ProfilePicture *string `json:"profile_picture"`
}

type banReq struct {
	Banned *bool `json:"banned"`
}

func (h *UserHandler) Me(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	u, err := h.Users.Get(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, "User retrieved successfully", u)
}

// List returns the live users of the caller's tenant.
func (h *UserHandler) List(c echo.Context) error {
	cl := middleware.Claims(c)
	if cl == nil {
		return middleware.ErrUnauthorized
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	users, err := h.Users.ListByTenant(ctx, cl.TenantID)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, "Users retrieved successfully", echo.Map{"users": users})
}

func (h *UserHandler) Update(c echo.Context) error {
	var req userPatchReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	u, err := h.Users.Update(ctx, middleware.UserID(c), service.UserPatch{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, "User updated successfully", u)
}

func (h *UserHandler) Delete(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Users.Delete(ctx, middleware.UserID(c)); err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, "User deleted successfully", nil)
}

func (h *UserHandler) GetDetails(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	d, err := h.Users.GetDetails(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, "User details retrieved successfully", d)
}

func (h *UserHandler) UpdateDetails(c echo.Context) error {
	var req detailsReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	d, err := h.Users.UpdateDetails(ctx, middleware.UserID(c), service.DetailsPatch{
		FullName:       req.FullName,
		PhoneNumber:    req.PhoneNumber,
		Address:        req.Address,
		DateOfBirth:    req.DateOfBirth,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, "User details updated successfully", d)
}

// Ban sets the ban flag of another user in the admin's tenant.
func (h *UserHandler) Ban(c echo.Context) error {
	var req banReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Banned == nil {
		return &service.Error{Kind: service.KindBadRequest, Message: "Missing required fields"}
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	u, err := h.Users.SetBanned(ctx, middleware.Claims(c), c.Param("id"), *req.Banned)
	if err != nil {
		return err
	}
	msg := "User unbanned successfully"
	if u.IsBanned {
		msg = "User banned successfully"
	}
	return response.OK(c, http.StatusOK, msg, u)
}
