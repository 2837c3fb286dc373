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

const (
	RefreshCookie     = "refresh_token"
	refreshCookiePath = "/auth"
)

// AuthHandler serves registration, login and the session endpoints.
type AuthHandler struct {
	Auth         *service.AuthService
	Tokens       *service.TokenService
	CookieSecure bool
	Timeout      time.Duration
}

func NewAuthHandler(auth *service.AuthService, tokens *service.TokenService, cookieSecure bool, timeout time.Duration) *AuthHandler {
	return &AuthHandler{Auth: auth, Tokens: tokens, CookieSecure: cookieSecure, Timeout: timeout}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}

type loginReq struct {
	EmailOrUsername string `json:"email_or_username"`
	Password        string `json:"password"`
	TenantID        string `json:"tenant_id"`
	RedirectURI     string `json:"redirect_uri"`
	State           string `json:"state"`
	Nonce           string `json:"nonce"`
}

type userPart struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type sessionResp struct {
	ID          string    `json:"id,omitempty"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	User        *userPart `json:"user,omitempty"`
	RedirectURL string    `json:"redirect_url,omitempty"`
}

func newUserPart(u *model.User) *userPart {
	return &userPart{ID: u.ID, TenantID: u.TenantID, Username: u.Username, Email: u.Email, Role: u.Role}
}

func newSession(pair service.TokenPair) sessionResp {
	return sessionResp{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(pair.AccessExpiresAt).Round(time.Second).Seconds()),
	}
}

// Register creates an account, signs it in and sets the refresh cookie.
// Admin accounts need the tenant secret header as well.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	u, pair, err := h.Auth.Register(ctx, service.RegisterInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		TenantID:   req.TenantID,
		AllowAdmin: middleware.HasTenantSecret(c),
	})
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, pair)
	resp := newSession(pair)
	resp.ID = u.ID
	resp.User = newUserPart(u)
	return response.OK(c, http.StatusCreated, "User registered successfully", resp)
}

// Login returns an access token in the body and the refresh token as an
// HTTP-only cookie. An SSO login also returns the redirect to follow.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	res, err := h.Auth.Login(ctx, service.LoginInput{
		Identifier:  req.EmailOrUsername,
		Password:    req.Password,
		TenantID:    req.TenantID,
		RedirectURI: req.RedirectURI,
		State:       req.State,
		Nonce:       req.Nonce,
	})
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, res.Tokens)
	resp := newSession(res.Tokens)
	resp.User = newUserPart(res.User)
	resp.RedirectURL = res.RedirectURL
	return response.OK(c, http.StatusOK, "Login successful", resp)
}

// Refresh rotates the refresh cookie and returns a new access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var raw string
	if ck, err := c.Cookie(RefreshCookie); err == nil {
		raw = ck.Value
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	pair, _, err := h.Tokens.Refresh(ctx, raw)
	if err != nil {
		if service.KindOf(err) == service.KindUnauthorized {
			h.clearRefreshCookie(c)
		}
		return err
	}
	h.setRefreshCookie(c, pair)
	return response.OK(c, http.StatusOK, "Token refreshed successfully", newSession(pair))
}

type verifyResp struct {
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Verify echoes the claims of the bearer token. JWTAuth has already
// checked the token and the account.
func (h *AuthHandler) Verify(c echo.Context) error {
	cl := middleware.Claims(c)
	if cl == nil {
		return middleware.ErrUnauthorized
	}
	resp := verifyResp{UserID: cl.Subject, TenantID: cl.TenantID, Role: cl.Role}
	if cl.ExpiresAt != nil {
		resp.ExpiresAt = cl.ExpiresAt.Time.UTC()
	}
	return response.OK(c, http.StatusOK, "Token is valid", resp)
}

// Logout revokes the cookie session, or every session of the bearer when
// no cookie is sent, and always clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	var raw string
	if ck, err := c.Cookie(RefreshCookie); err == nil {
		raw = ck.Value
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, raw, middleware.BearerToken(c)); err != nil {
		return err
	}
	h.clearRefreshCookie(c)
	return response.OK(c, http.StatusOK, "Logout successful", nil)
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, pair service.TokenPair) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookie,
		Value:    pair.RefreshToken,
		Path:     refreshCookiePath,
		Expires:  pair.RefreshExpiresAt,
		MaxAge:   int(time.Until(pair.RefreshExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     refreshCookiePath,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
