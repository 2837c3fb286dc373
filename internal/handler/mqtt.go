package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/iot-auth-service/internal/response"
	"github.com/iliyamo/iot-auth-service/internal/service"
)

// MQTTHandler is the HTTP hook surface of the broker's auth plugin.
type MQTTHandler struct {
	MQTT    *service.MQTTService
	Log     *zap.Logger
	Timeout time.Duration
}

func NewMQTTHandler(mqtt *service.MQTTService, log *zap.Logger, timeout time.Duration) *MQTTHandler {
	return &MQTTHandler{MQTT: mqtt, Log: log, Timeout: timeout}
}

type mqttCreateReq struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	IsSuperuser *bool  `json:"is_superuser"`
}

type mqttCheckReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type mqttACLReq struct {
	Username string `json:"username"`
	Topic    string `json:"topic"`
	Access   string `json:"access"`
}

type mqttUserResp struct {
	Username    string    `json:"username"`
	IsSuperuser bool      `json:"is_superuser"`
	IsDeleted   bool      `json:"is_deleted"`
	CreatedAt   time.Time `json:"created_at"`
}

var checkMessages = map[service.Decision]string{
	service.Allow:  "Authentication successful",
	service.Deny:   "Invalid information",
	service.Ignore: "User not found",
}

// Create answers 201 with the username and flag; the password is never
// echoed.
func (h *MQTTHandler) Create(c echo.Context) error {
	var req mqttCreateReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	m, err := h.MQTT.Create(ctx, service.MQTTCreateInput{
		Username:    req.Username,
		Password:    req.Password,
		IsSuperuser: req.IsSuperuser != nil && *req.IsSuperuser,
	})
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusCreated, "MQTT User created successfully", mqttUserResp{
		Username:    m.Username,
		IsSuperuser: m.IsSuperuser,
		CreatedAt:   m.CreatedAt,
	})
}

// Check is the broker's connect hook. Every decision is a 200; only a
// request that cannot be decided fails, still carrying result=ignore.
func (h *MQTTHandler) Check(c echo.Context) error {
	var req mqttCheckReq
	if err := bind(c, &req); err != nil {
		return h.undecided(c, err)
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	d, err := h.MQTT.CheckLogin(ctx, req.Username, req.Password)
	if err != nil {
		return h.undecided(c, err)
	}
	return response.Decision(c, http.StatusOK, checkMessages[d], d.String())
}

// ACL is the broker's publish/subscribe hook.
func (h *MQTTHandler) ACL(c echo.Context) error {
	var req mqttACLReq
	if err := bind(c, &req); err != nil {
		return h.undecided(c, err)
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	res, err := h.MQTT.CheckACL(ctx, req.Username, req.Topic, req.Access)
	if err != nil {
		return h.undecided(c, err)
	}
	switch {
	case res.Superuser:
		return response.Decision(c, http.StatusOK, "Superuser authorized", res.Decision.String())
	case res.Decision == service.Allow:
		return response.Decision(c, http.StatusOK, "Authorization successful", res.Decision.String())
	}
	return response.Decision(c, http.StatusOK, "Permission denied", res.Decision.String())
}

func (h *MQTTHandler) undecided(c echo.Context, err error) error {
	code, body := envelopeFor(err)
	// a bad hook payload is semantic to the broker, not structural
	if code == http.StatusBadRequest {
		code = http.StatusUnprocessableEntity
	}
	if code >= http.StatusInternalServerError {
		h.Log.Error("mqtt hook failed", zap.String("route", c.Path()), zap.Error(err))
	}
	return response.Decision(c, code, body.Message, service.Ignore.String(), body.Details...)
}

func (h *MQTTHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	list, err := h.MQTT.List(ctx)
	if err != nil {
		return err
	}
	out := make([]mqttUserResp, 0, len(list))
	for _, m := range list {
		out = append(out, mqttUserResp{
			Username:    m.Username,
			IsSuperuser: m.IsSuperuser,
			IsDeleted:   m.DeletedAt != nil,
			CreatedAt:   m.CreatedAt,
		})
	}
	return response.OK(c, http.StatusOK, "User MQTT list retrieved successfully", echo.Map{"mqtt": out})
}

// Delete is not success-idempotent: deleting an absent credential is 404.
func (h *MQTTHandler) Delete(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.MQTT.Delete(ctx, c.Param("username")); err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, "MQTT User deleted successfully", nil)
}
