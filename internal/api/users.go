package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dukanshop/dukan/internal/users"
	"github.com/dukanshop/dukan/internal/webserver"
)

type registerPayload struct {
	Username    string `json:"username" validate:"required,min=3,max=150"`
	Email       string `json:"email" validate:"omitempty,email"`
	Password    string `json:"password" validate:"required,min=8"`
	PhoneNumber string `json:"phone_number" validate:"max=15"`
	Address     string `json:"address"`
}

type loginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type verifyCodePayload struct {
	Code string `json:"code" validate:"required,len=6"`
}

type addressPayload struct {
	Address string `json:"address" validate:"required"`
}

// telegramUpdate is the subset of the Bot API webhook body the login flow
// needs.
type telegramUpdate struct {
	Message struct {
		Text string `json:"text"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

func registerUserRoutes() {
	webserver.PubPOST("/auth/register", postRegister)
	webserver.PubPOST("/auth/login", postLogin)
	webserver.PubPOST("/auth/telegram/webhook", postTelegramWebhook)
	webserver.PubPOST("/auth/telegram/verify", postVerifyTelegramCode)

	webserver.ApiGET("/profile", getProfile)
	webserver.ApiPUT("/profile/address", putAddress)
}

func postRegister(c echo.Context) error {
	var payload registerPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse registration", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid registration fields", err.Error())
	}

	user, err := GetApp(c).UsersService().Register(c.Request().Context(), users.RegisterParams{
		Username:    strings.TrimSpace(payload.Username),
		Email:       strings.TrimSpace(payload.Email),
		Password:    payload.Password,
		PhoneNumber: strings.TrimSpace(payload.PhoneNumber),
		Address:     strings.TrimSpace(payload.Address),
	})
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) {
			return fail(c, http.StatusConflict, "USERNAME_TAKEN", "Username is already taken", nil)
		}
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to register", err.Error())
	}
	return c.JSON(http.StatusCreated, user)
}

func postLogin(c echo.Context) error {
	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse login", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Username and password are required", err.Error())
	}

	token, user, err := GetApp(c).UsersService().Login(c.Request().Context(),
		strings.TrimSpace(payload.Username), payload.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
		}
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to login", err.Error())
	}
	return ok(c, map[string]interface{}{"token": token, "user": user})
}

// postTelegramWebhook handles Bot API updates. "/login" issues a one-shot
// code and sends it back into the chat; everything else is ignored with a
// 200 so Telegram stops retrying.
func postTelegramWebhook(c echo.Context) error {
	var update telegramUpdate
	if err := c.Bind(&update); err != nil {
		return c.NoContent(http.StatusOK)
	}
	if strings.TrimSpace(update.Message.Text) != "/login" || update.Message.From.ID == 0 {
		return c.NoContent(http.StatusOK)
	}

	a := GetApp(c)
	code, err := a.UsersService().BeginTelegramLogin(c.Request().Context(),
		update.Message.From.ID, update.Message.Chat.ID)
	if err != nil {
		zap.L().Error("telegram login code issue failed", zap.Error(err))
		return c.NoContent(http.StatusOK)
	}
	go func(chatID int64, code string) {
		err := a.Telegram().SendMessage(context.Background(), chatID,
			"Your login code: <b>"+code+"</b>")
		if err != nil {
			zap.L().Warn("telegram login code delivery failed", zap.Error(err))
		}
	}(update.Message.Chat.ID, code)
	return c.NoContent(http.StatusOK)
}

func postVerifyTelegramCode(c echo.Context) error {
	var payload verifyCodePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse verification", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "A six digit code is required", err.Error())
	}

	token, user, err := GetApp(c).UsersService().VerifyTelegramCode(c.Request().Context(), payload.Code)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCode) {
			return fail(c, http.StatusBadRequest, "INVALID_CODE", "Invalid or expired code", nil)
		}
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to verify code", err.Error())
	}
	return ok(c, map[string]interface{}{"token": token, "user": user})
}

func getProfile(c echo.Context) error {
	user, err := GetApp(c).UsersService().GetUser(c.Request().Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
		}
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load profile", err.Error())
	}
	return ok(c, user)
}

func putAddress(c echo.Context) error {
	var payload addressPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse address", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Address is required", err.Error())
	}
	err := GetApp(c).UsersService().UpdateAddress(c.Request().Context(),
		currentUserID(c), strings.TrimSpace(payload.Address))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update address", err.Error())
	}
	return ok(c, map[string]interface{}{"address": strings.TrimSpace(payload.Address)})
}
