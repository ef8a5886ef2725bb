package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/daypage/backend/internal/events"
	"github.com/daypage/backend/internal/hash"
	"github.com/daypage/backend/internal/logging"
	"github.com/daypage/backend/internal/mail"
	"github.com/daypage/backend/internal/models"
	"github.com/daypage/backend/internal/token"
	"github.com/daypage/backend/internal/verification"
)

type AuthHandler struct {
	DB           *gorm.DB
	Tokens       *token.Service
	Verification *verification.Service
	Producer     *events.Producer
	Strategy     string
}

func (h *AuthHandler) publish(c echo.Context, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicUserEvents, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

// SignUp registers a new account. With the code strategy active no row is
// created yet: the payload is parked until the mailed code is confirmed.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	if h.Strategy == verification.StrategyCode {
		pending := verification.PendingSignup{
			Email:    req.Email,
			Username: req.Username,
			Password: req.Password,
		}
		if _, err := h.Verification.RequestCode(c.Request().Context(), pending); err != nil {
			switch {
			case errors.Is(err, verification.ErrAlreadyRegistered):
				return echo.NewHTTPError(http.StatusConflict, "a user with this email already exists")
			case errors.Is(err, mail.ErrDelivery):
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to send verification email")
			default:
				return echo.NewHTTPError(http.StatusInternalServerError, "cannot start signup")
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "verification code sent"})
	}

	var existing models.User
	err := h.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "a user with this email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	passwordHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user := models.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: passwordHash,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]interface{}{
		"type":    "user_registered",
		"user_id": user.ID,
		"email":   user.Email,
	})

	return c.JSON(http.StatusCreated, user)
}

// SignIn checks credentials and issues an access+refresh pair. An unknown
// email and a wrong password are reported differently, matching the original
// behavior of this API.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	match, err := hash.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot verify credentials")
	}
	if !match {
		return echo.NewHTTPError(http.StatusUnauthorized, "incorrect password")
	}

	access, refresh, err := h.Tokens.IssuePair(user.Email, user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create tokens")
	}

	c.SetCookie(CreateCookie("accessToken", access, "/", time.Now().Add(h.Tokens.AccessTTL)))
	c.SetCookie(CreateCookie("refreshToken", refresh, "/", time.Now().Add(h.Tokens.RefreshTTL)))

	h.publish(c, fmt.Sprint(user.ID), map[string]interface{}{
		"type":    "user_signed_in",
		"user_id": user.ID,
		"email":   user.Email,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  access,
		"refresh_token": refresh,
		"user_id":       user.ID,
		"is_admin":      user.IsAdmin,
	})
}

// Refresh rotates a refresh token into a brand-new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.Bind(&req)

	raw := req.RefreshToken
	if raw == "" {
		if cookie, err := c.Cookie("refreshToken"); err == nil {
			raw = cookie.Value
		}
	}
	if raw == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	access, refresh, err := h.Tokens.Refresh(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	c.SetCookie(CreateCookie("accessToken", access, "/", time.Now().Add(h.Tokens.AccessTTL)))
	c.SetCookie(CreateCookie("refreshToken", refresh, "/", time.Now().Add(h.Tokens.RefreshTTL)))

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (h *AuthHandler) RequestEmailVerification(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	if err := h.Verification.RequestLink(c.Request().Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, verification.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		case errors.Is(err, mail.ErrDelivery):
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to send verification email")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to send verification email")
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "verification email sent"})
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	raw := c.QueryParam("token")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token is required")
	}

	user, err := h.Verification.ConfirmToken(c.Request().Context(), raw)
	if err != nil {
		if errors.Is(err, verification.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]interface{}{
		"type":    "user_verified",
		"user_id": user.ID,
		"email":   user.Email,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": fmt.Sprintf("Email %s successfully verified", user.Email)})
}

// VerifyCode consumes a signup code and creates the account it was gating.
func (h *AuthHandler) VerifyCode(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}

	user, err := h.Verification.ConfirmCode(c.Request().Context(), req.Email, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, verification.ErrInvalidCode):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid verification code")
		case errors.Is(err, verification.ErrNoPendingSignup):
			return echo.NewHTTPError(http.StatusBadRequest, "no pending signup for this code")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot complete signup")
		}
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]interface{}{
		"type":    "user_registered",
		"user_id": user.ID,
		"email":   user.Email,
	})

	return c.JSON(http.StatusCreated, user)
}
