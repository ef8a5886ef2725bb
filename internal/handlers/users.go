package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/daypage/backend/internal/events"
	"github.com/daypage/backend/internal/logging"
	"github.com/daypage/backend/internal/middleware/auth"
	"github.com/daypage/backend/internal/models"
)

type UserHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

// DeleteUser removes an account and everything it owns. The route sits
// behind the admin gate; an admin still cannot delete their own account.
func (h *UserHandler) DeleteUser(c echo.Context) error {
	current := auth.CurrentUser(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	if current.ID == uint(id) {
		return echo.NewHTTPError(http.StatusBadRequest, auth.ErrCannotSelfDelete.Error())
	}

	var target models.User
	if err := h.DB.First(&target, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", target.ID).Delete(&models.Page{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", target.ID).Delete(&models.FileModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&target).Error
	}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicUserEvents, fmt.Sprint(target.ID), map[string]interface{}{
		"type":    "user_deleted",
		"user_id": target.ID,
		"email":   target.Email,
	}); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": fmt.Sprintf("User %d has been deleted", target.ID)})
}
