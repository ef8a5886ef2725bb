package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/daypage/backend/internal/events"
	"github.com/daypage/backend/internal/logging"
	"github.com/daypage/backend/internal/middleware/auth"
	"github.com/daypage/backend/internal/models"
	"github.com/daypage/backend/internal/service/search"
	"github.com/daypage/backend/internal/util"
)

type PageHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
	ES       *elasticsearch.Client
	Index    string
}

func (h *PageHandler) publish(c echo.Context, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicPageEvents, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *PageHandler) index(c echo.Context, page models.Page) {
	if h.ES == nil {
		return
	}
	if err := search.IndexPage(c.Request().Context(), h.ES, h.Index, page); err != nil {
		logging.FromContext(c.Request().Context()).Error("es index error", "error", err)
	}
}

func (h *PageHandler) unindex(c echo.Context, id string) {
	if h.ES == nil {
		return
	}
	if err := search.DeletePage(c.Request().Context(), h.ES, h.Index, id); err != nil {
		logging.FromContext(c.Request().Context()).Error("es delete error", "error", err)
	}
}

type pageRequest struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Public      *bool      `json:"public"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

func (h *PageHandler) CreatePage(c echo.Context) error {
	user := auth.CurrentUser(c)

	var req pageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	now := time.Now()
	page := models.Page{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Content:     req.Content,
		Public:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
		ScheduledAt: now,
		OwnerID:     user.ID,
	}
	if req.Public != nil {
		page.Public = *req.Public
	}
	if req.ScheduledAt != nil {
		page.ScheduledAt = *req.ScheduledAt
	}

	if err := h.DB.Create(&page).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	h.index(c, page)
	h.publish(c, page.ID, map[string]interface{}{
		"type":     "page_created",
		"page_id":  page.ID,
		"owner_id": page.OwnerID,
		"title":    page.Title,
	})

	return c.JSON(http.StatusCreated, page)
}

func (h *PageHandler) GetPage(c echo.Context) error {
	user := auth.CurrentUser(c)

	var page models.Page
	if err := h.DB.Where("id = ?", c.Param("id")).First(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "page not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if !page.Public {
		if err := auth.CheckOwnership(page.OwnerID, user); err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "you do not have permission to view this page")
		}
	}

	return c.JSON(http.StatusOK, page)
}

func (h *PageHandler) ListPages(c echo.Context) error {
	user := auth.CurrentUser(c)

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Page{}).Where("owner_id = ?", user.ID).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	var items []models.Page
	if err := h.DB.Where("owner_id = ?", user.ID).Order("scheduled_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *PageHandler) UpdatePage(c echo.Context) error {
	user := auth.CurrentUser(c)

	var page models.Page
	if err := h.DB.Where("id = ?", c.Param("id")).First(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "page not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := auth.CheckOwnership(page.OwnerID, user); err != nil {
		return echo.NewHTTPError(http.StatusForbidden, "you do not have permission to perform this action")
	}

	var req pageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	page.Title = req.Title
	page.Content = req.Content
	if req.Public != nil {
		page.Public = *req.Public
	}
	if req.ScheduledAt != nil {
		page.ScheduledAt = *req.ScheduledAt
	}
	page.UpdatedAt = time.Now()

	if err := h.DB.Save(&page).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	h.index(c, page)
	h.publish(c, page.ID, map[string]interface{}{
		"type":     "page_updated",
		"page_id":  page.ID,
		"owner_id": page.OwnerID,
	})

	return c.JSON(http.StatusOK, page)
}

func (h *PageHandler) DeletePage(c echo.Context) error {
	user := auth.CurrentUser(c)

	var page models.Page
	if err := h.DB.Where("id = ?", c.Param("id")).First(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "page not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := auth.CheckOwnership(page.OwnerID, user); err != nil {
		return echo.NewHTTPError(http.StatusForbidden, "you do not have permission to perform this action")
	}

	if err := h.DB.Delete(&page).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	h.unindex(c, page.ID)
	h.publish(c, page.ID, map[string]interface{}{
		"type":     "page_deleted",
		"page_id":  page.ID,
		"owner_id": page.OwnerID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": fmt.Sprintf("Page %s has been deleted", page.ID)})
}

type calendarEntry struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Public  bool   `json:"public"`
	OwnerID uint   `json:"owner_id"`
}

// CalendarView groups pages scheduled inside [start_date, end_date] by day,
// showing only public pages and the caller's own.
func (h *PageHandler) CalendarView(c echo.Context) error {
	user := auth.CurrentUser(c)

	start, err := parseDate(c.QueryParam("start_date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start_date")
	}
	end, err := parseDate(c.QueryParam("end_date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid end_date")
	}
	if start.After(end) {
		return echo.NewHTTPError(http.StatusBadRequest, "start date cannot be after end date")
	}

	var pages []models.Page
	if err := h.DB.Where("scheduled_at BETWEEN ? AND ?", start, end).Find(&pages).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	grouped := make(map[string][]calendarEntry)
	for _, page := range pages {
		if !page.Public && auth.CheckOwnership(page.OwnerID, user) != nil {
			continue
		}
		key := page.ScheduledAt.Format("2006-01-02")
		grouped[key] = append(grouped[key], calendarEntry{
			ID:      page.ID,
			Title:   page.Title,
			Content: page.Content,
			Public:  page.Public,
			OwnerID: page.OwnerID,
		})
	}

	dates := make([]string, 0, len(grouped))
	for date := range grouped {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	out := make([]map[string]any, 0, len(dates))
	for _, date := range dates {
		out = append(out, map[string]any{"date": date, "pages": grouped[date]})
	}

	return c.JSON(http.StatusOK, out)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
