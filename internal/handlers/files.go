package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/daypage/backend/internal/logging"
	"github.com/daypage/backend/internal/middleware/auth"
	"github.com/daypage/backend/internal/models"
	"github.com/daypage/backend/internal/storage"
)

type FileHandler struct {
	DB    *gorm.DB
	Store storage.FileStore
}

// Upload stores a multipart attachment on disk and records its metadata,
// optionally linked to one of the caller's pages via the page_id form field.
func (h *FileHandler) Upload(c echo.Context) error {
	user := auth.CurrentUser(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}

	pageID := c.FormValue("page_id")
	if pageID != "" {
		var page models.Page
		if err := h.DB.Where("id = ?", pageID).First(&page).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "page not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := auth.CheckOwnership(page.OwnerID, user); err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "you do not have permission to attach files to this page")
		}
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read file")
	}
	defer src.Close()

	path := fmt.Sprintf("%d/%s_%s", user.ID, uuid.NewString(), fileHeader.Filename)
	size, err := h.Store.Save(path, src)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot store file")
	}

	file := models.FileModel{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get(echo.HeaderContentType),
		Size:        size,
		Path:        path,
		PageID:      pageID,
		OwnerID:     user.ID,
		CreatedAt:   time.Now(),
	}
	if err := h.DB.Create(&file).Error; err != nil {
		_ = h.Store.Delete(path)
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return c.JSON(http.StatusCreated, file)
}

func (h *FileHandler) Download(c echo.Context) error {
	user := auth.CurrentUser(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid file id")
	}

	var file models.FileModel
	if err := h.DB.First(&file, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "file not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := auth.CheckOwnership(file.OwnerID, user); err != nil {
		// an attachment on a public page is readable by anyone signed in
		if !h.attachedPageIsPublic(file) {
			return echo.NewHTTPError(http.StatusForbidden, "you do not have permission to read this file")
		}
	}

	r, err := h.Store.Open(file.Path)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file content missing")
	}
	defer r.Close()

	contentType := file.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Filename))
	return c.Stream(http.StatusOK, contentType, r)
}

func (h *FileHandler) Delete(c echo.Context) error {
	user := auth.CurrentUser(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid file id")
	}

	var file models.FileModel
	if err := h.DB.First(&file, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "file not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := auth.CheckOwnership(file.OwnerID, user); err != nil {
		return echo.NewHTTPError(http.StatusForbidden, "you do not have permission to delete this file")
	}

	if err := h.DB.Delete(&file).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if err := h.Store.Delete(file.Path); err != nil {
		logging.FromContext(c.Request().Context()).Error("file delete error", "error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": fmt.Sprintf("File %d has been deleted", file.ID)})
}

func (h *FileHandler) attachedPageIsPublic(file models.FileModel) bool {
	if file.PageID == "" {
		return false
	}
	var page models.Page
	if err := h.DB.Where("id = ?", file.PageID).First(&page).Error; err != nil {
		return false
	}
	return page.Public
}
