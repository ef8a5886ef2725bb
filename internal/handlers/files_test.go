package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/daypage/backend/internal/models"
	"github.com/daypage/backend/internal/storage"
)

func newFileHandler(t *testing.T) *FileHandler {
	store, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return &FileHandler{DB: initTestDB(t), Store: store}
}

func uploadContext(t *testing.T, user *models.User, filename, content, pageID string) (echo.Context, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	if pageID != "" {
		require.NoError(t, w.WriteField("page_id", pageID))
	}
	require.NoError(t, w.Close())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/files", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user", user)
	return c, rec
}

func TestUploadAndDownload(t *testing.T) {
	h := newFileHandler(t)
	user := createUser(t, h.DB, "a@x.com", false)

	c, rec := uploadContext(t, user, "notes.txt", "hello attachment", "")
	require.NoError(t, h.Upload(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var file models.FileModel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &file))
	require.Equal(t, "notes.txt", file.Filename)
	require.Equal(t, int64(len("hello attachment")), file.Size)
	require.Equal(t, user.ID, file.OwnerID)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/files/%d", file.ID), nil)
	dlRec := httptest.NewRecorder()
	dlCtx := e.NewContext(req, dlRec)
	dlCtx.SetParamNames("id")
	dlCtx.SetParamValues(fmt.Sprint(file.ID))
	dlCtx.Set("user", user)

	require.NoError(t, h.Download(dlCtx))
	require.Equal(t, http.StatusOK, dlRec.Code)
	require.Equal(t, "hello attachment", dlRec.Body.String())
}

func TestDownloadForbiddenForStrangers(t *testing.T) {
	h := newFileHandler(t)
	owner := createUser(t, h.DB, "owner@x.com", false)
	other := createUser(t, h.DB, "other@x.com", false)

	c, rec := uploadContext(t, owner, "private.txt", "secret data", "")
	require.NoError(t, h.Upload(c))

	var file models.FileModel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &file))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/files/%d", file.ID), nil)
	dlCtx := e.NewContext(req, httptest.NewRecorder())
	dlCtx.SetParamNames("id")
	dlCtx.SetParamValues(fmt.Sprint(file.ID))
	dlCtx.Set("user", other)

	err := h.Download(dlCtx)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestUploadToForeignPageForbidden(t *testing.T) {
	h := newFileHandler(t)
	owner := createUser(t, h.DB, "owner@x.com", false)
	other := createUser(t, h.DB, "other@x.com", false)

	page := createPage(t, h.DB, owner, true, time.Now())

	c, _ := uploadContext(t, other, "notes.txt", "x", page.ID)
	err := h.Upload(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestDeleteFile(t *testing.T) {
	h := newFileHandler(t)
	user := createUser(t, h.DB, "a@x.com", false)

	c, rec := uploadContext(t, user, "notes.txt", "bye", "")
	require.NoError(t, h.Upload(c))

	var file models.FileModel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &file))

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/files/%d", file.ID), nil)
	delRec := httptest.NewRecorder()
	delCtx := e.NewContext(req, delRec)
	delCtx.SetParamNames("id")
	delCtx.SetParamValues(fmt.Sprint(file.ID))
	delCtx.Set("user", user)

	require.NoError(t, h.Delete(delCtx))
	require.Equal(t, http.StatusOK, delRec.Code)

	var count int64
	require.NoError(t, h.DB.Model(&models.FileModel{}).Count(&count).Error)
	require.Zero(t, count)

	_, err := h.Store.Open(file.Path)
	require.Error(t, err)
}
