package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuSiTao8579/lovejoy-secure-app/internal/events"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/models"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/session"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/session/sessiontest"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/upload"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/view"
)

func newEvalApp(t *testing.T) (*EvalHandler, *session.Manager, string) {
	db := InitTestDB(t)
	sessions := &session.Manager{
		Store:  sessiontest.NewMemStore(),
		Secret: []byte("test-session-secret"),
	}

	dir := t.TempDir()
	uploads, err := upload.NewStore(dir)
	require.NoError(t, err)

	h := &EvalHandler{
		DB:       db,
		Sessions: sessions,
		Uploads:  uploads,
		Producer: &events.Producer{},
	}
	return h, sessions, dir
}

func multipartContext(t *testing.T, e *echo.Echo, fields map[string]string, fileField, filename string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/request-eval", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func loginForEval(t *testing.T, sessions *session.Manager, c echo.Context) *models.User {
	t.Helper()
	user := &models.User{ID: 1, Email: "dealer@example.com", Role: "user"}
	require.NoError(t, sessions.StartSession(c, user))
	return user
}

func TestSubmitRequestSavesRowAndFile(t *testing.T) {
	h, sessions, dir := newEvalApp(t)
	e := echo.New()

	c, rec := multipartContext(t, e, map[string]string{
		"comment":           "Georgian silver teapot, family heirloom",
		"preferred_contact": "phone",
	}, "photo", "teapot.JPG")
	loginForEval(t, sessions, c)

	require.NoError(t, h.SubmitRequest(c))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/request-eval", rec.Header().Get("Location"))

	var request models.EvaluationRequest
	require.NoError(t, h.DB.First(&request).Error)
	assert.Equal(t, uint(1), request.UserID)
	assert.Equal(t, "Georgian silver teapot, family heirloom", request.Comment)
	assert.Equal(t, "phone", request.PreferredContact)

	// the stored name is randomized, lowercased, and traversal-free
	assert.NotContains(t, request.ImageFilename, "teapot")
	assert.NotContains(t, request.ImageFilename, "/")
	assert.Equal(t, ".jpg", filepath.Ext(request.ImageFilename))

	_, err := os.Stat(filepath.Join(dir, request.ImageFilename))
	require.NoError(t, err)
}

func TestSubmitRequestRejectsBadContactMethod(t *testing.T) {
	h, sessions, _ := newEvalApp(t)
	e := echo.New()

	c, _ := multipartContext(t, e, map[string]string{
		"comment":           "A vase",
		"preferred_contact": "carrier-pigeon",
	}, "photo", "vase.png")
	loginForEval(t, sessions, c)

	require.NoError(t, h.SubmitRequest(c))

	var count int64
	h.DB.Model(&models.EvaluationRequest{}).Count(&count)
	assert.Zero(t, count)
}

func TestSubmitRequestRequiresComment(t *testing.T) {
	h, sessions, _ := newEvalApp(t)
	e := echo.New()

	c, rec := multipartContext(t, e, map[string]string{
		"comment":           "   ",
		"preferred_contact": "email",
	}, "photo", "vase.png")
	loginForEval(t, sessions, c)

	require.NoError(t, h.SubmitRequest(c))
	assert.Equal(t, "/request-eval", rec.Header().Get("Location"))

	var count int64
	h.DB.Model(&models.EvaluationRequest{}).Count(&count)
	assert.Zero(t, count)
}

func TestSubmitRequestRequiresPhoto(t *testing.T) {
	h, sessions, _ := newEvalApp(t)
	e := echo.New()

	c, _ := multipartContext(t, e, map[string]string{
		"comment":           "A vase",
		"preferred_contact": "email",
	}, "", "")
	loginForEval(t, sessions, c)

	require.NoError(t, h.SubmitRequest(c))

	var count int64
	h.DB.Model(&models.EvaluationRequest{}).Count(&count)
	assert.Zero(t, count)
}

func TestSubmitRequestRejectsBadExtension(t *testing.T) {
	h, sessions, dir := newEvalApp(t)
	e := echo.New()

	c, _ := multipartContext(t, e, map[string]string{
		"comment":           "A vase",
		"preferred_contact": "email",
	}, "photo", "vase.exe")
	loginForEval(t, sessions, c)

	require.NoError(t, h.SubmitRequest(c))

	var count int64
	h.DB.Model(&models.EvaluationRequest{}).Count(&count)
	assert.Zero(t, count)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing may be written for a rejected upload")
}

func TestRequestEvalPageListsOwnRequests(t *testing.T) {
	h, sessions, _ := newEvalApp(t)
	e := echo.New()
	renderer, err := view.New()
	require.NoError(t, err)
	e.Renderer = renderer

	require.NoError(t, h.DB.Create(&models.EvaluationRequest{
		UserID: 1, Comment: "Victorian desk clock", PreferredContact: "email",
	}).Error)
	require.NoError(t, h.DB.Create(&models.EvaluationRequest{
		UserID: 2, Comment: "Someone else's painting", PreferredContact: "phone",
	}).Error)

	req := httptest.NewRequest(http.MethodGet, "/request-eval", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	loginForEval(t, sessions, c)

	require.NoError(t, h.RequestEvalPage(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Victorian desk clock")
	assert.NotContains(t, rec.Body.String(), "Someone else's painting")
}

func TestAdminRequestsJoinsUserDetails(t *testing.T) {
	h, sessions, _ := newEvalApp(t)
	e := echo.New()
	renderer, err := view.New()
	require.NoError(t, err)
	e.Renderer = renderer

	user := models.User{Email: "seller@example.com", PasswordHash: "x", Name: "Seller", Role: "user"}
	require.NoError(t, h.DB.Create(&user).Error)
	require.NoError(t, h.DB.Create(&models.EvaluationRequest{
		UserID: user.ID, Comment: "Ming vase, slight chip", PreferredContact: "email",
	}).Error)

	req := httptest.NewRequest(http.MethodGet, "/admin/requests", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	admin := &models.User{ID: 99, Email: "admin@example.com", Role: "admin"}
	require.NoError(t, sessions.StartSession(c, admin))

	require.NoError(t, h.AdminRequests(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ming vase, slight chip")
	assert.Contains(t, rec.Body.String(), "seller@example.com")
}
