package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/LuSiTao8579/lovejoy-secure-app/internal/events"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/models"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/service/search"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/session"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/upload"
)

type EvalHandler struct {
	DB       *gorm.DB
	Sessions *session.Manager
	Uploads  *upload.Store
	Producer *events.Producer
	ES       *elasticsearch.Client
	Index    string
}

func (h *EvalHandler) flashRedirect(c echo.Context, level, message, target string) error {
	if err := h.Sessions.Flash(c, level, message); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session error")
	}
	return c.Redirect(http.StatusSeeOther, target)
}

func (h *EvalHandler) RequestEvalPage(c echo.Context) error {
	s, err := h.Sessions.Current(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session error")
	}

	var requests []models.EvaluationRequest
	if err := h.DB.Where("user_id = ?", s.UserID).Order("created_at DESC").Find(&requests).Error; err != nil {
		return h.flashRedirect(c, "danger", "An error occurred, please try again", "/")
	}

	return renderPage(c, h.Sessions, "request_eval.html", map[string]interface{}{"Requests": requests})
}

func (h *EvalHandler) SubmitRequest(c echo.Context) error {
	s, err := h.Sessions.Current(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session error")
	}

	comment := strings.TrimSpace(c.FormValue("comment"))
	preferredContact := c.FormValue("preferred_contact")
	if preferredContact == "" {
		preferredContact = "email"
	}

	if preferredContact != "email" && preferredContact != "phone" {
		return h.flashRedirect(c, "danger", "Invalid contact method", "/request-eval")
	}
	if comment == "" {
		return h.flashRedirect(c, "danger", "Comment is required", "/request-eval")
	}

	file, err := c.FormFile("photo")
	if err != nil || file.Filename == "" {
		return h.flashRedirect(c, "danger", "Please upload an image of the item", "/request-eval")
	}
	if !upload.AllowedImageFile(file.Filename) {
		return h.flashRedirect(c, "danger", "Invalid file type. Please upload JPG, PNG or GIF", "/request-eval")
	}

	safeName, err := upload.SafeImageName(file.Filename)
	if err != nil {
		return h.flashRedirect(c, "danger", "Unsupported file type", "/request-eval")
	}

	src, err := file.Open()
	if err != nil {
		return h.flashRedirect(c, "danger", "An error occurred while saving your image", "/request-eval")
	}
	defer src.Close()

	if err := h.Uploads.Save(src, safeName); err != nil {
		return h.flashRedirect(c, "danger", "An error occurred while saving your image", "/request-eval")
	}

	request := models.EvaluationRequest{
		UserID:           s.UserID,
		Comment:          comment,
		PreferredContact: preferredContact,
		ImageFilename:    safeName,
	}
	if err := h.DB.Create(&request).Error; err != nil {
		return h.flashRedirect(c, "danger", "An error occurred, please try again", "/request-eval")
	}

	h.index(c, &request, s)
	h.publish(c, &request)

	return h.flashRedirect(c, "success", "Your evaluation request has been submitted", "/request-eval")
}

// index mirrors the new request into Elasticsearch; a search that lags one
// document behind is better than a failed submission, so errors only log.
func (h *EvalHandler) index(c echo.Context, request *models.EvaluationRequest, s *session.Session) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	doc := search.RequestDoc{
		ID:               request.ID,
		UserID:           request.UserID,
		UserEmail:        s.Email,
		Comment:          request.Comment,
		PreferredContact: request.PreferredContact,
		ImageFilename:    request.ImageFilename,
		CreatedAt:        request.CreatedAt,
	}
	if err := search.Index(ctx, h.ES, h.Index, doc); err != nil {
		c.Logger().Errorf("Elasticsearch index error: %v", err)
	}
}

func (h *EvalHandler) publish(c echo.Context, request *models.EvaluationRequest) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	event := map[string]interface{}{
		"type":      "eval_request_submitted",
		"RequestID": request.ID,
		"UserID":    request.UserID,
	}
	if err := h.Producer.PublishEvent(ctx, "eval_events", fmt.Sprint(request.UserID), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

type adminRequestRow struct {
	models.EvaluationRequest
	UserEmail string
	UserName  string
}

func (h *EvalHandler) AdminRequests(c echo.Context) error {
	var rows []adminRequestRow
	err := h.DB.Table("evaluation_requests").
		Select("evaluation_requests.*, users.email AS user_email, users.name AS user_name").
		Joins("JOIN users ON users.id = evaluation_requests.user_id").
		Order("evaluation_requests.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return h.flashRedirect(c, "danger", "An error occurred, please try again", "/")
	}

	return renderPage(c, h.Sessions, "admin_requests.html", map[string]interface{}{"Requests": rows})
}
