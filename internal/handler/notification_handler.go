package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"maskan/internal/middleware"
	"maskan/internal/model"
	"maskan/internal/service"
)

// NotificationHandler handles WhatsApp sharing and delivery history.
type NotificationHandler struct {
	notificationService service.NotificationService
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// ShareResponse acknowledges a sent WhatsApp message.
type ShareResponse struct {
	Message        string `json:"message"`
	NotificationID string `json:"notificationId"`
}

// ShareWhatsApp godoc
// @Summary Send a property summary to a broker's WhatsApp
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body service.ShareInput true "Property to share"
// @Success 200 {object} ShareResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /whatsapp [post]
func (h *NotificationHandler) ShareWhatsApp(c echo.Context) error {
	var in service.ShareInput
	if err := c.Bind(&in); err != nil {
		return invalidBody()
	}

	sender, _ := middleware.UserFromContext(c.Request().Context())
	d, err := h.notificationService.ShareListing(c.Request().Context(), sender, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ShareResponse{Message: "whatsapp message sent", NotificationID: d.ID})
}

// History godoc
// @Summary List the caller's recent notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries (default 20, max 100)"
// @Success 200 {array} model.NotificationLog
// @Failure 401 {object} errors.ErrorResponse
// @Router /notifications [get]
func (h *NotificationHandler) History(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.notificationService.History(c.Request().Context(), user, limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []model.NotificationLog{}
	}
	return c.JSON(http.StatusOK, entries)
}
