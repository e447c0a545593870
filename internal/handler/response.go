package handler

import (
	"net/http"

	"maskan/internal/errors"
	"maskan/internal/model"
	"maskan/internal/notify"
)

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string   `json:"message"`
	Warning *Warning `json:"warning,omitempty"`
}

// Warning tells the client that the operation succeeded but its notification
// did not go out. The notification can be requested again.
type Warning struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	NotificationID string `json:"notificationId"`
}

// DeleteListingResponse is returned after a listing is removed.
type DeleteListingResponse struct {
	Message string         `json:"message"`
	Listing *model.Listing `json:"listing"`
}

func notificationWarning(d *notify.Delivery) *Warning {
	if d == nil || d.Delivered() {
		return nil
	}
	if d.Status == model.NotificationStatusSkipped {
		return &Warning{
			Code:           "NOTIFICATION_SKIPPED",
			Message:        "notification channel is not configured",
			NotificationID: d.ID,
		}
	}
	return &Warning{
		Code:           "NOTIFICATION_FAILED",
		Message:        "notification could not be delivered",
		NotificationID: d.ID,
	}
}

func invalidBody() error {
	return errors.NewHTTPError(http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
}
