package service

import (
	"context"
	"fmt"

	"maskan/internal/errors"
	"maskan/internal/model"
	"maskan/internal/notify"
	"maskan/internal/validate"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// SharedContact is the recipient of a listing share.
type SharedContact struct {
	Whatsapp string `json:"whatsapp" validate:"required"`
}

// SharedProperty is the listing summary sent over WhatsApp.
type SharedProperty struct {
	Title        string        `json:"title" validate:"required"`
	Price        model.Price   `json:"price" swaggertype:"string"`
	City         string        `json:"city"`
	Location     string        `json:"location"`
	PropertyType string        `json:"propertyType"`
	Beds         int           `json:"beds"`
	Broker       SharedContact `json:"broker"`
}

// ShareInput is the body of a WhatsApp share request.
type ShareInput struct {
	Property SharedProperty `json:"property"`
}

// DeliveryHistory reads past delivery attempts.
type DeliveryHistory interface {
	History(ctx context.Context, userID string, limit int) ([]model.NotificationLog, error)
}

// NotificationService sends user initiated messages and reports history.
type NotificationService interface {
	// ShareListing sends a property summary to the broker's WhatsApp. A failed
	// delivery is returned as ErrUpstream together with the Delivery.
	ShareListing(ctx context.Context, sender *model.User, in ShareInput) (notify.Delivery, error)
	History(ctx context.Context, user *model.User, limit int) ([]model.NotificationLog, error)
}

type notificationService struct {
	dispatcher notify.Dispatcher
	history    DeliveryHistory
	validator  *validate.Validator
}

// NewNotificationService creates a new notification service.
func NewNotificationService(dispatcher notify.Dispatcher, history DeliveryHistory) NotificationService {
	return &notificationService{
		dispatcher: dispatcher,
		history:    history,
		validator:  validate.New(),
	}
}

func (s *notificationService) ShareListing(ctx context.Context, sender *model.User, in ShareInput) (notify.Delivery, error) {
	if err := s.validator.Struct(in); err != nil {
		return notify.Delivery{}, err
	}

	var userID string
	if sender != nil {
		userID = sender.ID.Hex()
	}

	p := in.Property
	var price string
	if !p.Price.IsZero() {
		price = p.Price.String()
	}
	d := s.dispatcher.Dispatch(ctx, notify.ListingWhatsApp(p.Broker.Whatsapp, notify.PropertySummary{
		Title:        p.Title,
		Price:        price,
		City:         p.City,
		Location:     p.Location,
		PropertyType: p.PropertyType,
		Beds:         p.Beds,
	}, userID))
	if !d.Delivered() {
		return d, fmt.Errorf("%w: whatsapp %s: %s", errors.ErrUpstream, d.Status, d.Error)
	}
	return d, nil
}

func (s *notificationService) History(ctx context.Context, user *model.User, limit int) ([]model.NotificationLog, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	return s.history.History(ctx, user.ID.Hex(), limit)
}
