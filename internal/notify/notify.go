// Package notify delivers email and WhatsApp messages. Delivery is best
// effort: callers get a Delivery describing the outcome, never an error that
// should undo the state change which triggered the message.
package notify

import (
	"context"
	"errors"

	"maskan/internal/model"
)

// Channel identifies a delivery medium.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// Message kinds, recorded in the delivery log.
const (
	KindWelcome          = "welcome"
	KindVerification     = "verification"
	KindPasswordReset    = "password_reset"
	KindListingBroadcast = "listing_broadcast"
)

// ErrNotConfigured is returned by senders that lack credentials.
var ErrNotConfigured = errors.New("channel not configured")

// Message is a rendered notification.
type Message struct {
	Channel Channel
	Kind    string
	To      string
	Subject string
	Body    string
	// UserID links the attempt to an account in the delivery log, if known.
	UserID string
}

// Delivery is the outcome of one dispatch.
type Delivery struct {
	ID      string                   `json:"notificationId"`
	Channel Channel                  `json:"channel"`
	Status  model.NotificationStatus `json:"status"`
	Error   string                   `json:"error,omitempty"`
}

// Delivered reports whether the message was handed to the provider.
func (d Delivery) Delivered() bool {
	return d.Status == model.NotificationStatusSent
}

// Sender delivers messages over one channel.
type Sender interface {
	Channel() Channel
	Configured() bool
	Send(ctx context.Context, msg Message) error
}

// Dispatcher is what services depend on.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) Delivery
}
