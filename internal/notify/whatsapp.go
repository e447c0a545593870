package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// WhatsAppSender sends WhatsApp messages through Twilio.
type WhatsAppSender struct {
	api  messageCreator
	from string
}

var _ Sender = (*WhatsAppSender)(nil)

// NewWhatsAppSender creates a sender. It is unconfigured when any credential
// is empty.
func NewWhatsAppSender(accountSID, authToken, from string) *WhatsAppSender {
	if accountSID == "" || authToken == "" || from == "" {
		return &WhatsAppSender{}
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &WhatsAppSender{api: client.Api, from: whatsappAddress(from)}
}

func (s *WhatsAppSender) Channel() Channel { return ChannelWhatsApp }

func (s *WhatsAppSender) Configured() bool {
	return s.api != nil && s.from != ""
}

// Send delivers msg.Body to msg.To.
func (s *WhatsAppSender) Send(ctx context.Context, msg Message) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	if msg.To == "" || msg.Body == "" {
		return errors.New("whatsapp requires recipient and body")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(whatsappAddress(msg.To))
	params.SetFrom(s.from)
	params.SetBody(msg.Body)

	if _, err := s.api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	return nil
}

// whatsappAddress normalizes a phone number into Twilio's whatsapp:+E164 form.
func whatsappAddress(phone string) string {
	phone = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:"))
	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	if strings.HasPrefix(phone, "00") {
		phone = "+" + phone[2:]
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return "whatsapp:" + phone
}
