package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const brevoAPIURL = "https://api.brevo.com/v3/smtp/email"

// EmailSender sends transactional email through the Brevo HTTP API.
type EmailSender struct {
	apiKey     string
	fromEmail  string
	fromName   string
	endpoint   string
	httpClient *http.Client
	maxElapsed time.Duration
}

var _ Sender = (*EmailSender)(nil)

// NewEmailSender creates an email sender. It is unconfigured when apiKey or
// fromEmail is empty.
func NewEmailSender(apiKey, fromEmail, fromName string) *EmailSender {
	return &EmailSender{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		fromName:   fromName,
		endpoint:   brevoAPIURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxElapsed: 15 * time.Second,
	}
}

// WithEndpoint points the sender at another API URL.
func (s *EmailSender) WithEndpoint(endpoint string) *EmailSender {
	s.endpoint = endpoint
	return s
}

func (s *EmailSender) Channel() Channel { return ChannelEmail }

func (s *EmailSender) Configured() bool {
	return s.apiKey != "" && s.fromEmail != ""
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoRequest struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

// Send posts the message, retrying network errors and 5xx responses with
// exponential backoff. 4xx responses are not retried.
func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	if msg.To == "" || msg.Subject == "" || msg.Body == "" {
		return errors.New("email requires recipient, subject and body")
	}

	payload, err := json.Marshal(brevoRequest{
		Sender:      brevoAddress{Email: s.fromEmail, Name: s.fromName},
		To:          []brevoAddress{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("api-key", s.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("email provider returned %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("email provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = s.maxElapsed
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
