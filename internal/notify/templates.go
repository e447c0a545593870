package notify

import (
	"fmt"
	"html"
	"strings"
)

// WelcomeEmail greets a new account.
func WelcomeEmail(to, name, userID string) Message {
	return Message{
		Channel: ChannelEmail,
		Kind:    KindWelcome,
		To:      to,
		UserID:  userID,
		Subject: "Welcome to MASKAN",
		Body:    fmt.Sprintf("<p>Hello %s,</p><p>Your MASKAN account is ready.</p>", html.EscapeString(name)),
	}
}

// VerificationEmail carries the email verification link.
func VerificationEmail(to, link, userID string) Message {
	return Message{
		Channel: ChannelEmail,
		Kind:    KindVerification,
		To:      to,
		UserID:  userID,
		Subject: "Verify your MASKAN email",
		Body: fmt.Sprintf(`<p>Please verify your email by clicking the link below. It expires in one hour.</p><p><a href="%s">Verify email</a></p>`,
			html.EscapeString(link)),
	}
}

// PasswordResetEmail carries the password reset link.
func PasswordResetEmail(to, link, userID string) Message {
	return Message{
		Channel: ChannelEmail,
		Kind:    KindPasswordReset,
		To:      to,
		UserID:  userID,
		Subject: "Reset your MASKAN password",
		Body: fmt.Sprintf(`<p>A password reset was requested for this account. The link expires in one hour.</p><p><a href="%s">Reset password</a></p><p>If you did not ask for this, ignore this email.</p>`,
			html.EscapeString(link)),
	}
}

// PropertySummary is the listing data shared over WhatsApp.
type PropertySummary struct {
	Title        string
	Price        string
	City         string
	Location     string
	PropertyType string
	Beds         int
}

// ListingWhatsApp shares a property with a broker or agent.
func ListingWhatsApp(to string, p PropertySummary, userID string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "New property inquiry: %s\n", p.Title)
	if p.Price != "" {
		fmt.Fprintf(&b, "Price: %s\n", p.Price)
	}
	fmt.Fprintf(&b, "Location: %s, %s\n", p.Location, p.City)
	if p.PropertyType != "" {
		fmt.Fprintf(&b, "Type: %s\n", p.PropertyType)
	}
	if p.Beds > 0 {
		fmt.Fprintf(&b, "Beds: %d\n", p.Beds)
	}
	return Message{
		Channel: ChannelWhatsApp,
		Kind:    KindListingBroadcast,
		To:      to,
		UserID:  userID,
		Body:    strings.TrimSpace(b.String()),
	}
}
