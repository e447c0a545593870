package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account holder. Secrets are stored as hashes and never
// serialized to JSON.
type User struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name"`
	Email        string             `json:"email" bson:"email"`
	PasswordHash string             `json:"-" bson:"password,omitempty"`
	IsVerified   bool               `json:"isVerified" bson:"isVerified"`

	VerificationTokenHash    string     `json:"-" bson:"verificationToken,omitempty"`
	VerificationTokenExpires *time.Time `json:"-" bson:"verificationTokenExpires,omitempty"`
	ResetTokenHash           string     `json:"-" bson:"resetPasswordToken,omitempty"`
	ResetTokenExpires        *time.Time `json:"-" bson:"resetPasswordExpires,omitempty"`
	AuthTokenHash            string     `json:"-" bson:"authToken,omitempty"`
	AuthTokenExpires         *time.Time `json:"-" bson:"authTokenExpires,omitempty"`

	// TokensValidAfter rejects bearer tokens issued before it, so a password
	// change or reset signs out every earlier session.
	TokensValidAfter *time.Time `json:"-" bson:"tokensValidAfter,omitempty"`

	Listings  []primitive.ObjectID `json:"listings" bson:"listings"`
	CreatedAt time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// ProfileUpdate holds the optional fields of a profile edit. Nil means
// unchanged.
type ProfileUpdate struct {
	Name             *string
	Email            *string
	PasswordHash     *string
	TokensValidAfter *time.Time
}

// IsEmpty reports whether nothing would change.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.PasswordHash == nil && u.TokensValidAfter == nil
}
