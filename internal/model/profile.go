package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Agent is a standalone agent profile submitted through the public form.
type Agent struct {
	ID              primitive.ObjectID `json:"_id" bson:"_id,omitempty" swaggertype:"string"`
	AgentName       string             `json:"agentName" bson:"agentName"`
	AgentEmail      string             `json:"agentEmail" bson:"agentEmail"`
	ContactNumber   string             `json:"contactNumber" bson:"contactNumber"`
	ContactWhatsApp string             `json:"contactWhatsApp" bson:"contactWhatsApp"`
	ProfilePhoto    string             `json:"profilePhoto,omitempty" bson:"profilePhoto,omitempty"`
	CreatedAt       time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Broker is a standalone brokerage registration with its RERA ID card.
type Broker struct {
	ID                     primitive.ObjectID `json:"_id" bson:"_id,omitempty" swaggertype:"string"`
	ReraBrokerID           string             `json:"reraBrokerID" bson:"reraBrokerID"`
	CompanyLicenseNumber   string             `json:"companyLicenseNumber" bson:"companyLicenseNumber"`
	CompanyTelephoneNumber string             `json:"companyTelephoneNumber" bson:"companyTelephoneNumber"`
	ReraIDCardURL          string             `json:"reraIDCardUrl" bson:"reraIDCardUrl"`
	CreatedAt              time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt              time.Time          `json:"updatedAt" bson:"updatedAt"`
}
