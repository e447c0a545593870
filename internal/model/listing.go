package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListingPurpose says whether a property is offered for sale or rent.
type ListingPurpose string

const (
	ListingPurposeSale ListingPurpose = "sale"
	ListingPurposeRent ListingPurpose = "rent"
)

// ListingStatus is the market state of a listing.
type ListingStatus string

const (
	ListingStatusAvailable ListingStatus = "available"
	ListingStatusReserved  ListingStatus = "reserved"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusRented    ListingStatus = "rented"
)

// ImageMode selects how uploaded images combine with existing ones on update.
type ImageMode string

const (
	ImageModeReplace ImageMode = "replace"
	ImageModeAppend  ImageMode = "append"
)

// Listing represents a property offered by its owner. Images are in display
// order and Image always mirrors Images[0].
type Listing struct {
	ID primitive.ObjectID `json:"_id" bson:"_id,omitempty" swaggertype:"string"`

	Title        string         `json:"title" bson:"title"`
	Price        Price          `json:"price" bson:"price" swaggertype:"string"`
	City         string         `json:"city" bson:"city"`
	Location     string         `json:"location" bson:"location"`
	Country      string         `json:"country,omitempty" bson:"country,omitempty"`
	PropertyType string         `json:"propertyType" bson:"propertyType"`
	Beds         int            `json:"beds" bson:"beds"`
	Baths        int            `json:"baths" bson:"baths"`
	Description  string         `json:"description,omitempty" bson:"description,omitempty"`
	Purpose      ListingPurpose `json:"purpose" bson:"purpose"`
	Status       ListingStatus  `json:"status" bson:"status"`
	Amenities    []string       `json:"amenities" bson:"amenities"`

	PropertyReferenceID       string `json:"propertyReferenceId,omitempty" bson:"propertyReferenceId,omitempty"`
	Building                  string `json:"building,omitempty" bson:"building,omitempty"`
	Neighborhood              string `json:"neighborhood,omitempty" bson:"neighborhood,omitempty"`
	Developments              string `json:"developments,omitempty" bson:"developments,omitempty"`
	LandlordName              string `json:"landlordName,omitempty" bson:"landlordName,omitempty"`
	ReraTitleNumber           string `json:"reraTitleNumber,omitempty" bson:"reraTitleNumber,omitempty"`
	ReraPreRegistrationNumber string `json:"reraPreRegistrationNumber,omitempty" bson:"reraPreRegistrationNumber,omitempty"`

	Image     string   `json:"image" bson:"image"`
	Images    []string `json:"images" bson:"images"`
	Thumbnail string   `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
	PDF       string   `json:"pdf,omitempty" bson:"pdf,omitempty"`

	Broker          string `json:"broker,omitempty" bson:"broker,omitempty"`
	Phone           string `json:"phone,omitempty" bson:"phone,omitempty"`
	Email           string `json:"email,omitempty" bson:"email,omitempty"`
	Whatsapp        string `json:"whatsapp,omitempty" bson:"whatsapp,omitempty"`
	AgentName       string `json:"agentName,omitempty" bson:"agentName,omitempty"`
	AgentCallNumber string `json:"agentCallNumber,omitempty" bson:"agentCallNumber,omitempty"`
	AgentEmail      string `json:"agentEmail,omitempty" bson:"agentEmail,omitempty"`
	AgentWhatsapp   string `json:"agentWhatsapp,omitempty" bson:"agentWhatsapp,omitempty"`

	Owner     primitive.ObjectID `json:"user" bson:"user" swaggertype:"string"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ListingFilter narrows a listing query. Empty fields match everything.
type ListingFilter struct {
	City     string
	Location string
	Purpose  ListingPurpose
	Status   ListingStatus
}

// Params returns the filter as a flat map, used for cache keys.
func (f ListingFilter) Params() map[string]string {
	return map[string]string{
		"city":     f.City,
		"location": f.Location,
		"purpose":  string(f.Purpose),
		"status":   string(f.Status),
	}
}

// ListingPatch carries the listing fields present in a create or update
// request. Nil pointers are fields the client did not send. The owner is
// deliberately absent: it is fixed at creation.
type ListingPatch struct {
	Title        *string
	Price        *Price
	City         *string
	Location     *string
	Country      *string
	PropertyType *string
	Beds         *int
	Baths        *int
	Description  *string
	Purpose      *ListingPurpose
	Status       *ListingStatus
	Amenities    *[]string

	PropertyReferenceID       *string
	Building                  *string
	Neighborhood              *string
	Developments              *string
	LandlordName              *string
	ReraTitleNumber           *string
	ReraPreRegistrationNumber *string

	Broker          *string
	Phone           *string
	Email           *string
	Whatsapp        *string
	AgentName       *string
	AgentCallNumber *string
	AgentEmail      *string
	AgentWhatsapp   *string

	ImageMode ImageMode
}

// Apply copies every present field onto l.
func (p ListingPatch) Apply(l *Listing) {
	setString(&l.Title, p.Title)
	if p.Price != nil {
		l.Price = *p.Price
	}
	setString(&l.City, p.City)
	setString(&l.Location, p.Location)
	setString(&l.Country, p.Country)
	setString(&l.PropertyType, p.PropertyType)
	if p.Beds != nil {
		l.Beds = *p.Beds
	}
	if p.Baths != nil {
		l.Baths = *p.Baths
	}
	setString(&l.Description, p.Description)
	if p.Purpose != nil {
		l.Purpose = *p.Purpose
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.Amenities != nil {
		l.Amenities = UniqueStrings(*p.Amenities)
	}

	setString(&l.PropertyReferenceID, p.PropertyReferenceID)
	setString(&l.Building, p.Building)
	setString(&l.Neighborhood, p.Neighborhood)
	setString(&l.Developments, p.Developments)
	setString(&l.LandlordName, p.LandlordName)
	setString(&l.ReraTitleNumber, p.ReraTitleNumber)
	setString(&l.ReraPreRegistrationNumber, p.ReraPreRegistrationNumber)

	setString(&l.Broker, p.Broker)
	setString(&l.Phone, p.Phone)
	setString(&l.Email, p.Email)
	setString(&l.Whatsapp, p.Whatsapp)
	setString(&l.AgentName, p.AgentName)
	setString(&l.AgentCallNumber, p.AgentCallNumber)
	setString(&l.AgentEmail, p.AgentEmail)
	setString(&l.AgentWhatsapp, p.AgentWhatsapp)
}

// SetImages replaces the image list and keeps the primary image in sync.
func (l *Listing) SetImages(images []string) {
	l.Images = images
	if len(images) > 0 {
		l.Image = images[0]
	} else {
		l.Image = ""
	}
}

// UniqueStrings drops empty and repeated values, keeping first occurrence order.
func UniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
