package handler

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"maskan/internal/errors"
	"maskan/internal/model"
	"maskan/internal/service"
)

// multipartRequest is a parsed multipart body. Close removes any temporary
// files the parser spilled to disk.
type multipartRequest struct {
	Values url.Values
	Parts  []service.Part
	form   *multipart.Form
}

func (m *multipartRequest) Close() {
	if m != nil && m.form != nil {
		_ = m.form.RemoveAll()
	}
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// parseMultipart reads form values and file parts. Files are grouped by
// field name and keep their request order within a field.
func parseMultipart(c echo.Context) (*multipartRequest, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, errors.UploadRejected("malformed multipart body")
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var parts []service.Part
	for _, field := range fields {
		for _, fh := range form.File[field] {
			parts = append(parts, service.Part{
				Field:       strings.TrimSuffix(field, "[]"),
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(echo.HeaderContentType),
				Size:        fh.Size,
				Open: func() (io.ReadCloser, error) {
					return fh.Open()
				},
			})
		}
	}

	return &multipartRequest{Values: url.Values(form.Value), Parts: parts, form: form}, nil
}

// ListingRequest is the JSON form of a listing create or update. Absent
// fields are left unchanged on update.
type ListingRequest struct {
	Title        *string               `json:"title"`
	Price        *model.Price          `json:"price" swaggertype:"string"`
	City         *string               `json:"city"`
	Location     *string               `json:"location"`
	Country      *string               `json:"country"`
	PropertyType *string               `json:"propertyType"`
	Beds         *int                  `json:"beds"`
	Baths        *int                  `json:"baths"`
	Description  *string               `json:"description"`
	Purpose      *model.ListingPurpose `json:"purpose"`
	Status       *model.ListingStatus  `json:"status"`
	Amenities    *[]string             `json:"amenities"`

	PropertyReferenceID       *string `json:"propertyReferenceId"`
	Building                  *string `json:"building"`
	Neighborhood              *string `json:"neighborhood"`
	Developments              *string `json:"developments"`
	LandlordName              *string `json:"landlordName"`
	ReraTitleNumber           *string `json:"reraTitleNumber"`
	ReraPreRegistrationNumber *string `json:"reraPreRegistrationNumber"`

	Broker          *string `json:"broker"`
	Phone           *string `json:"phone"`
	Email           *string `json:"email"`
	Whatsapp        *string `json:"whatsapp"`
	AgentName       *string `json:"agentName"`
	AgentCallNumber *string `json:"agentCallNumber"`
	AgentEmail      *string `json:"agentEmail"`
	AgentWhatsapp   *string `json:"agentWhatsapp"`

	ImageMode model.ImageMode `json:"imageMode"`
}

// Patch converts the request into a listing patch.
func (r ListingRequest) Patch() (model.ListingPatch, error) {
	if r.Price != nil && r.Price.IsNegative() {
		return model.ListingPatch{}, errors.NewValidationError("price", "price must not be negative")
	}
	return model.ListingPatch{
		Title:                     r.Title,
		Price:                     r.Price,
		City:                      r.City,
		Location:                  r.Location,
		Country:                   r.Country,
		PropertyType:              r.PropertyType,
		Beds:                      r.Beds,
		Baths:                     r.Baths,
		Description:               r.Description,
		Purpose:                   r.Purpose,
		Status:                    r.Status,
		Amenities:                 r.Amenities,
		PropertyReferenceID:       r.PropertyReferenceID,
		Building:                  r.Building,
		Neighborhood:              r.Neighborhood,
		Developments:              r.Developments,
		LandlordName:              r.LandlordName,
		ReraTitleNumber:           r.ReraTitleNumber,
		ReraPreRegistrationNumber: r.ReraPreRegistrationNumber,
		Broker:                    r.Broker,
		Phone:                     r.Phone,
		Email:                     r.Email,
		Whatsapp:                  r.Whatsapp,
		AgentName:                 r.AgentName,
		AgentCallNumber:           r.AgentCallNumber,
		AgentEmail:                r.AgentEmail,
		AgentWhatsapp:             r.AgentWhatsapp,
		ImageMode:                 r.ImageMode,
	}, nil
}

// listingPatchFromForm reads listing fields from multipart form values. A
// field that is absent from the form stays nil.
func listingPatchFromForm(values url.Values) (model.ListingPatch, error) {
	str := func(key string) *string {
		if v, ok := values[key]; ok && len(v) > 0 {
			s := strings.TrimSpace(v[0])
			return &s
		}
		return nil
	}
	var fieldErrs []errors.FieldError
	num := func(key string) *int {
		s := str(key)
		if s == nil || *s == "" {
			return nil
		}
		n, err := strconv.Atoi(*s)
		if err != nil {
			fieldErrs = append(fieldErrs, errors.FieldError{Field: key, Message: key + " must be a whole number"})
			return nil
		}
		return &n
	}

	var req ListingRequest
	req.Title = str("title")
	req.City = str("city")
	req.Location = str("location")
	req.Country = str("country")
	req.PropertyType = str("propertyType")
	req.Beds = num("beds")
	req.Baths = num("baths")
	req.Description = str("description")
	req.PropertyReferenceID = str("propertyReferenceId")
	req.Building = str("building")
	req.Neighborhood = str("neighborhood")
	req.Developments = str("developments")
	req.LandlordName = str("landlordName")
	req.ReraTitleNumber = str("reraTitleNumber")
	req.ReraPreRegistrationNumber = str("reraPreRegistrationNumber")
	req.Broker = str("broker")
	req.Phone = str("phone")
	req.Email = str("email")
	req.Whatsapp = str("whatsapp")
	req.AgentName = str("agentName")
	req.AgentCallNumber = str("agentCallNumber")
	req.AgentEmail = str("agentEmail")
	req.AgentWhatsapp = str("agentWhatsapp")

	if s := str("price"); s != nil && *s != "" {
		price, err := model.NewPrice(*s)
		if err != nil {
			fieldErrs = append(fieldErrs, errors.FieldError{Field: "price", Message: err.Error()})
		} else {
			req.Price = &price
		}
	}
	if s := str("purpose"); s != nil {
		p := model.ListingPurpose(strings.ToLower(*s))
		req.Purpose = &p
	}
	if s := str("status"); s != nil {
		st := model.ListingStatus(strings.ToLower(*s))
		req.Status = &st
	}
	if s := str("imageMode"); s != nil {
		req.ImageMode = model.ImageMode(strings.ToLower(*s))
	}
	if amenities, ok := formList(values, "amenities"); ok {
		req.Amenities = &amenities
	}

	if len(fieldErrs) > 0 {
		return model.ListingPatch{}, &errors.ValidationError{Fields: fieldErrs}
	}
	return req.Patch()
}

// formList reads a list sent as repeated fields, "name[]" fields, a JSON
// array or a comma separated string.
func formList(values url.Values, key string) ([]string, bool) {
	raw, ok := values[key]
	if !ok {
		raw, ok = values[key+"[]"]
	}
	if !ok {
		return nil, false
	}

	out := make([]string, 0, len(raw))
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			var arr []string
			if json.Unmarshal([]byte(v), &arr) == nil {
				out = append(out, arr...)
				continue
			}
		}
		for _, item := range strings.Split(v, ",") {
			out = append(out, strings.TrimSpace(item))
		}
	}
	return model.UniqueStrings(out), true
}
