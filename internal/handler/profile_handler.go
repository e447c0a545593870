package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"maskan/internal/model"
	"maskan/internal/service"
)

// ProfileHandler handles agent and broker registration.
type ProfileHandler struct {
	profileService service.ProfileService
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// AgentResponse is returned after an agent profile is stored.
type AgentResponse struct {
	Message string       `json:"message"`
	Agent   *model.Agent `json:"agent"`
}

// BrokerResponse is returned after a broker registration is stored.
type BrokerResponse struct {
	Message string        `json:"message"`
	Broker  *model.Broker `json:"broker"`
}

// CreateAgent godoc
// @Summary Submit an agent profile
// @Tags profiles
// @Accept multipart/form-data
// @Produce json
// @Param agentName formData string true "Agent name"
// @Param agentEmail formData string true "Agent email"
// @Param contactNumber formData string true "Phone number"
// @Param contactWhatsApp formData string true "WhatsApp number"
// @Param profilePhoto formData file false "Profile photo"
// @Success 201 {object} AgentResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /agent-profile [post]
func (h *ProfileHandler) CreateAgent(c echo.Context) error {
	var in service.AgentInput
	var parts []service.Part

	if isMultipart(c) {
		form, err := parseMultipart(c)
		if err != nil {
			return err
		}
		defer form.Close()

		in = service.AgentInput{
			AgentName:       formValue(form, "agentName"),
			AgentEmail:      formValue(form, "agentEmail"),
			ContactNumber:   formValue(form, "contactNumber"),
			ContactWhatsApp: formValue(form, "contactWhatsApp"),
		}
		parts = form.Parts
	} else if err := c.Bind(&in); err != nil {
		return invalidBody()
	}

	agent, err := h.profileService.CreateAgent(c.Request().Context(), in, parts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, AgentResponse{Message: "agent profile created successfully", Agent: agent})
}

// GetAgent godoc
// @Summary Look up an agent profile by email
// @Tags profiles
// @Produce json
// @Param email path string true "Agent email"
// @Success 200 {object} model.Agent
// @Failure 404 {object} errors.ErrorResponse
// @Router /agents/{email} [get]
func (h *ProfileHandler) GetAgent(c echo.Context) error {
	agent, err := h.profileService.FindAgent(c.Request().Context(), c.Param("email"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, agent)
}

// CreateBroker godoc
// @Summary Register a brokerage
// @Tags profiles
// @Accept multipart/form-data
// @Produce json
// @Param reraBrokerID formData string true "RERA broker ID"
// @Param companyLicenseNumber formData string true "Company license number"
// @Param companyTelephoneNumber formData string true "Company telephone"
// @Param reraIDCard formData file true "RERA ID card (image or pdf)"
// @Success 201 {object} BrokerResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /broker-profile [post]
func (h *ProfileHandler) CreateBroker(c echo.Context) error {
	var in service.BrokerInput
	var parts []service.Part

	if isMultipart(c) {
		form, err := parseMultipart(c)
		if err != nil {
			return err
		}
		defer form.Close()

		in = service.BrokerInput{
			ReraBrokerID:           formValue(form, "reraBrokerID"),
			CompanyLicenseNumber:   formValue(form, "companyLicenseNumber"),
			CompanyTelephoneNumber: formValue(form, "companyTelephoneNumber"),
		}
		parts = form.Parts
	} else if err := c.Bind(&in); err != nil {
		return invalidBody()
	}

	broker, err := h.profileService.CreateBroker(c.Request().Context(), in, parts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, BrokerResponse{Message: "broker registered successfully", Broker: broker})
}

func formValue(form *multipartRequest, key string) string {
	return strings.TrimSpace(form.Values.Get(key))
}
