package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"maskan/internal/middleware"
	"maskan/internal/model"
	"maskan/internal/service"
)

// ListingHandler handles listing endpoints.
type ListingHandler struct {
	listingService service.ListingService
}

// NewListingHandler creates a new listing handler.
func NewListingHandler(listingService service.ListingService) *ListingHandler {
	return &ListingHandler{listingService: listingService}
}

// List godoc
// @Summary List listings
// @Tags listings
// @Produce json
// @Param city query string false "Exact city"
// @Param location query string false "Exact location"
// @Param purpose query string false "sale or rent"
// @Param status query string false "available, reserved, sold or rented"
// @Success 200 {array} model.Listing
// @Router /listings [get]
func (h *ListingHandler) List(c echo.Context) error {
	filter := model.ListingFilter{
		City:     strings.TrimSpace(c.QueryParam("city")),
		Location: strings.TrimSpace(c.QueryParam("location")),
		Purpose:  model.ListingPurpose(strings.ToLower(strings.TrimSpace(c.QueryParam("purpose")))),
		Status:   model.ListingStatus(strings.ToLower(strings.TrimSpace(c.QueryParam("status")))),
	}

	listings, err := h.listingService.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listings)
}

// Get godoc
// @Summary Get a listing
// @Tags listings
// @Produce json
// @Param id path string true "Listing ID"
// @Success 200 {object} model.Listing
// @Failure 404 {object} errors.ErrorResponse
// @Router /listings/{id} [get]
func (h *ListingHandler) Get(c echo.Context) error {
	listing, err := h.listingService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listing)
}

// UserListings godoc
// @Summary List the caller's listings
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Listing
// @Failure 401 {object} errors.ErrorResponse
// @Router /user-listings [get]
func (h *ListingHandler) UserListings(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}

	listings, err := h.listingService.ListByOwner(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listings)
}

// Create godoc
// @Summary Create a listing
// @Description Multipart form with listing fields, images (one or more) and an optional pdf.
// @Tags listings
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param images formData file true "Listing images, in display order"
// @Param pdf formData file false "Brochure"
// @Success 201 {object} model.Listing
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /listings [post]
func (h *ListingHandler) Create(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}

	patch, parts, cleanup, err := h.readListing(c)
	if err != nil {
		return err
	}
	defer cleanup()

	listing, err := h.listingService.Create(c.Request().Context(), user, patch, parts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, listing)
}

// Update godoc
// @Summary Update a listing
// @Description Only fields present in the request change. New images replace the current set unless imageMode is "append".
// @Tags listings
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Listing ID"
// @Param imageMode formData string false "replace (default) or append"
// @Param images formData file false "New images"
// @Success 200 {object} model.Listing
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /listings/{id} [put]
func (h *ListingHandler) Update(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}

	patch, parts, cleanup, err := h.readListing(c)
	if err != nil {
		return err
	}
	defer cleanup()

	listing, err := h.listingService.Update(c.Request().Context(), user, c.Param("id"), patch, parts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listing)
}

// Delete godoc
// @Summary Delete a listing
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Listing ID"
// @Success 200 {object} DeleteListingResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /listings/{id} [delete]
func (h *ListingHandler) Delete(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}

	listing, err := h.listingService.Delete(c.Request().Context(), user, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DeleteListingResponse{Message: "listing deleted successfully", Listing: listing})
}

// readListing accepts either a multipart form or a JSON body.
func (h *ListingHandler) readListing(c echo.Context) (model.ListingPatch, []service.Part, func(), error) {
	noop := func() {}

	if isMultipart(c) {
		form, err := parseMultipart(c)
		if err != nil {
			return model.ListingPatch{}, nil, noop, err
		}
		patch, err := listingPatchFromForm(form.Values)
		if err != nil {
			form.Close()
			return model.ListingPatch{}, nil, noop, err
		}
		return patch, form.Parts, form.Close, nil
	}

	var req ListingRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return model.ListingPatch{}, nil, noop, invalidBody()
	}
	patch, err := req.Patch()
	return patch, nil, noop, err
}
