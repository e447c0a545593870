package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"maskan/internal/middleware"
	"maskan/internal/service"
)

// AccountHandler handles profile, verification and password endpoints.
type AccountHandler struct {
	authService service.AuthService
	frontendURL string
}

// NewAccountHandler creates a new account handler. Verification links opened
// in a browser are redirected to frontendURL.
func NewAccountHandler(authService service.AuthService, frontendURL string) *AccountHandler {
	return &AccountHandler{authService: authService, frontendURL: strings.TrimRight(frontendURL, "/")}
}

// ProfileRequest is a partial profile edit.
type ProfileRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// ProfileResponse is the edited profile. Token is present when the password
// changed and every earlier token was revoked.
type ProfileResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token,omitempty"`
}

// VerifyRequest carries a verification token.
type VerifyRequest struct {
	Token string `json:"token"`
}

// VerificationStatusResponse reports whether the caller verified their email.
type VerificationStatusResponse struct {
	IsVerified bool `json:"isVerified"`
}

// PasswordResetRequest asks for a reset link.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest sets a new password with a reset token.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// UpdateProfile godoc
// @Summary Update name, email or password
// @Tags account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProfileRequest true "Fields to change"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /profile [put]
func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}

	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}

	res, err := h.authService.UpdateProfile(c.Request().Context(), user, service.ProfileInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ProfileResponse{Name: res.User.Name, Email: res.User.Email, Token: res.Token})
}

// VerificationStatus godoc
// @Summary Report whether the caller's email is verified
// @Tags account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} VerificationStatusResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /verify/status [get]
func (h *AccountHandler) VerificationStatus(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, VerificationStatusResponse{IsVerified: user.IsVerified})
}

// RequestVerification godoc
// @Summary Email a verification link to the caller
// @Tags account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /verify/request [post]
func (h *AccountHandler) RequestVerification(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}

	d, err := h.authService.RequestVerification(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Message: "verification email sent",
		Warning: notificationWarning(&d),
	})
}

// VerifyLink godoc
// @Summary Verify an email from the emailed link
// @Tags account
// @Produce json
// @Param token path string true "Verification token"
// @Success 302
// @Failure 400 {object} errors.ErrorResponse
// @Router /verify/{token} [get]
func (h *AccountHandler) VerifyLink(c echo.Context) error {
	if _, err := h.authService.Verify(c.Request().Context(), c.Param("token")); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, h.frontendURL+"/verified")
}

// Verify godoc
// @Summary Verify an email with a token
// @Tags account
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Verification token"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /verify [post]
func (h *AccountHandler) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}

	if _, err := h.authService.Verify(c.Request().Context(), req.Token); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "email verified successfully"})
}

// RequestPasswordReset godoc
// @Summary Email a password reset link
// @Tags account
// @Accept json
// @Produce json
// @Param request body PasswordResetRequest true "Account email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /password-reset-request [post]
func (h *AccountHandler) RequestPasswordReset(c echo.Context) error {
	var req PasswordResetRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}

	d, err := h.authService.RequestPasswordReset(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Message: "password reset email sent",
		Warning: notificationWarning(&d),
	})
}

// ResetPassword godoc
// @Summary Set a new password with a reset token
// @Tags account
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Token and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /reset-password [post]
func (h *AccountHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}

	if err := h.authService.ResetPassword(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "password has been reset"})
}
