package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taxdesk/filing-client/internal/core/ports"
)

// IdentityHandler exposes the identity emulator used in place of the hosted
// identity provider during development.
type IdentityHandler struct {
	identity ports.IdentityService
}

func NewIdentityHandler(identity ports.IdentityService) *IdentityHandler {
	return &IdentityHandler{identity: identity}
}

// SignIn exchanges email and password for a token grant.
//
// @Summary      Password sign-in
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Credentials"
// @Success      200   {object}  ports.TokenGrant
// @Failure      401   {object}  errorResponse
// @Router       /accounts/sign-in [post]
func (h *IdentityHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	g, err := h.identity.SignInWithPassword(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

// SignInIdp signs in through a federated provider.
//
// @Summary      Federated sign-in
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        body  body      signInIdpRequest  true  "Provider assertion"
// @Success      200   {object}  ports.TokenGrant
// @Failure      409   {object}  errorResponse
// @Router       /accounts/sign-in-idp [post]
func (h *IdentityHandler) SignInIdp(c echo.Context) error {
	var req signInIdpRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	g, err := h.identity.SignInWithIdp(c.Request().Context(), req.ProviderID, req.Email, req.DisplayName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

// PasswordReset always answers 204 so callers cannot enumerate accounts.
//
// @Summary      Request a password reset
// @Tags         identity
// @Accept       json
// @Param        body  body  emailRequest  true  "Account email"
// @Success      204
// @Router       /accounts/password-reset [post]
func (h *IdentityHandler) PasswordReset(c echo.Context) error {
	var req emailRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.identity.SendPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SignInMethods lists the providers registered for an email.
//
// @Summary      Sign-in methods for an email
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Account email"
// @Success      200   {object}  methodsResponse
// @Router       /accounts/sign-in-methods [post]
func (h *IdentityHandler) SignInMethods(c echo.Context) error {
	var req emailRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	methods, err := h.identity.SignInMethods(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, methodsResponse{Methods: methods})
}

// SignOut revokes a refresh token.
//
// @Summary      Revoke a refresh token
// @Tags         identity
// @Accept       json
// @Param        body  body  refreshRequest  true  "Refresh token"
// @Success      204
// @Router       /accounts/sign-out [post]
func (h *IdentityHandler) SignOut(c echo.Context) error {
	var req refreshRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.identity.Revoke(c.Request().Context(), req.RefreshToken); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Token exchanges a refresh token for a new ID token.
//
// @Summary      Refresh an ID token
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Refresh token"
// @Success      200   {object}  ports.TokenGrant
// @Failure      401   {object}  errorResponse
// @Router       /token [post]
func (h *IdentityHandler) Token(c echo.Context) error {
	var req refreshRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	g, err := h.identity.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}
