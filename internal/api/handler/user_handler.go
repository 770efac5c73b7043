package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
)

// UserHandler serves backend user profiles.
type UserHandler struct {
	identity ports.IdentityService
}

func NewUserHandler(identity ports.IdentityService) *UserHandler {
	return &UserHandler{identity: identity}
}

// Register creates a password account and its profile.
//
// @Summary      Register a new user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      201   {object}  domain.Identity
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /users/register [post]
func (h *UserHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	id, err := h.identity.Register(c.Request().Context(), ports.Registration{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, id)
}

// Login creates or refreshes the caller's profile and returns it.
//
// @Summary      Upsert the caller's profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      profileLoginRequest  true  "Profile fields"
// @Success      200   {object}  domain.Identity
// @Failure      401   {object}  errorResponse
// @Router       /users/login [post]
func (h *UserHandler) Login(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req profileLoginRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	email := ctxEmail(c)
	if email == "" {
		email = req.Email
	}

	id, err := h.identity.UpsertProfile(c.Request().Context(), ports.ProfileUpsert{
		UID:        actor.UID,
		Email:      email,
		Name:       req.Name,
		ProviderID: req.ProviderID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, id)
}

// Get returns one profile.
//
// @Summary      Get a user profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        uid  path      string  true  "User id"
// @Success      200  {object}  domain.Identity
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /users/{uid} [get]
func (h *UserHandler) Get(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	uid := c.Param("uid")
	if !actor.CanAccess(uid) {
		return domain.ErrForbidden
	}

	id, err := h.identity.Profile(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, id)
}
