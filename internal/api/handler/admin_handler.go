package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
)

// AdminHandler serves the administrative endpoints. Routes are mounted
// behind RBAC(admin).
type AdminHandler struct {
	service ports.FilingService
}

func NewAdminHandler(service ports.FilingService) *AdminHandler {
	return &AdminHandler{service: service}
}

// List handles GET /admin/requests.
//
// @Summary      Page through all requests
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        page    query     int     false  "1-based page"
// @Param        search  query     string  false  "Confirmation number, name or email"
// @Param        status  query     string  false  "Administrative status"
// @Success      200     {object}  ports.AdminPage
// @Failure      400     {object}  errorResponse
// @Failure      403     {object}  errorResponse
// @Router       /admin/requests [get]
func (h *AdminHandler) List(c echo.Context) error {
	page := 1
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "page must be a positive integer")
		}
		page = n
	}

	out, err := h.service.ListAdmin(c.Request().Context(), ports.AdminQuery{
		Page:   page,
		Search: c.QueryParam("search"),
		Status: domain.AdminStatus(c.QueryParam("status")),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// UpdateStatus handles PUT /admin/requests/:id/status.
//
// @Summary      Change the status of a request
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string               true  "Confirmation number"
// @Param        body  body      statusUpdateRequest  true  "New status"
// @Success      200   {object}  domain.FilingRequest
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /admin/requests/{id}/status [put]
func (h *AdminHandler) UpdateStatus(c echo.Context) error {
	var req statusUpdateRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	out, err := h.service.UpdateStatus(c.Request().Context(), c.Param("id"), domain.StatusUpdate{
		Status:      domain.AdminStatus(req.Status),
		Comment:     req.Comment,
		PaymentDate: req.PaymentDate,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// AddNote handles POST /admin/requests/:id/notes.
//
// @Summary      Append an internal note
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string       true  "Confirmation number"
// @Param        body  body      noteRequest  true  "Note"
// @Success      200   {object}  domain.FilingRequest
// @Failure      404   {object}  errorResponse
// @Router       /admin/requests/{id}/notes [post]
func (h *AdminHandler) AddNote(c echo.Context) error {
	var req noteRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	out, err := h.service.AddNote(c.Request().Context(), c.Param("id"), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Delete handles DELETE /admin/requests/:id.
//
// @Summary      Delete a request
// @Tags         admin
// @Security     BearerAuth
// @Param        id   path  string  true  "Confirmation number"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /admin/requests/{id} [delete]
func (h *AdminHandler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Statistics handles GET /admin/statistics.
//
// @Summary      Aggregate statistics
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ports.Statistics
// @Router       /admin/statistics [get]
func (h *AdminHandler) Statistics(c echo.Context) error {
	out, err := h.service.Statistics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Verify handles GET /admin/verify. Reaching it means RBAC accepted the caller.
//
// @Summary      Confirm the caller is an administrator
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  verifyResponse
// @Failure      403  {object}  errorResponse
// @Router       /admin/verify [get]
func (h *AdminHandler) Verify(c echo.Context) error {
	return c.JSON(http.StatusOK, verifyResponse{IsAdmin: true})
}
