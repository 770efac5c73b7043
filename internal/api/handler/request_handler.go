package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
	"github.com/taxdesk/filing-client/internal/core/validation"
	"github.com/taxdesk/filing-client/internal/infrastructure/backend"
)

// maxFormMemory bounds the in-memory part of a parsed multipart form; the
// rest spills to temporary files.
const maxFormMemory = 8 << 20

// RequestHandler serves the owner-facing filing request endpoints.
type RequestHandler struct {
	service   ports.FilingService
	uploadDir string
}

// NewRequestHandler builds the handler. Uploaded documents are written below
// uploadDir; an empty uploadDir records their name and size only.
func NewRequestHandler(service ports.FilingService, uploadDir string) *RequestHandler {
	return &RequestHandler{service: service, uploadDir: uploadDir}
}

// Create handles POST /requests.
//
// @Summary      Submit a filing request
// @Tags         requests
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        userId         formData  string  true   "Owner uid"
// @Param        personalInfo   formData  string  true   "PersonalInfo as JSON"
// @Param        bankInfo       formData  string  true   "BankingInfo as JSON"
// @Param        paymentMethod  formData  string  true   "Payment method"
// @Param        serviceLevel   formData  string  true   "standard or premium"
// @Param        price          formData  number  false  "Plan price"
// @Param        documents      formData  file    false  "PDF documents (up to 5, 10 MB each)"
// @Success      201            {object}  ports.Receipt
// @Failure      400            {object}  errorResponse
// @Failure      403            {object}  errorResponse
// @Router       /requests [post]
func (h *RequestHandler) Create(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	if err := c.Request().ParseMultipartForm(maxFormMemory); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}

	owner := c.FormValue(backend.FieldUserID)
	if owner == "" {
		owner = actor.UID
	}
	if !actor.CanAccess(owner) {
		return domain.ErrForbidden
	}

	in := ports.CreateFilingInput{
		OwnerUID:      owner,
		PaymentMethod: c.FormValue(backend.FieldPaymentMethod),
		ServiceLevel:  domain.ServiceLevel(c.FormValue(backend.FieldServiceLevel)),
	}
	if err := json.Unmarshal([]byte(c.FormValue(backend.FieldPersonalInfo)), &in.Personal); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "personalInfo must be a JSON object")
	}
	if err := json.Unmarshal([]byte(c.FormValue(backend.FieldBankInfo)), &in.Banking); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "bankInfo must be a JSON object")
	}
	if raw := c.FormValue(backend.FieldPrice); raw != "" {
		if in.Price, err = strconv.ParseFloat(raw, 64); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "price must be a number")
		}
	}
	if strings.TrimSpace(in.Personal.FullName) == "" || strings.TrimSpace(in.PaymentMethod) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "fullName and paymentMethod are required")
	}

	var files []*multipart.FileHeader
	if form := c.Request().MultipartForm; form != nil {
		files = form.File[backend.FieldDocuments]
	}
	if len(files) > validation.MaxAttachments {
		return domain.ErrTooManyDocuments
	}
	uploads := make([]ports.Upload, 0, len(files))
	for _, fh := range files {
		uploads = append(uploads, ports.Upload{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: strings.SplitN(fh.Header.Get(echo.HeaderContentType), ";", 2)[0],
		})
	}
	if rejected := validation.CheckFiles(uploads); len(rejected) > 0 {
		return &validation.BatchError{Rejected: rejected}
	}

	for _, fh := range files {
		ref, err := h.store(owner, fh)
		if err != nil {
			return err
		}
		in.Documents = append(in.Documents, ref)
	}

	req, err := h.service.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ports.Receipt{
		ConfirmationNumber: req.ConfirmationNumber,
		Status:             req.Status,
	})
}

// store writes one upload below uploadDir and returns its reference.
func (h *RequestHandler) store(owner string, fh *multipart.FileHeader) (domain.DocumentRef, error) {
	ref := domain.DocumentRef{Name: filepath.Base(fh.Filename), Size: fh.Size}
	if h.uploadDir == "" {
		return ref, nil
	}

	src, err := fh.Open()
	if err != nil {
		return ref, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	rel := filepath.Join(owner, uuid.NewString()+"-"+ref.Name)
	dst := filepath.Join(h.uploadDir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return ref, fmt.Errorf("create upload dir: %w", err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return ref, fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return ref, fmt.Errorf("write upload: %w", err)
	}
	if err := out.Close(); err != nil {
		return ref, fmt.Errorf("write upload: %w", err)
	}

	ref.URL = filepath.ToSlash(rel)
	return ref, nil
}

// Get handles GET /requests/:id.
//
// @Summary      Get a filing request by confirmation number
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Confirmation number (e.g. TAX-7A8B9C2D)"
// @Success      200  {object}  domain.FilingRequest
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /requests/{id} [get]
func (h *RequestHandler) Get(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	req, err := h.service.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, req)
}

// ListForUser handles GET /requests/user/:uid.
//
// @Summary      List the requests of one owner, newest first
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        uid  path      string  true  "Owner uid"
// @Success      200  {array}   domain.FilingRequest
// @Failure      403  {object}  errorResponse
// @Router       /requests/user/{uid} [get]
func (h *RequestHandler) ListForUser(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListForOwner(c.Request().Context(), actor, c.Param("uid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}
