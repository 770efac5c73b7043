package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
)

var (
	_ ports.ProfileAPI = (*Client)(nil)
	_ ports.RequestAPI = (*Client)(nil)
	_ ports.AdminAPI   = (*Client)(nil)
)

func (c *Client) RegisterUser(ctx context.Context, in ports.Registration) (*domain.Identity, error) {
	var out domain.Identity
	if err := c.JSON(ctx, http.MethodPost, "/users/register", in, false).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LoginUser(ctx context.Context, in ports.ProfileUpsert) (*domain.Identity, error) {
	var out domain.Identity
	if err := c.JSON(ctx, http.MethodPost, "/users/login", in, true).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUser(ctx context.Context, uid string) (*domain.Identity, error) {
	var out domain.Identity
	if err := c.JSON(ctx, http.MethodGet, "/users/"+url.PathEscape(uid), nil, true).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListUserRequests(ctx context.Context, uid string) ([]domain.FilingRequest, error) {
	out := []domain.FilingRequest{}
	if err := c.JSON(ctx, http.MethodGet, "/requests/user/"+url.PathEscape(uid), nil, true).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetRequest(ctx context.Context, id string) (*domain.FilingRequest, error) {
	var out domain.FilingRequest
	if err := c.JSON(ctx, http.MethodGet, "/requests/"+url.PathEscape(id), nil, true).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateRequest(ctx context.Context, in ports.NewFilingRequest) (*ports.Receipt, error) {
	var out ports.Receipt
	if err := c.Multipart(ctx, "/requests", in).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAdminRequests(ctx context.Context, q ports.AdminQuery) (*ports.AdminPage, error) {
	v := url.Values{}
	page := q.Page
	if page < 1 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	var out ports.AdminPage
	if err := c.JSON(ctx, http.MethodGet, "/admin/requests?"+v.Encode(), nil, true).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateRequestStatus(ctx context.Context, id string, u domain.StatusUpdate) (*domain.FilingRequest, error) {
	var out domain.FilingRequest
	path := "/admin/requests/" + url.PathEscape(id) + "/status"
	if err := c.JSON(ctx, http.MethodPut, path, u, true).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddRequestNote(ctx context.Context, id, note string) (*domain.FilingRequest, error) {
	var out domain.FilingRequest
	path := "/admin/requests/" + url.PathEscape(id) + "/notes"
	if err := c.JSON(ctx, http.MethodPost, path, map[string]string{"note": note}, true).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteRequest(ctx context.Context, id string) error {
	return c.JSON(ctx, http.MethodDelete, "/admin/requests/"+url.PathEscape(id), nil, true).Err()
}

func (c *Client) Statistics(ctx context.Context) (*ports.Statistics, error) {
	var out ports.Statistics
	if err := c.JSON(ctx, http.MethodGet, "/admin/statistics", nil, true).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyAdmin succeeds when the backend confirms the caller is an administrator.
func (c *Client) VerifyAdmin(ctx context.Context) error {
	var out struct {
		IsAdmin bool `json:"isAdmin"`
	}
	if err := c.JSON(ctx, http.MethodGet, "/admin/verify", nil, true).Decode(&out); err != nil {
		return err
	}
	if !out.IsAdmin {
		return &domain.APIError{Status: http.StatusForbidden, Message: "administrator access required"}
	}
	return nil
}

// Health reports whether the backend answers its liveness check.
func (c *Client) Health(ctx context.Context) error {
	return c.JSON(ctx, http.MethodGet, "/health", nil, false).Err()
}
