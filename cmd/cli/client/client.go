// Package client talks to the labstock JSON API and the spreadsheet download
// routes.
package client

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/crucial707/labstock/internal/models"
	"github.com/crucial707/labstock/internal/report"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

// Client is a resty-backed API client.
type Client struct {
	http *resty.Client
}

// New returns a client for baseURL. token may be empty for login.
func New(baseURL, token string) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Client{http: c}
}

// LoginResult is the token and role returned by a successful login.
type LoginResult struct {
	Token     string      `json:"token"`
	Role      models.Role `json:"role"`
	ExpiresAt string      `json:"expires_at"`
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	msg := ""
	if e, ok := resp.Error().(*errorBody); ok && e.Error != "" {
		msg = e.Error
	}
	switch {
	case msg != "":
	case resp.StatusCode() == http.StatusSeeOther || resp.StatusCode() == http.StatusFound:
		msg = "not permitted for this session; log in with the right role"
	default:
		msg = strings.TrimSpace(resp.String())
	}
	return &APIError{Status: resp.StatusCode(), Message: msg}
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var out LoginResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&out).
		SetError(&errorBody{}).
		Post("/api/v1/auth/login")
	return out, check(resp, err)
}

// Items lists the inventory.
func (c *Client) Items(ctx context.Context) ([]models.Item, error) {
	var out []models.Item
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).SetError(&errorBody{}).Get("/api/v1/items")
	return out, check(resp, err)
}

// Add records an addition (admin session).
func (c *Client) Add(ctx context.Context, reagent string, amount string) (models.Item, error) {
	return c.mutate(ctx, "/api/v1/additions", reagent, amount)
}

// Withdraw records a withdrawal (user session).
func (c *Client) Withdraw(ctx context.Context, reagent string, amount string) (models.Item, error) {
	return c.mutate(ctx, "/api/v1/withdrawals", reagent, amount)
}

func (c *Client) mutate(ctx context.Context, path, reagent, amount string) (models.Item, error) {
	var out models.Item
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"reagent": reagent, "amount": amount}).
		SetResult(&out).
		SetError(&errorBody{}).
		Post(path)
	return out, check(resp, err)
}

// Report fetches the grouped audit report (admin session).
func (c *Client) Report(ctx context.Context) (report.Report, error) {
	var out report.Report
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).SetError(&errorBody{}).Get("/api/v1/report")
	return out, check(resp, err)
}

// Download fetches a spreadsheet from one of the /download routes and
// returns its bytes and the server-suggested file name.
func (c *Client) Download(ctx context.Context, what string) ([]byte, string, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/download/" + what)
	if err := check(resp, err); err != nil {
		return nil, "", err
	}
	name := what + ".xlsx"
	if _, params, err := mime.ParseMediaType(resp.Header().Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return resp.Body(), name, nil
}
