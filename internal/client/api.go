// AngelaMos | 2026
// api.go

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nfphealth/nfp-backend/internal/admin"
	"github.com/nfphealth/nfp-backend/internal/auth"
	"github.com/nfphealth/nfp-backend/internal/enquiry"
	"github.com/nfphealth/nfp-backend/internal/rating"
	"github.com/nfphealth/nfp-backend/internal/role"
	"github.com/nfphealth/nfp-backend/internal/session"
	"github.com/nfphealth/nfp-backend/internal/submission"
	"github.com/nfphealth/nfp-backend/internal/user"
)

// SubmitEnquiry posts to the configured submit URL, or the API's
// /submitEnquiry when none is set.
func (c *Client) SubmitEnquiry(ctx context.Context, p enquiry.Payload) (*submission.Result, error) {
	target := c.submitURL
	if target == "" {
		target = c.url("/submitEnquiry")
	}

	if c.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.submitTimeout)
		defer cancel()
	}

	var res submission.Result
	if err := c.do(ctx, http.MethodPost, target, p, &res, false); err != nil {
		return nil, err
	}
	return &res, nil
}

// Register creates the account and stores its tokens. The returned role is
// the one the server assigned.
func (c *Client) Register(
	ctx context.Context,
	name, email, password string,
) (*session.Identity, string, error) {
	var res auth.AuthResponse
	err := c.do(ctx, http.MethodPost, c.url("/v1/auth/register"), auth.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}, &res, false)
	if err != nil {
		return nil, "", err
	}

	if err := c.store(res); err != nil {
		return nil, "", err
	}
	return identity(res.User), res.User.Role, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*session.Identity, error) {
	var res auth.AuthResponse
	err := c.do(ctx, http.MethodPost, c.url("/v1/auth/login"), auth.LoginRequest{
		Email:    email,
		Password: password,
	}, &res, false)
	if err != nil {
		return nil, err
	}

	if err := c.store(res); err != nil {
		return nil, err
	}
	return identity(res.User), nil
}

// Logout revokes the refresh token server side. Local credentials are
// cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	creds := c.Credentials()
	if creds == nil {
		return nil
	}

	err := c.do(ctx, http.MethodPost, c.url("/v1/auth/logout"),
		auth.RefreshRequest{RefreshToken: creds.RefreshToken}, nil, true)
	if err != nil {
		c.logger.WarnContext(ctx, "server logout failed", "error", err)
	}
	return c.setCredentials(nil)
}

// Identity returns the stored signed-in identity, or nil.
func (c *Client) Identity() *session.Identity {
	creds := c.Credentials()
	if creds == nil || creds.AccessToken == "" {
		return nil
	}
	return identity(creds.User)
}

// Profile reads the signed-in user's profile. The API only exposes the
// caller's own profile, so any other id resolves to none.
func (c *Client) Profile(ctx context.Context, id string) (*session.Profile, error) {
	var me auth.UserResponse
	if err := c.do(ctx, http.MethodGet, c.url("/v1/auth/me"), nil, &me, true); err != nil {
		return nil, err
	}
	if id != "" && me.ID != id {
		return nil, nil
	}

	return &session.Profile{
		ID:            me.ID,
		Email:         me.Email,
		Name:          me.Name,
		EmailVerified: me.EmailVerified,
		Roles:         role.Document{Role: me.Role},
	}, nil
}

func (c *Client) SetUserRole(ctx context.Context, email, r string) error {
	return c.do(ctx, http.MethodPut, c.url("/v1/admin/users/role"),
		user.SetRoleByEmailRequest{Email: email, Role: r}, nil, true)
}

func (c *Client) Users(ctx context.Context, after string, pageSize int) (*user.UserPage, error) {
	params := url.Values{}
	if after != "" {
		params.Set("after", after)
	}
	if pageSize > 0 {
		params.Set("page_size", strconv.Itoa(pageSize))
	}

	var page user.UserPage
	if err := c.do(ctx, http.MethodGet, c.url(query("/v1/admin/users", params)), nil, &page, true); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Rate(ctx context.Context, programID string, stars int, comment string) (rating.Summary, error) {
	var sum rating.Summary
	err := c.do(ctx, http.MethodPost, c.url("/ratings"), rating.Payload{
		ProgramID: programID,
		Stars:     float64(stars),
		Comment:   comment,
	}, &sum, true)
	return sum, err
}

func (c *Client) RatingSummary(ctx context.Context, programID string) (rating.Summary, error) {
	var sum rating.Summary
	target := c.url(query("/ratings", url.Values{"programId": {programID}}))
	err := c.do(ctx, http.MethodGet, target, nil, &sum, c.Identity() != nil)
	return sum, err
}

func (c *Client) Submissions(ctx context.Context, limit int) ([]enquiry.Enquiry, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var res enquiry.ListResponse
	if err := c.do(ctx, http.MethodGet, c.url(query("/submissions", params)), nil, &res, true); err != nil {
		return nil, err
	}
	return res.Items, nil
}

// BulkEmailResult is the server's acknowledgement of a bulk send.
type BulkEmailResult struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

func (c *Client) BulkEmail(ctx context.Context, to []string, message string) (*BulkEmailResult, error) {
	body := struct {
		To      []string `json:"to"`
		Message string   `json:"message"`
	}{to, message}

	var res BulkEmailResult
	if err := c.do(ctx, http.MethodPost, c.url("/bulkEmail"), body, &res, true); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Metrics(ctx context.Context) (*admin.Metrics, error) {
	var m admin.Metrics
	if err := c.do(ctx, http.MethodGet, c.url("/admin/metrics"), nil, &m, true); err != nil {
		return nil, err
	}
	return &m, nil
}

// Ping reports whether the API answers on its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	var res struct {
		OK bool `json:"ok"`
	}
	if err := c.do(ctx, http.MethodGet, c.url("/"), nil, &res, false); err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("health check returned not ok")
	}
	return nil
}

func (c *Client) store(res auth.AuthResponse) error {
	return c.setCredentials(&Credentials{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		User:         res.User,
	})
}

func identity(u auth.UserResponse) *session.Identity {
	return &session.Identity{ID: u.ID, Email: u.Email, Name: u.Name}
}
