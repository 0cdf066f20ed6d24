package learnapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/earn"
)

// Users lists every account (admin only).
func (c *Client) Users(ctx context.Context) ([]earn.User, error) {
	var out []earn.User
	err := c.do(ctx, request{method: http.MethodGet, path: "/admin/users", out: &out})
	return out, err
}

// VerifyUser marks an account as verified.
func (c *Client) VerifyUser(ctx context.Context, id core.ID) (string, error) {
	return c.userAction(ctx, id, "verify")
}

// ToggleSuspend suspends an active account, or lifts the suspension of a suspended one.
func (c *Client) ToggleSuspend(ctx context.Context, id core.ID) (string, error) {
	return c.userAction(ctx, id, "suspend")
}

func (c *Client) userAction(ctx context.Context, id core.ID, action string) (string, error) {
	var resp messageResponse
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/admin/users/" + url.PathEscape(id.String()) + "/" + action,
		out:     &resp,
		emptyOK: true,
	})
	return resp.Message, err
}

// Payments lists every payment (admin only).
func (c *Client) Payments(ctx context.Context) ([]earn.Payment, error) {
	var out []earn.Payment
	err := c.do(ctx, request{method: http.MethodGet, path: "/admin/payments", out: &out})
	return out, err
}
