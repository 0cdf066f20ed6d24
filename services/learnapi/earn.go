package learnapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/pkg/errors"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/earn"
)

type messageResponse struct {
	Message string `json:"message"`
}

// Wallet returns the signed-in user's balance and referral summary.
func (c *Client) Wallet(ctx context.Context) (earn.Wallet, error) {
	var w earn.Wallet
	err := c.do(ctx, request{method: http.MethodGet, path: "/earn/me", out: &w})
	return w, err
}

// Assignments lists the assignments offered to users, optionally filtered by type.
func (c *Client) Assignments(ctx context.Context, typ string) ([]earn.Assignment, error) {
	var q url.Values
	if typ != "" {
		q = url.Values{"type": {typ}}
	}
	var out []earn.Assignment
	err := c.do(ctx, request{method: http.MethodGet, path: "/earn/assignments", query: q, out: &out})
	return out, err
}

// AllAssignments lists every assignment.
func (c *Client) AllAssignments(ctx context.Context) ([]earn.Assignment, error) {
	var out []earn.Assignment
	err := c.do(ctx, request{method: http.MethodGet, path: "/earn/assignments/all", out: &out})
	return out, err
}

// AcceptAssignment accepts an assignment for the signed-in user and returns the server's confirmation.
func (c *Client) AcceptAssignment(ctx context.Context, id core.ID) (string, error) {
	var resp messageResponse
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/earn/assignments/" + url.PathEscape(id.String()) + "/accept",
		out:     &resp,
		emptyOK: true,
	})
	return resp.Message, err
}

// Submissions lists every submission received.
func (c *Client) Submissions(ctx context.Context) ([]earn.Submission, error) {
	var out []earn.Submission
	err := c.do(ctx, request{method: http.MethodGet, path: "/earn/submissions/all", out: &out})
	return out, err
}

// CreateAssignment publishes an assignment using a multipart form.
func (c *Client) CreateAssignment(ctx context.Context, na earn.NewAssignment) (earn.Assignment, error) {
	body, contentType, err := assignmentForm(na)
	if err != nil {
		return earn.Assignment{}, err
	}

	var raw json.RawMessage
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/earn/assignments/create",
		body:        body,
		contentType: contentType,
		out:         &raw,
		emptyOK:     true,
	})
	if err != nil || len(raw) == 0 {
		return earn.Assignment{}, err
	}

	// either {"assignment": {...}} or the assignment itself
	var wrapped struct {
		Assignment *earn.Assignment `json:"assignment"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Assignment != nil {
		return *wrapped.Assignment, nil
	}
	var a earn.Assignment
	if err := json.Unmarshal(raw, &a); err != nil {
		return earn.Assignment{}, &Error{Kind: KindMalformed, Op: "POST /earn/assignments/create", Err: err}
	}
	return a, nil
}

func assignmentForm(na earn.NewAssignment) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"title", na.Title},
		{"description", na.Description},
		{"type", na.Type},
		{"price", na.Price},
		{"deadline", na.Deadline},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", errors.Wrapf(err, "writing %s", f.name)
		}
	}

	if na.File != nil && na.File.Content != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+escapeQuotes(na.File.Filename)+`"`)
		ct := na.File.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", errors.Wrap(err, "creating file part")
		}
		if _, err := io.Copy(part, na.File.Content); err != nil {
			return nil, "", errors.Wrap(err, "copying file")
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "closing multipart writer")
	}
	return &buf, w.FormDataContentType(), nil
}

func escapeQuotes(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
