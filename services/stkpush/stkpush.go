// Package stkpush starts an M-Pesa STK push through the donation provider.
// The provider is opaque: a 2xx answer means the prompt was sent to the phone.
package stkpush

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/learnearn/hub/core"
)

const (
	MsgSent        = "STK Push sent successfully! Please complete payment on your phone."
	MsgFailed      = "Something went wrong. Please try again."
	MsgUnreachable = "Unable to initiate payment. Check your phone number or try later."
)

var ErrNoEndpoint = errors.New("stkpush: donation endpoint is not configured")

// Donation is the donate form.
type Donation struct {
	Phone  string `form:"phone" json:"phone" validate:"required,msisdn_ke"`
	Amount string `form:"amount" json:"amount" validate:"required,numeric"`
}

// Clean normalizes local numbers (07XX..., +2547XX...) to 2547XX....
func (d *Donation) Clean() {
	phone := strings.NewReplacer(" ", "", "-", "").Replace(core.CleanString(d.Phone))
	phone = strings.TrimPrefix(phone, "+")
	if strings.HasPrefix(phone, "0") && len(phone) == 10 {
		phone = "254" + phone[1:]
	}
	d.Phone = phone
	d.Amount = core.CleanString(d.Amount)
}

// Error is a push the provider did not accept.
type Error struct {
	Status int // 0 when the provider was not reached
	Err    error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return "stkpush: provider unreachable: " + e.Err.Error()
	}
	return "stkpush: provider answered " + http.StatusText(e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage maps the outcome of Push to the text shown on the donate page.
func UserMessage(err error) string {
	if err == nil {
		return MsgSent
	}
	var pErr *Error
	if errors.As(err, &pErr) && pErr.Status == 0 {
		return MsgUnreachable
	}
	return MsgFailed
}

type Client struct {
	endpoint string
	http     *http.Client
}

func New(endpoint string, timeout time.Duration) *Client {
	return &Client{endpoint: endpoint, http: &http.Client{Timeout: timeout}}
}

// Push asks the provider to prompt d.Phone for d.Amount. It is never retried.
func (c *Client) Push(ctx context.Context, d Donation) error {
	if c.endpoint == "" {
		return ErrNoEndpoint
	}
	b, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "encoding donation")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Status: resp.StatusCode}
	}
	return nil
}
