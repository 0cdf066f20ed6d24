// Package learnapi is the single outbound gateway to the Learn & Earn API.
package learnapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const maxBodySize = 10 << 20

// TokenSource supplies the bearer token attached to requests.
// ok is false when no credential is stored; the request is then sent unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (token string, ok bool)
}

type anonymous struct{}

func (anonymous) Token(context.Context) (string, bool) { return "", false }

type Options struct {
	BaseURL    string        // required, e.g. https://api.example.com/api
	Timeout    time.Duration // per request; 0 means none
	HTTPClient *http.Client  // optional
	UserAgent  string
}

// Client calls the API. It never retries: each failure surfaces once to the caller.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenSource
	userAgent string
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Errorf("learnapi: base URL %q must be an absolute http(s) URL", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:   base,
		http:      hc,
		tokens:    anonymous{},
		userAgent: opts.UserAgent,
	}, nil
}

// WithTokens returns a copy of c that authenticates with ts.
func (c *Client) WithTokens(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	// out receives the decoded JSON body; nil discards it.
	out interface{}
	// emptyOK accepts a 2xx response without a body even when out is set.
	emptyOK bool
}

func jsonBody(v interface{}) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding request body")
	}
	return bytes.NewReader(b), nil
}

// errorBody is the error envelope the API sends with non-2xx responses.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, r request) error {
	op := r.method + " " + r.path

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		ct := r.contentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.Set("Content-Type", ct)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token, ok := c.tokens.Token(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		msg := eb.Error
		if msg == "" {
			msg = eb.Message
		}
		return &Error{Kind: kindForStatus(resp.StatusCode), Op: op, Status: resp.StatusCode, Message: msg}
	}

	if r.out == nil {
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if r.emptyOK {
			return nil
		}
		return &Error{Kind: KindMalformed, Op: op, Status: resp.StatusCode, Err: errors.New("empty body")}
	}
	if err := json.Unmarshal(body, r.out); err != nil {
		return &Error{Kind: KindMalformed, Op: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}
