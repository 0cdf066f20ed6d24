package learnapi

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies a failed API call.
type Kind int

const (
	KindNetwork            Kind = iota + 1 // the request never reached the server
	KindRejected                           // non-2xx response
	KindUnauthorized                       // 401
	KindForbidden                          // 403
	KindMalformed                          // the body did not match the expected shape
	KindInvalidCredentials                 // sign-in refused
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network unavailable"
	case KindRejected:
		return "rejected"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindMalformed:
		return "malformed response"
	case KindInvalidCredentials:
		return "invalid credentials"
	default:
		return "unknown"
	}
}

// Error is returned by every Client call that fails.
type Error struct {
	Kind    Kind
	Op      string // e.g. "GET /admin/users"
	Status  int    // 0 when no response was received
	Message string // server supplied message, if any
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (%d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	default:
		return KindRejected
	}
}

// KindOf returns the Kind of err, or 0 when err is not an API error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// IsSessionInvalid reports whether err means the stored credential is no longer accepted.
func IsSessionInvalid(err error) bool {
	k := KindOf(err)
	return k == KindUnauthorized || k == KindForbidden
}

// Fallback user-facing messages.
const (
	MsgUnreachable    = "Cannot reach server. Try again later."
	MsgMalformed      = "Unexpected response from server."
	MsgSessionExpired = "Session expired. Please login again."
	MsgLoginFailed    = "Login failed. Check credentials."
)

// UserMessage maps err to text that can be shown as-is.
// A server supplied message always wins; fallback covers rejections without one.
func UserMessage(err error, fallback string) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return fallback
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	switch apiErr.Kind {
	case KindNetwork:
		return MsgUnreachable
	case KindMalformed:
		return MsgMalformed
	case KindUnauthorized, KindForbidden:
		return MsgSessionExpired
	case KindInvalidCredentials:
		return MsgLoginFailed
	default:
		return fallback
	}
}
