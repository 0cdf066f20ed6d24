package learnapi

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/session"
)

// authResponse accepts both the nested `user` shape and a flat profile.
type authResponse struct {
	Token string               `json:"token"`
	User  *session.UserProfile `json:"user"`

	ID    core.ID `json:"id"`
	OID   core.ID `json:"_id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Role  string  `json:"role"`
}

func (ar authResponse) credential() session.Credential {
	var usr session.UserProfile
	if ar.User != nil {
		usr = *ar.User
	} else {
		usr = session.UserProfile{ID: ar.ID, Name: ar.Name, Email: ar.Email, Role: ar.Role}
		if usr.ID == "" {
			usr.ID = ar.OID
		}
	}
	if usr.Name == "" {
		usr.Name = usr.Email
	}
	if usr.Role == "" {
		usr.Role = session.RoleUser
	}
	return session.Credential{Token: ar.Token, User: usr}
}

// SignIn exchanges email and password for a credential.
// A refusal from the server is reported as KindInvalidCredentials.
func (c *Client) SignIn(ctx context.Context, data session.SignIn) (session.Credential, error) {
	body, err := jsonBody(data)
	if err != nil {
		return session.Credential{}, err
	}

	var resp authResponse
	err = c.do(ctx, request{method: http.MethodPost, path: "/auth/signin", body: body, out: &resp})
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && isCredentialRefusal(apiErr.Status) {
			apiErr.Kind = KindInvalidCredentials
		}
		return session.Credential{}, err
	}

	cred := resp.credential()
	if !cred.Complete() {
		return session.Credential{}, &Error{
			Kind: KindMalformed,
			Op:   "POST /auth/signin",
			Err:  errors.New("invalid login response from server"),
		}
	}
	return cred, nil
}

// SignUp registers a new account.
// When the API signs the new user in right away, the credential is returned with ok set.
func (c *Client) SignUp(ctx context.Context, data session.SignUp) (cred session.Credential, ok bool, err error) {
	body, err := jsonBody(data)
	if err != nil {
		return session.Credential{}, false, err
	}

	var resp authResponse
	err = c.do(ctx, request{method: http.MethodPost, path: "/auth/signup", body: body, out: &resp, emptyOK: true})
	if err != nil {
		return session.Credential{}, false, err
	}
	if resp.Token == "" {
		return session.Credential{}, false, nil
	}
	cred = resp.credential()
	return cred, cred.Complete(), nil
}

func isCredentialRefusal(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
