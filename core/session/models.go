package session

import (
	"encoding/json"
	"strings"

	"github.com/learnearn/hub/core"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserProfile is the client's cached copy of the signed-in user.
// It is stale until the next sign-in: admin actions (verify, suspend) are not reflected here.
type UserProfile struct {
	ID          core.ID `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Role        string  `json:"role"`
	IsVerified  bool    `json:"isVerified"`
	IsSuspended bool    `json:"isSuspended"`
}

func (u *UserProfile) UnmarshalJSON(b []byte) error {
	type alias UserProfile
	aux := struct {
		*alias
		OID core.ID `json:"_id"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = aux.OID
	}
	return nil
}

func (u UserProfile) IsAdmin() bool {
	return strings.EqualFold(u.Role, RoleAdmin)
}

// DisplayName falls back to the email when the API sent no name.
func (u UserProfile) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func (u UserProfile) isZero() bool {
	return u.ID == "" && u.Email == ""
}

// Credential is the auth token and the cached profile, always stored as a pair.
type Credential struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

// Complete reports whether both halves of the pair are present.
func (c Credential) Complete() bool {
	return c.Token != "" && !c.User.isZero()
}
