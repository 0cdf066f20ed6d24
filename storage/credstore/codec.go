package credstore

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/learnearn/hub/core/session"
)

var (
	tokenKey = []byte("token")
	userKey  = []byte("user")

	errCorrupted = errors.New("corrupted credential")
)

// encode splits a credential into its two stored fields.
func encode(cred session.Credential) (token, user []byte, err error) {
	if !cred.Complete() {
		return nil, nil, session.ErrIncompleteCredential
	}
	user, err = json.Marshal(cred.User)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encoding user profile")
	}
	return []byte(cred.Token), user, nil
}

// decode rebuilds a credential from its stored fields.
// ok is false when neither field is set; errCorrupted when only one is, or the profile does not parse.
func decode(token, user []byte) (cred session.Credential, ok bool, err error) {
	if token == nil && user == nil {
		return session.Credential{}, false, nil
	}
	if len(token) == 0 || len(user) == 0 {
		return session.Credential{}, false, errCorrupted
	}
	var usr session.UserProfile
	if err := json.Unmarshal(user, &usr); err != nil {
		return session.Credential{}, false, errors.Wrap(errCorrupted, err.Error())
	}
	cred = session.Credential{Token: string(token), User: usr}
	if !cred.Complete() {
		return session.Credential{}, false, errCorrupted
	}
	return cred, true, nil
}
