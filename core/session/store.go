package session

import (
	"context"

	"github.com/pkg/errors"
)

var ErrIncompleteCredential = errors.New("credential needs both a token and a user profile")

// Store persists one Credential.
//
// Implementations write and clear the token and the profile atomically.
// A record that cannot be decoded, or holds only one half of the pair, is corrupted:
// Load clears it and reports no credential instead of an error.
// The returned error is reserved for storage failures.
type Store interface {
	Save(ctx context.Context, cred Credential) error
	Load(ctx context.Context) (Credential, bool, error)
	Clear(ctx context.Context) error
}

// ScopeID names a client scope. Passed to the logger, it tags the entry with the scope.
type ScopeID string

// Scoped hands out the Store of one client scope (a browser, a CLI profile).
type Scoped interface {
	Scope(id string) Store
}
