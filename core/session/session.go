package session

import (
	"context"

	"github.com/pkg/errors"

	"github.com/learnearn/hub/core"
)

// Session resolves authentication state from a Store.
// It holds no state of its own: every answer reflects the store at call time.
type Session struct {
	store  Store
	logger core.Logger
}

func New(store Store, logger core.Logger) *Session {
	return &Session{store: store, logger: logger}
}

// Credential returns the stored credential, if any.
// Storage failures are logged and read as "no credential".
func (s *Session) Credential(ctx context.Context) (Credential, bool) {
	cred, ok, err := s.store.Load(ctx)
	if err != nil {
		// the caller went away, nothing to report
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("loading credential", errors.Wrap(err, "session.Credential"))
		}
		return Credential{}, false
	}
	return cred, ok
}

// Token implements the API client's token source.
func (s *Session) Token(ctx context.Context) (string, bool) {
	cred, ok := s.Credential(ctx)
	if !ok {
		return "", false
	}
	return cred.Token, true
}

func (s *Session) User(ctx context.Context) (UserProfile, bool) {
	cred, ok := s.Credential(ctx)
	return cred.User, ok
}

func (s *Session) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.Credential(ctx)
	return ok
}

func (s *Session) IsAdmin(ctx context.Context) bool {
	cred, ok := s.Credential(ctx)
	return ok && cred.User.IsAdmin()
}

// SignIn stores the credential returned by a successful sign-in.
func (s *Session) SignIn(ctx context.Context, cred Credential) error {
	if !cred.Complete() {
		return ErrIncompleteCredential
	}
	return errors.Wrap(s.store.Save(ctx, cred), "saving credential")
}

// SignOut drops the stored credential.
func (s *Session) SignOut(ctx context.Context) error {
	return errors.Wrap(s.store.Clear(ctx), "clearing credential")
}
