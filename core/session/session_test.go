package session_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/session"
	logsvc "github.com/learnearn/hub/services/logger"
	"github.com/learnearn/hub/storage/credstore"
)

var (
	admin  = session.Credential{Token: "abc", User: session.UserProfile{ID: "1", Email: "a@b.com", Role: "Admin"}}
	member = session.Credential{Token: "xyz", User: session.UserProfile{ID: "2", Name: "Otieno", Email: "u@b.com", Role: session.RoleUser}}
)

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Save(context.Context, session.Credential) error { return errors.New("disk full") }
func (brokenStore) Load(context.Context) (session.Credential, bool, error) {
	return session.Credential{}, false, errors.New("disk gone")
}
func (brokenStore) Clear(context.Context) error { return errors.New("disk gone") }

// ctxStore returns the context error once ctx is done, like the bolt store.
type ctxStore struct {
	session.Store
}

func (s ctxStore) Load(ctx context.Context) (session.Credential, bool, error) {
	if err := ctx.Err(); err != nil {
		return session.Credential{}, false, errors.Wrap(err, "loading credential")
	}
	return s.Store.Load(ctx)
}

// recordingLogger keeps the messages logged at Error level.
type recordingLogger struct {
	logsvc.NopLogger
	errors []string
}

func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}

func TestSession_Resolve(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		stored   *session.Credential
		wantAuth bool
		wantAdm  bool
		wantTok  string
	}{
		{name: "signed out"},
		{name: "member", stored: &member, wantAuth: true, wantTok: "xyz"},
		{name: "admin, any case", stored: &admin, wantAuth: true, wantAdm: true, wantTok: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := session.New(credstore.NewMemoryStore(logsvc.NopLogger{}), logsvc.NopLogger{})
			if tt.stored != nil {
				require.NoError(t, sess.SignIn(ctx, *tt.stored))
			}

			assert.Equal(t, tt.wantAuth, sess.IsAuthenticated(ctx))
			assert.Equal(t, tt.wantAdm, sess.IsAdmin(ctx))
			tok, ok := sess.Token(ctx)
			assert.Equal(t, tt.wantAuth, ok)
			assert.Equal(t, tt.wantTok, tok)
		})
	}
}

func TestSession_SignInRejectsIncomplete(t *testing.T) {
	ctx := context.Background()
	sess := session.New(credstore.NewMemoryStore(logsvc.NopLogger{}), logsvc.NopLogger{})

	err := sess.SignIn(ctx, session.Credential{Token: "abc"})
	assert.Equal(t, session.ErrIncompleteCredential, err)
	err = sess.SignIn(ctx, session.Credential{User: member.User})
	assert.Equal(t, session.ErrIncompleteCredential, err)
	assert.False(t, sess.IsAuthenticated(ctx))
}

func TestSession_SignOut(t *testing.T) {
	ctx := context.Background()
	sess := session.New(credstore.NewMemoryStore(logsvc.NopLogger{}), logsvc.NopLogger{})
	require.NoError(t, sess.SignIn(ctx, member))

	require.NoError(t, sess.SignOut(ctx))
	assert.False(t, sess.IsAuthenticated(ctx))
	_, ok := sess.User(ctx)
	assert.False(t, ok)

	// signing out twice is harmless
	assert.NoError(t, sess.SignOut(ctx))
}

func TestSession_BrokenStoreReadsAsSignedOut(t *testing.T) {
	ctx := context.Background()
	sess := session.New(brokenStore{}, logsvc.NopLogger{})

	assert.False(t, sess.IsAuthenticated(ctx))
	assert.False(t, sess.IsAdmin(ctx))
	assert.Error(t, sess.SignIn(ctx, member))
	assert.Error(t, sess.SignOut(ctx))
}

func TestSession_CancelledLoadIsQuiet(t *testing.T) {
	logger := &recordingLogger{}
	store := credstore.NewMemoryStore(logsvc.NopLogger{})
	sess := session.New(ctxStore{Store: store}, logger)
	require.NoError(t, sess.SignIn(context.Background(), member))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sess.IsAuthenticated(cancelled))
	assert.Empty(t, logger.errors)

	assert.True(t, sess.IsAuthenticated(context.Background()))

	sess = session.New(brokenStore{}, logger)
	assert.False(t, sess.IsAuthenticated(context.Background()))
	assert.Equal(t, []string{"loading credential"}, logger.errors)
}

func TestSignUp_PasswordLikeAttributes(t *testing.T) {
	v := core.NewValidator()

	su := session.SignUp{Name: "Wanjiru Kamau", Email: "wanjiru@b.com", Password: "wanjiru1"}
	err := v.Struct(su)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "got %v", err)
	assert.Contains(t, vErr.FieldMap(), "password")

	su.Password = "x9!pQ7zv"
	assert.NoError(t, v.Struct(su))
}

func TestUserProfile_DisplayName(t *testing.T) {
	assert.Equal(t, "Otieno", member.User.DisplayName())
	assert.Equal(t, "a@b.com", admin.User.DisplayName())
}
