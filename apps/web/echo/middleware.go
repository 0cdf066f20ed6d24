package echoweb

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/learnearn/hub/core/guard"
	"github.com/learnearn/hub/core/screen"
	"github.com/learnearn/hub/core/session"
	"github.com/learnearn/hub/services/learnapi"
)

const (
	scopeCookie = "le_scope"
	termsCookie = "le_terms"
	csrfField   = "_csrf"

	contextStateKey = "requestState"
	cookieMaxAge    = int(365 * 24 * time.Hour / time.Second)
)

// requestState is what one request knows about its visitor.
type requestState struct {
	scope session.ScopeID
	sess  *session.Session
	api   *learnapi.Client

	// set once a screen's API call came back 401/403 and the credential was cleared
	logout *guard.Decision
}

func getState(ctx echo.Context) *requestState {
	st, _ := ctx.Get(contextStateKey).(*requestState)
	return st
}

// scopeMiddleware binds the request to the credential scope of its browser,
// issuing a fresh scope cookie on first visit.
func (s *server) scopeMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var id string
		if c, err := ctx.Cookie(scopeCookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			ctx.SetCookie(s.cookie(scopeCookie, id))
		}

		sess := session.New(s.deps.Credentials.Scope(id), s.deps.Logger)
		ctx.Set(contextStateKey, &requestState{
			scope: session.ScopeID(id),
			sess:  sess,
			api:   s.deps.API.WithTokens(sess),
		})
		return next(ctx)
	}
}

func (s *server) guardMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		st := getState(ctx)
		d := s.deps.Guard.Decide(ctx.Request().Context(), ctx.Request().URL.Path, st.sess)
		switch d.Outcome {
		case guard.Redirect:
			return ctx.Redirect(http.StatusSeeOther, d.Location)
		case guard.Forbid:
			return s.render(ctx, http.StatusForbidden, "forbidden", view{Title: "Forbidden"})
		}
		return next(ctx)
	}
}

func (s *server) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		Secure:   s.deps.Conf.Server.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// onSessionExpired is the forced logout run by every screen of this request.
func (s *server) onSessionExpired(ctx echo.Context) screen.SessionExpiredFunc {
	return func(c context.Context) {
		st := getState(ctx)
		d, err := s.deps.Guard.ForceLogout(c, st.sess)
		if err != nil {
			s.deps.Logger.Error("forced logout", err, st.scope)
			d = guard.Decision{Outcome: guard.Redirect, Location: s.deps.Guard.Policy().Login}
		}
		st.logout = &d
	}
}

// toLogin ends a request whose session expired mid-screen.
func (s *server) toLogin(ctx echo.Context) error {
	st := getState(ctx)
	loc := st.logout.Location + "?expired=1"
	return ctx.Redirect(http.StatusSeeOther, loc)
}

func (s *server) loggedOut(ctx echo.Context) bool {
	st := getState(ctx)
	return st != nil && st.logout != nil
}
