package echoweb

import (
	"github.com/labstack/echo/v4"

	"github.com/learnearn/hub/core/screen"
)

// mount creates the list screen serving one request and runs its initial fetch.
// A 401/403 from the fetch signs the visitor out; callers check loggedOut.
func mount[T any](ctx echo.Context, s *server, opts screen.Options[T]) (*screen.List[T], screen.Snapshot[T]) {
	opts.OnSessionExpired = s.onSessionExpired(ctx)
	l := screen.New(opts)
	// a fresh list is neither busy nor unmounted
	snap, _ := l.Load(ctx.Request().Context())
	return l, snap
}

// mutate runs action on a mounted screen, refetching on success.
func mutate[T any](ctx echo.Context, l *screen.List[T], action screen.Action, fallback string) screen.Snapshot[T] {
	snap, err := l.Mutate(ctx.Request().Context(), action, fallback)
	if err != nil {
		// only reachable if the initial fetch is still running
		snap.Notice = &screen.Notice{Text: "Please wait for the page to finish loading.", Error: true}
	}
	return snap
}
