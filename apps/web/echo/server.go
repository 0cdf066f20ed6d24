package echoweb

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/guard"
	"github.com/learnearn/hub/core/handoff"
	"github.com/learnearn/hub/core/session"
	"github.com/learnearn/hub/services/learnapi"
	"github.com/learnearn/hub/services/stkpush"
)

type (
	Deps struct {
		Conf        *core.Config
		Logger      core.Logger
		Credentials session.Scoped
		API         *learnapi.Client
		Guard       *guard.Guard
		Validator   *core.Validator
		Handoff     *handoff.Signer
		Donations   *stkpush.Client

		DisableReqLogs bool
		DisableCSRF    bool
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		address        string
		signalShutdown func()
		deps           *Deps
		app            *echo.Echo
	}
)

var _ Server = (*server)(nil)

// NewServer builds the web app. signalShutdown is called when a handler hits an error
// the process cannot keep serving with; it may be nil.
func NewServer(address string, signalShutdown func(), deps *Deps) (Server, error) {
	if signalShutdown == nil {
		signalShutdown = func() {}
	}
	r, err := newRenderer()
	if err != nil {
		return nil, errors.Wrap(err, "parsing templates")
	}

	s := &server{
		address:        address,
		signalShutdown: signalShutdown,
		deps:           deps,
		app:            echo.New(),
	}
	s.app.Renderer = r
	s.setup()
	return s, nil
}

func (s *server) setup() {
	debug := s.deps.Conf.Debug

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || s.deps.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.BodyLimit("12M"))
	if !s.deps.DisableCSRF {
		s.app.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
			TokenLookup:    "form:" + csrfField,
			CookiePath:     "/",
			CookieSecure:   s.deps.Conf.Server.CookieSecure,
			CookieHTTPOnly: true,
			CookieSameSite: http.SameSiteLaxMode,
		}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = debug

	s.app.GET("/healthz", healthz)

	// every page below resolves the visitor's session and passes the route guard
	g := s.app.Group("", s.scopeMiddleware, s.guardMiddleware)
	g.GET("/", s.landing)

	registerAuthRoutes(g, s)
	registerEarnRoutes(g, s)
	registerAdminRoutes(g, s)
}

func (s *server) Start() error {
	err := s.app.Start(s.address)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func healthz(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "ok")
}

func (s *server) landing(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, "landing", view{Title: s.deps.Conf.AppName})
}
