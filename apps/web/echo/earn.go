package echoweb

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/earn"
	"github.com/learnearn/hub/core/handoff"
	"github.com/learnearn/hub/core/screen"
	"github.com/learnearn/hub/services/learnapi"
	"github.com/learnearn/hub/services/stkpush"
)

const (
	msgAcceptFailed     = "Failed to accept assignment"
	msgAccepted         = "Assignment accepted. Check your email for details."
	msgTermsRequired    = "You must agree to the Terms of Service to continue."
	msgWalletFailed     = "Could not load your wallet."
	msgSubmissionClosed = "The submission form is not available right now."
)

type earnWeb struct {
	*server
}

func registerEarnRoutes(g *echo.Group, s *server) {
	web := earnWeb{s}

	g.GET("/home", web.home)
	g.GET("/earn", web.earn)
	g.GET("/earn/terms", web.termsForm)
	g.POST("/earn/terms", web.acceptTerms)
	g.POST("/earn/assignments/:id/accept", web.accept)
	g.GET("/submit", web.submitForm)
	g.POST("/submit", web.submit)
	g.GET("/donate", web.donateForm)
	g.POST("/donate", web.donate)
}

type earnPage struct {
	Wallet       earn.Wallet
	WalletError  string
	Assignments  screen.Snapshot[earn.Assignment]
	Type         string
	ReferralLink string
}

func (web earnWeb) home(ctx echo.Context) error {
	return web.render(ctx, http.StatusOK, "home", view{Title: "Home"})
}

func (web earnWeb) hasAcceptedTerms(ctx echo.Context) bool {
	c, err := ctx.Cookie(termsCookie)
	return err == nil && c.Value == "1"
}

func (web earnWeb) assignments(ctx echo.Context) (*screen.List[earn.Assignment], screen.Snapshot[earn.Assignment]) {
	st := getState(ctx)
	typ := ctx.QueryParam("type")
	return mount(ctx, web.server, screen.Options[earn.Assignment]{
		Fetch: func(c context.Context) ([]earn.Assignment, error) {
			return st.api.Assignments(c, typ)
		},
		EmptyText: "No assignments available right now.",
		FailText:  "Could not load assignments.",
	})
}

// page loads the wallet and wraps the assignment listing for the earn template.
func (web earnWeb) page(ctx echo.Context, snap screen.Snapshot[earn.Assignment]) earnPage {
	st := getState(ctx)
	p := earnPage{Assignments: snap, Type: ctx.QueryParam("type")}
	if usr, ok := st.sess.User(ctx.Request().Context()); ok {
		p.ReferralLink = ctx.Scheme() + "://" + ctx.Request().Host + "/register?ref=" + usr.ID.String()
	}

	if web.loggedOut(ctx) {
		return p
	}
	w, err := st.api.Wallet(ctx.Request().Context())
	if err != nil {
		p.WalletError = learnapi.UserMessage(err, msgWalletFailed)
		if learnapi.IsSessionInvalid(err) {
			web.onSessionExpired(ctx)(ctx.Request().Context())
		}
		return p
	}
	p.Wallet = w
	return p
}

func (web earnWeb) earn(ctx echo.Context) error {
	if !web.hasAcceptedTerms(ctx) {
		return ctx.Redirect(http.StatusSeeOther, "/earn/terms")
	}

	_, snap := web.assignments(ctx)
	data := web.page(ctx, snap)
	if web.loggedOut(ctx) {
		return web.toLogin(ctx)
	}
	return web.render(ctx, http.StatusOK, "earn", view{Title: "Earn", Data: data})
}

func (web earnWeb) termsForm(ctx echo.Context) error {
	return web.render(ctx, http.StatusOK, "terms", view{Title: "Terms of Service"})
}

func (web earnWeb) acceptTerms(ctx echo.Context) error {
	switch ctx.FormValue("agree") {
	case "on", "true", "1":
		ctx.SetCookie(web.cookie(termsCookie, "1"))
		return ctx.Redirect(http.StatusSeeOther, "/earn")
	}
	return web.render(ctx, http.StatusBadRequest, "terms", view{
		Title:   "Terms of Service",
		Message: msgTermsRequired,
	})
}

func (web earnWeb) accept(ctx echo.Context) error {
	if !web.hasAcceptedTerms(ctx) {
		return ctx.Redirect(http.StatusSeeOther, "/earn/terms")
	}

	st := getState(ctx)
	id := core.ID(ctx.Param("id"))

	list, snap := web.assignments(ctx)
	if !web.loggedOut(ctx) {
		snap = mutate(ctx, list, func(c context.Context) (string, error) {
			msg, err := st.api.AcceptAssignment(c, id)
			if err == nil && msg == "" {
				msg = msgAccepted
			}
			return msg, err
		}, msgAcceptFailed)
	}
	data := web.page(ctx, snap)
	if web.loggedOut(ctx) {
		return web.toLogin(ctx)
	}

	code := http.StatusOK
	if snap.Notice != nil && snap.Notice.Error {
		code = http.StatusBadRequest
	}
	return web.render(ctx, code, "earn", view{Title: "Earn", Data: data, Notice: snap.Notice})
}

func (web earnWeb) submitForm(ctx echo.Context) error {
	return web.render(ctx, http.StatusOK, "submit", view{Title: "Submit Assignment"})
}

// submit hands the visitor over to the external submission form with a signed token.
func (web earnWeb) submit(ctx echo.Context) error {
	st := getState(ctx)
	usr, ok := st.sess.User(ctx.Request().Context())
	if !ok {
		return ctx.Redirect(http.StatusSeeOther, web.deps.Guard.Policy().Login)
	}

	dest, err := web.deps.Handoff.URL(usr)
	if err != nil {
		if errors.Is(err, handoff.ErrNoFormURL) {
			return web.render(ctx, http.StatusServiceUnavailable, "submit", view{
				Title:   "Submit Assignment",
				Message: msgSubmissionClosed,
			})
		}
		return errors.Wrap(err, "building submission handoff")
	}
	web.deps.Logger.Info("submission handoff", usr)
	return ctx.Redirect(http.StatusSeeOther, dest)
}

func (web earnWeb) donateForm(ctx echo.Context) error {
	return web.render(ctx, http.StatusOK, "donate", view{Title: "Donate", Form: stkpush.Donation{}})
}

func (web earnWeb) donate(ctx echo.Context) error {
	var data stkpush.Donation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Donation")
	}
	data.Clean()
	if err := web.deps.Validator.Struct(data); err != nil {
		return web.formError(ctx, "donate", "Donate", data, err)
	}

	err := web.deps.Donations.Push(ctx.Request().Context(), data)
	if errors.Is(err, stkpush.ErrNoEndpoint) {
		return errors.Wrap(err, "donating")
	}
	if err != nil {
		web.deps.Logger.Warn("stk push failed", err)
	}

	notice := &screen.Notice{Text: stkpush.UserMessage(err), Error: err != nil}
	code := http.StatusOK
	if err != nil {
		code = http.StatusBadGateway
	}
	return web.render(ctx, code, "donate", view{Title: "Donate", Form: data, Notice: notice})
}
