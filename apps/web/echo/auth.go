package echoweb

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/session"
	"github.com/learnearn/hub/services/learnapi"
)

const (
	msgRegistered = "Account created. Please login."
	msgSignupFail = "Signup failed. Please try again."
)

type authWeb struct {
	*server
}

func registerAuthRoutes(g *echo.Group, s *server) {
	web := authWeb{s}

	g.GET("/login", web.loginForm)
	g.POST("/login", web.login)
	g.GET("/signup", web.signupForm)
	g.POST("/signup", web.signup)
	g.GET("/register", web.register)
	g.GET("/logout", web.logout)
	g.POST("/logout", web.logout)
}

type loginForm struct {
	session.SignIn
	Next string
}

func (web authWeb) loginForm(ctx echo.Context) error {
	v := view{Title: "Login", Form: loginForm{Next: ctx.QueryParam("next")}}
	switch {
	case ctx.QueryParam("expired") != "":
		v.Message = learnapi.MsgSessionExpired
	case ctx.QueryParam("registered") != "":
		v.Message = msgRegistered
	}
	return web.render(ctx, http.StatusOK, "login", v)
}

func (web authWeb) login(ctx echo.Context) error {
	var data session.SignIn
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignIn")
	}
	data.Clean()
	form := loginForm{SignIn: session.SignIn{Email: data.Email}, Next: ctx.FormValue("next")}

	if err := web.deps.Validator.Struct(data); err != nil {
		return web.formError(ctx, "login", "Login", form, err)
	}

	st := getState(ctx)
	rctx := ctx.Request().Context()
	cred, err := st.api.SignIn(rctx, data)
	if err != nil {
		// a refused sign-in never leaves an older credential behind
		if soErr := st.sess.SignOut(rctx); soErr != nil {
			return errors.Wrap(soErr, "clearing credential")
		}
		if learnapi.KindOf(err) == 0 {
			return errors.Wrap(err, "signing in")
		}
		return web.render(ctx, http.StatusUnauthorized, "login", view{
			Title:   "Login",
			Form:    form,
			Message: learnapi.UserMessage(err, learnapi.MsgLoginFailed),
		})
	}
	if err := st.sess.SignIn(rctx, cred); err != nil {
		return errors.Wrap(err, "storing credential")
	}

	dest := web.deps.Guard.Home(rctx, st.sess)
	if next := safeNext(form.Next); next != "" {
		dest = next
	}
	return ctx.Redirect(http.StatusSeeOther, dest)
}

func (web authWeb) signupForm(ctx echo.Context) error {
	return web.render(ctx, http.StatusOK, "signup", view{
		Title: "Sign up",
		Form:  session.SignUp{Ref: ctx.QueryParam("ref")},
	})
}

func (web authWeb) signup(ctx echo.Context) error {
	var data session.SignUp
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignUp")
	}
	data.Clean()
	form := data
	form.Password = ""

	if err := web.deps.Validator.Struct(data); err != nil {
		return web.formError(ctx, "signup", "Sign up", form, err)
	}

	st := getState(ctx)
	rctx := ctx.Request().Context()
	cred, ok, err := st.api.SignUp(rctx, data)
	if err != nil {
		if learnapi.KindOf(err) == 0 {
			return errors.Wrap(err, "signing up")
		}
		return web.render(ctx, http.StatusBadRequest, "signup", view{
			Title:   "Sign up",
			Form:    form,
			Message: learnapi.UserMessage(err, msgSignupFail),
		})
	}
	if !ok {
		return ctx.Redirect(http.StatusSeeOther, web.deps.Guard.Policy().Login+"?registered=1")
	}
	if err := st.sess.SignIn(rctx, cred); err != nil {
		return errors.Wrap(err, "storing credential")
	}
	return ctx.Redirect(http.StatusSeeOther, web.deps.Guard.Home(rctx, st.sess))
}

// register serves referral links, /register?ref=<user id>.
func (web authWeb) register(ctx echo.Context) error {
	dest := "/signup"
	if ref := ctx.QueryParam("ref"); ref != "" {
		dest += "?ref=" + url.QueryEscape(ref)
	}
	return ctx.Redirect(http.StatusSeeOther, dest)
}

func (web authWeb) logout(ctx echo.Context) error {
	st := getState(ctx)
	if err := st.sess.SignOut(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "signing out")
	}
	return ctx.Redirect(http.StatusSeeOther, "/")
}

// formError re-renders a form page with its field errors.
func (s *server) formError(ctx echo.Context, page, title string, form interface{}, err error) error {
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		return err
	}
	return s.render(ctx, http.StatusBadRequest, page, view{
		Title:   title,
		Form:    form,
		Errors:  vErr.FieldMap(),
		Message: "Please fix the errors below.",
	})
}

// safeNext only lets local absolute paths through.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}
