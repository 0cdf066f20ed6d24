package echoweb

import (
	"bytes"
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/earn"
	"github.com/learnearn/hub/core/screen"
	"github.com/learnearn/hub/services/learnapi"
	"github.com/learnearn/hub/services/spreadsheet"
)

const (
	msgVerifyFailed  = "Failed to verify user"
	msgSuspendFailed = "Failed to update user"
	msgCreateFailed  = "Failed to create assignment"
	msgCreated       = "Assignment created."
	msgExportFailed  = "Failed to fetch payments"
	exportFilename   = "payments.xlsx"
)

type adminWeb struct {
	*server
}

func registerAdminRoutes(g *echo.Group, s *server) {
	web := adminWeb{s}

	ag := g.Group("/admin")
	ag.GET("", web.dashboard)
	ag.GET("/users", web.users)
	ag.POST("/users/:id/verify", web.verifyUser)
	ag.POST("/users/:id/suspend", web.toggleSuspend)
	ag.GET("/payments", web.payments)
	ag.GET("/payments/export.xlsx", web.exportPayments)
	ag.GET("/submissions", web.submissions)
	ag.GET("/assignments", web.assignments)
	ag.POST("/assignments/new", web.createAssignment)
}

func (web adminWeb) dashboard(ctx echo.Context) error {
	return web.render(ctx, http.StatusOK, "admin", view{Title: "Admin"})
}

// listPage renders one admin listing, or ends the request when the session expired.
func listPage[T any](ctx echo.Context, s *server, page, title string, snap screen.Snapshot[T], form interface{}) error {
	if s.loggedOut(ctx) {
		return s.toLogin(ctx)
	}
	code := http.StatusOK
	if snap.Notice != nil && snap.Notice.Error {
		code = http.StatusBadRequest
	}
	return s.render(ctx, code, page, view{Title: title, Data: snap, Notice: snap.Notice, Form: form})
}

// Users

func (web adminWeb) usersList(ctx echo.Context) (*screen.List[earn.User], screen.Snapshot[earn.User]) {
	st := getState(ctx)
	return mount(ctx, web.server, screen.Options[earn.User]{
		Fetch:     st.api.Users,
		EmptyText: "No users found.",
		FailText:  "Failed to fetch users",
	})
}

func (web adminWeb) users(ctx echo.Context) error {
	_, snap := web.usersList(ctx)
	return listPage(ctx, web.server, "admin_users", "Users", snap, nil)
}

func (web adminWeb) userAction(ctx echo.Context, call func(context.Context, core.ID) (string, error), fallback string) error {
	id := core.ID(ctx.Param("id"))
	list, snap := web.usersList(ctx)
	if !web.loggedOut(ctx) {
		snap = mutate(ctx, list, func(c context.Context) (string, error) {
			return call(c, id)
		}, fallback)
	}
	return listPage(ctx, web.server, "admin_users", "Users", snap, nil)
}

func (web adminWeb) verifyUser(ctx echo.Context) error {
	return web.userAction(ctx, getState(ctx).api.VerifyUser, msgVerifyFailed)
}

func (web adminWeb) toggleSuspend(ctx echo.Context) error {
	return web.userAction(ctx, getState(ctx).api.ToggleSuspend, msgSuspendFailed)
}

// Payments

func (web adminWeb) payments(ctx echo.Context) error {
	st := getState(ctx)
	_, snap := mount(ctx, web.server, screen.Options[earn.Payment]{
		Fetch:     st.api.Payments,
		EmptyText: "No payments found.",
		FailText:  msgExportFailed,
	})
	return listPage(ctx, web.server, "admin_payments", "Payments", snap, nil)
}

func (web adminWeb) exportPayments(ctx echo.Context) error {
	st := getState(ctx)
	rctx := ctx.Request().Context()

	payments, err := st.api.Payments(rctx)
	if err != nil {
		if learnapi.IsSessionInvalid(err) {
			web.onSessionExpired(ctx)(rctx)
			return web.toLogin(ctx)
		}
		if learnapi.KindOf(err) == 0 {
			return errors.Wrap(err, "fetching payments")
		}
		return echo.NewHTTPError(http.StatusBadGateway, learnapi.UserMessage(err, msgExportFailed))
	}

	var buf bytes.Buffer
	if err := spreadsheet.WritePayments(&buf, payments); err != nil {
		return errors.Wrap(err, "exporting payments")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+exportFilename+`"`)
	return ctx.Blob(http.StatusOK, spreadsheet.ContentType, buf.Bytes())
}

// Submissions

func (web adminWeb) submissions(ctx echo.Context) error {
	st := getState(ctx)
	_, snap := mount(ctx, web.server, screen.Options[earn.Submission]{
		Fetch:     st.api.Submissions,
		EmptyText: "No submissions yet.",
		FailText:  "Failed to fetch submissions",
	})
	return listPage(ctx, web.server, "admin_submissions", "Submissions", snap, nil)
}

// Assignments

func (web adminWeb) assignmentsList(ctx echo.Context) (*screen.List[earn.Assignment], screen.Snapshot[earn.Assignment]) {
	st := getState(ctx)
	return mount(ctx, web.server, screen.Options[earn.Assignment]{
		Fetch:     st.api.AllAssignments,
		EmptyText: "No assignments found.",
		FailText:  "Could not load assignments.",
	})
}

func (web adminWeb) assignments(ctx echo.Context) error {
	_, snap := web.assignmentsList(ctx)
	return listPage(ctx, web.server, "admin_assignments", "Assignments", snap, earn.NewAssignment{})
}

func (web adminWeb) createAssignment(ctx echo.Context) error {
	var data earn.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	data.Clean()

	fh, err := ctx.FormFile("file")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening uploaded file")
		}
		defer f.Close()
		data.File = &earn.Attachment{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Content:     f,
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return errors.Wrap(err, "reading uploaded file")
	}

	list, snap := web.assignmentsList(ctx)
	if web.loggedOut(ctx) {
		return web.toLogin(ctx)
	}

	form := data
	form.File = nil
	if err := web.deps.Validator.Struct(data); err != nil {
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			return err
		}
		return web.render(ctx, http.StatusBadRequest, "admin_assignments", view{
			Title:   "Assignments",
			Data:    snap,
			Form:    form,
			Errors:  vErr.FieldMap(),
			Message: "Please fix the errors below.",
		})
	}

	st := getState(ctx)
	snap = mutate(ctx, list, func(c context.Context) (string, error) {
		if _, err := st.api.CreateAssignment(c, data); err != nil {
			return "", err
		}
		return msgCreated, nil
	}, msgCreateFailed)

	if snap.Notice != nil && !snap.Notice.Error {
		form = earn.NewAssignment{}
	}
	return listPage(ctx, web.server, "admin_assignments", "Assignments", snap, form)
}
