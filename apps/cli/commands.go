package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/earn"
	"github.com/learnearn/hub/core/screen"
	"github.com/learnearn/hub/core/session"
	"github.com/learnearn/hub/services/learnapi"
	"github.com/learnearn/hub/services/spreadsheet"
	"github.com/learnearn/hub/services/stkpush"
)

// validate reports every invalid field on one line.
func (cli *commandLine) validate(data interface{}) error {
	err := cli.validator.Struct(data)
	if err == nil {
		return nil
	}
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		return err
	}
	fields := make([]string, 0, len(vErr.Fields))
	for name, msg := range vErr.FieldMap() {
		fields = append(fields, name+": "+msg)
	}
	sort.Strings(fields)
	return errors.New(strings.Join(fields, "; "))
}

func (cli *commandLine) login(ctx context.Context, data session.SignIn) error {
	data.Clean()
	if err := cli.validate(data); err != nil {
		return err
	}

	cred, err := cli.api.SignIn(ctx, data)
	if err != nil {
		if soErr := cli.sess.SignOut(ctx); soErr != nil {
			return errors.Wrap(soErr, "clearing credential")
		}
		if learnapi.KindOf(err) == 0 {
			return errors.Wrap(err, "signing in")
		}
		return errors.New(learnapi.UserMessage(err, learnapi.MsgLoginFailed))
	}
	if err := cli.sess.SignIn(ctx, cred); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Logged in as %s (%s).\n", cred.User.DisplayName(), cred.User.Role)
	return nil
}

func (cli *commandLine) signup(ctx context.Context, data session.SignUp) error {
	data.Clean()
	if err := cli.validate(data); err != nil {
		return err
	}

	cred, ok, err := cli.api.SignUp(ctx, data)
	if err != nil {
		if learnapi.KindOf(err) == 0 {
			return errors.Wrap(err, "signing up")
		}
		return errors.New(learnapi.UserMessage(err, "Signup failed"))
	}
	if !ok {
		fmt.Fprintln(cli.out, "Account created. Run `login` to sign in.")
		return nil
	}
	if err := cli.sess.SignIn(ctx, cred); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Account created. Logged in as %s.\n", cred.User.DisplayName())
	return nil
}

func (cli *commandLine) wallet(ctx context.Context) error {
	w, err := cli.api.Wallet(ctx)
	if err != nil {
		return cli.apiError(ctx, err, "Could not load your wallet.")
	}
	fmt.Fprintf(cli.out, "Balance:   KES %s\n", w.Balance)
	fmt.Fprintf(cli.out, "Referrals: %d (%d points)\n", w.Referrals.Count, w.Referrals.Points)
	return nil
}

func assignmentRow(a earn.Assignment) string {
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s", a.ID, a.Title, a.Type, a.Price, earn.DisplayDate(a.Deadline), a.DisplayStatus())
}

const assignmentHeader = "ID\tTITLE\tTYPE\tPRICE\tDEADLINE\tSTATUS"

func (cli *commandLine) assignmentScreen(typ string) screen.Options[earn.Assignment] {
	return screen.Options[earn.Assignment]{
		Fetch: func(c context.Context) ([]earn.Assignment, error) {
			return cli.api.Assignments(c, typ)
		},
		EmptyText: "No assignments available right now.",
		FailText:  "Could not load assignments.",
	}
}

func (cli *commandLine) allAssignmentScreen() screen.Options[earn.Assignment] {
	return screen.Options[earn.Assignment]{
		Fetch:     cli.api.AllAssignments,
		EmptyText: "No assignments found.",
		FailText:  "Could not load assignments.",
	}
}

func (cli *commandLine) assignments(ctx context.Context, typ string) error {
	return show(ctx, cli, cli.assignmentScreen(typ), assignmentHeader, assignmentRow)
}

func (cli *commandLine) allAssignments(ctx context.Context) error {
	return show(ctx, cli, cli.allAssignmentScreen(), assignmentHeader, assignmentRow)
}

// action runs one of the id-taking mutations and lists the collection it changed.
func (cli *commandLine) action(ctx context.Context, name string, id core.ID) error {
	switch name {
	case "accept":
		return change(ctx, cli, cli.assignmentScreen(""), func(c context.Context) (string, error) {
			msg, err := cli.api.AcceptAssignment(c, id)
			if err == nil && msg == "" {
				msg = "Assignment accepted. Check your email for details."
			}
			return msg, err
		}, "Failed to accept assignment", assignmentHeader, assignmentRow)
	case "verify":
		return change(ctx, cli, cli.userScreen(), func(c context.Context) (string, error) {
			return cli.api.VerifyUser(c, id)
		}, "Failed to verify user", userHeader, userRow)
	case "suspend":
		return change(ctx, cli, cli.userScreen(), func(c context.Context) (string, error) {
			return cli.api.ToggleSuspend(c, id)
		}, "Failed to update user", userHeader, userRow)
	}
	return errors.Errorf("unknown action %q", name)
}

func (cli *commandLine) submit(ctx context.Context) error {
	usr, ok := cli.sess.User(ctx)
	if !ok {
		return errNotLoggedIn
	}
	link, err := cli.handoff.URL(usr)
	if err != nil {
		return errors.Wrap(err, "building submission link")
	}
	fmt.Fprintln(cli.out, "Open this link to submit your work:")
	fmt.Fprintln(cli.out, link)
	return nil
}

func (cli *commandLine) donate(ctx context.Context, data stkpush.Donation) error {
	data.Clean()
	if err := cli.validate(data); err != nil {
		return err
	}
	if err := cli.donations.Push(ctx, data); err != nil {
		if errors.Is(err, stkpush.ErrNoEndpoint) {
			return err
		}
		return errors.New(stkpush.UserMessage(err))
	}
	fmt.Fprintln(cli.out, stkpush.MsgSent)
	return nil
}

const userHeader = "ID\tNAME\tEMAIL\tROLE\tVERIFIED\tSUSPENDED"

func userRow(u earn.User) string {
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%t\t%t", u.ID, u.DisplayName(), u.Email, u.Role, u.IsVerified, u.IsSuspended)
}

func (cli *commandLine) userScreen() screen.Options[earn.User] {
	return screen.Options[earn.User]{
		Fetch:     cli.api.Users,
		EmptyText: "No users found.",
		FailText:  "Failed to fetch users",
	}
}

func (cli *commandLine) users(ctx context.Context) error {
	return show(ctx, cli, cli.userScreen(), userHeader, userRow)
}

func paymentRow(p earn.Payment) string {
	email := ""
	if p.User != nil {
		email = p.User.Email
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s", p.PayeeName(), email, p.Amount, earn.DisplayDate(p.Date), p.DisplayStatus())
}

func (cli *commandLine) payments(ctx context.Context, xlsx string) error {
	if xlsx == "" {
		return show(ctx, cli, screen.Options[earn.Payment]{
			Fetch:     cli.api.Payments,
			EmptyText: "No payments found.",
			FailText:  "Failed to fetch payments",
		}, "USER\tEMAIL\tAMOUNT\tDATE\tSTATUS", paymentRow)
	}

	payments, err := cli.api.Payments(ctx)
	if err != nil {
		return cli.apiError(ctx, err, "Failed to fetch payments")
	}
	f, err := os.Create(xlsx)
	if err != nil {
		return errors.Wrap(err, "creating export file")
	}
	if err := spreadsheet.WritePayments(f, payments); err != nil {
		f.Close()
		return errors.Wrap(err, "exporting payments")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "closing export file")
	}
	fmt.Fprintf(cli.out, "Exported %d payments to %s\n", len(payments), xlsx)
	return nil
}

func (cli *commandLine) submissions(ctx context.Context) error {
	return show(ctx, cli, screen.Options[earn.Submission]{
		Fetch:     cli.api.Submissions,
		EmptyText: "No submissions yet.",
		FailText:  "Failed to fetch submissions",
	}, "ID\tTITLE\tDEPARTMENT\tSUBMITTED", func(s earn.Submission) string {
		return fmt.Sprintf("%s\t%s\t%s\t%s", s.ID, s.Title, s.Department, earn.DisplayDate(s.CreatedAt))
	})
}

func (cli *commandLine) createAssignment(ctx context.Context, na earn.NewAssignment, file string) error {
	na.Clean()
	if err := cli.validate(na); err != nil {
		return err
	}
	if file != "" {
		att, closeFn, err := openAttachment(file)
		if err != nil {
			return err
		}
		defer closeFn()
		na.File = att
	}

	return change(ctx, cli, cli.allAssignmentScreen(), func(c context.Context) (string, error) {
		a, err := cli.api.CreateAssignment(c, na)
		if err != nil {
			return "", err
		}
		if a.ID != "" {
			return fmt.Sprintf("Assignment created: %s", a.ID), nil
		}
		return "Assignment created.", nil
	}, "Failed to create assignment", assignmentHeader, assignmentRow)
}
