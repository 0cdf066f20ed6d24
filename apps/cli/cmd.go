package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/earn"
	"github.com/learnearn/hub/core/guard"
	"github.com/learnearn/hub/core/handoff"
	"github.com/learnearn/hub/core/screen"
	"github.com/learnearn/hub/core/session"
	"github.com/learnearn/hub/services/learnapi"
	"github.com/learnearn/hub/services/stkpush"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp           = errors.New("help provided")
	errNotLoggedIn    = errors.New("not logged in: run `login` first")
	errForbidden      = errors.New("this command needs an admin account")
	errSessionExpired = errors.New(learnapi.MsgSessionExpired)
)

type commandLine struct {
	out       io.Writer
	sess      *session.Session
	api       *learnapi.Client
	guard     *guard.Guard
	validator *core.Validator
	handoff   *handoff.Signer
	donations *stkpush.Client
}

// commands maps each command to the route whose access rule it shares.
var commands = []struct {
	name, route, help string
}{
	{"login", "/login", "-email EMAIL - sign in (password is prompted)"},
	{"signup", "/signup", "-name NAME -email EMAIL [-ref ID] - create an account (password is prompted)"},
	{"logout", "/logout", "drop the stored credential"},
	{"whoami", "/home", "show the signed-in user"},
	{"wallet", "/earn", "show balance and referrals"},
	{"assignments", "/earn", "[-type TYPE] - list open assignments"},
	{"accept", "/earn/assignments/accept", "-id ID - accept an assignment"},
	{"submit", "/submit", "print the submission form link"},
	{"donate", "/donate", "-phone 2547XXXXXXXX -amount KES - donate with M-Pesa"},
	{"users", "/admin/users", "list users"},
	{"verify", "/admin/users/verify", "-id ID - verify a user"},
	{"suspend", "/admin/users/suspend", "-id ID - suspend or reinstate a user"},
	{"payments", "/admin/payments", "[-xlsx FILE] - list payments, optionally exported to a workbook"},
	{"submissions", "/admin/submissions", "list submissions"},
	{"admin-assignments", "/admin/assignments", "list every assignment"},
	{"create-assignment", "/admin/assignments/new", "-title T -description D [-type T] [-price P] [-deadline YYYY-MM-DD] [-file PATH]"},
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	for _, c := range commands {
		fmt.Fprintf(cli.out, "  %s %s\n", c.name, c.help)
	}
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	name := args[1]
	var route string
	for _, c := range commands {
		if c.name == name {
			route = c.route
		}
	}
	if route == "" {
		cli.printUsage()
		return errHelp
	}

	switch d := cli.guard.Decide(ctx, route, cli.sess); d.Outcome {
	case guard.Forbid:
		return errForbidden
	case guard.Redirect:
		if d.Location == cli.guard.Policy().Login || strings.HasPrefix(d.Location, cli.guard.Policy().Login+"?") {
			return errNotLoggedIn
		}
		// a guest-only command while signed in
		return errors.Errorf("already logged in as %s: run `logout` first", cli.whoami(ctx))
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	rest := args[2:]

	switch name {
	case "login":
		email := fs.String("email", "", "Your email. The password will be prompted next.")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		pwd, err := cli.promptPassword(fs)
		if err != nil {
			return err
		}
		return cli.login(ctx, session.SignIn{Email: *email, Password: pwd})
	case "signup":
		fullName := fs.String("name", "", "Your full name.")
		email := fs.String("email", "", "Your email. The password will be prompted next.")
		ref := fs.String("ref", "", "Referrer's user id.")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		pwd, err := cli.promptPassword(fs)
		if err != nil {
			return err
		}
		return cli.signup(ctx, session.SignUp{Name: *fullName, Email: *email, Password: pwd, Ref: *ref})
	case "logout":
		if err := cli.sess.SignOut(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "Logged out.")
		return nil
	case "whoami":
		fmt.Fprintln(cli.out, cli.whoami(ctx))
		return nil
	case "wallet":
		return cli.wallet(ctx)
	case "assignments":
		typ := fs.String("type", "", "Only list assignments of this type.")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return cli.assignments(ctx, *typ)
	case "accept", "verify", "suspend":
		id := fs.String("id", "", "The id.")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *id == "" {
			fs.Usage()
			return errHelp
		}
		return cli.action(ctx, name, core.ID(*id))
	case "submit":
		return cli.submit(ctx)
	case "donate":
		phone := fs.String("phone", "", "Safaricom number, 2547XXXXXXXX or 07XXXXXXXX.")
		amount := fs.String("amount", "", "Amount in KES.")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return cli.donate(ctx, stkpush.Donation{Phone: *phone, Amount: *amount})
	case "users":
		return cli.users(ctx)
	case "payments":
		xlsx := fs.String("xlsx", "", "Write the payments to this xlsx file.")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return cli.payments(ctx, *xlsx)
	case "submissions":
		return cli.submissions(ctx)
	case "admin-assignments":
		return cli.allAssignments(ctx)
	case "create-assignment":
		var na earn.NewAssignment
		fs.StringVar(&na.Title, "title", "", "Title.")
		fs.StringVar(&na.Description, "description", "", "Description.")
		fs.StringVar(&na.Type, "type", "", "Type, e.g. essay.")
		fs.StringVar(&na.Price, "price", "", "Price.")
		fs.StringVar(&na.Deadline, "deadline", "", "Deadline, YYYY-MM-DD.")
		file := fs.String("file", "", "Attachment path.")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return cli.createAssignment(ctx, na, *file)
	}
	return nil
}

func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) whoami(ctx context.Context) string {
	usr, ok := cli.sess.User(ctx)
	if !ok {
		return "not logged in"
	}
	return fmt.Sprintf("%s <%s> (%s)", usr.DisplayName(), usr.Email, usr.Role)
}

// expired runs the forced logout after a 401/403.
func (cli *commandLine) expired(ctx context.Context) {
	if _, err := cli.guard.ForceLogout(ctx, cli.sess); err != nil {
		fmt.Fprintf(cli.out, "could not clear credential: %v\n", err)
	}
}

// apiError turns a failed call into the message shown to the user.
func (cli *commandLine) apiError(ctx context.Context, err error, fallback string) error {
	if learnapi.IsSessionInvalid(err) {
		cli.expired(ctx)
		return errSessionExpired
	}
	if learnapi.KindOf(err) == 0 {
		return err
	}
	return errors.New(learnapi.UserMessage(err, fallback))
}

// show loads a listing and prints it as a table.
func show[T any](ctx context.Context, cli *commandLine, opts screen.Options[T], header string, row func(T) string) error {
	opts.OnSessionExpired = cli.expired
	snap, err := screen.New(opts).Load(ctx)
	if err != nil {
		return err
	}
	return printTable(cli, snap, header, row)
}

// change runs a mutation and prints its confirmation over the refetched listing.
func change[T any](ctx context.Context, cli *commandLine, opts screen.Options[T], action screen.Action, fallback, header string, row func(T) string) error {
	opts.OnSessionExpired = cli.expired
	snap, err := screen.New(opts).Mutate(ctx, action, fallback)
	if err != nil {
		return err
	}
	if snap.LoggedOut {
		return errSessionExpired
	}
	if snap.Notice == nil {
		// interrupted before the action finished
		return ctx.Err()
	}
	if snap.Notice.Error {
		return errors.New(snap.Notice.Text)
	}
	fmt.Fprintln(cli.out, snap.Notice.Text)
	return printTable(cli, snap, header, row)
}

func printTable[T any](cli *commandLine, snap screen.Snapshot[T], header string, row func(T) string) error {
	switch {
	case snap.LoggedOut:
		return errSessionExpired
	case snap.IsFailed():
		return errors.New(snap.Message)
	case snap.IsEmpty():
		fmt.Fprintln(cli.out, snap.Message)
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, header)
	for _, item := range snap.Items {
		fmt.Fprintln(w, row(item))
	}
	return w.Flush()
}

func openAttachment(path string) (*earn.Attachment, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening attachment")
	}
	name := path
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		name = path[i+1:]
	}
	return &earn.Attachment{Filename: name, Content: f}, f.Close, nil
}
