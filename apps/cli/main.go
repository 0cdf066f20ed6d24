package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/guard"
	"github.com/learnearn/hub/core/handoff"
	"github.com/learnearn/hub/core/session"
	"github.com/learnearn/hub/services/learnapi"
	logsvc "github.com/learnearn/hub/services/logger"
	"github.com/learnearn/hub/services/stkpush"
	"github.com/learnearn/hub/storage/credstore"
)

// cliScope is the credential scope shared by every invocation of the CLI.
const cliScope = "cli"

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "LEARNEARN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args)
	stop()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	conf, err := core.NewConfig()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug && conf.RollbarToken != "")

	path, err := credentialsPath()
	if err != nil {
		return err
	}
	creds, err := credstore.Open(path, appLogger)
	if err != nil {
		return errors.Wrap(err, "opening credential store")
	}
	defer creds.Close()

	routeGuard, err := guard.New(guard.DefaultTable(), guard.Policy{
		Login:     conf.Redirect.Login,
		UserHome:  conf.Redirect.UserHome,
		AdminHome: conf.Redirect.AdminHome,
	})
	if err != nil {
		return err
	}

	api, err := learnapi.New(learnapi.Options{
		BaseURL:   conf.API.BaseURL,
		Timeout:   conf.API.Timeout,
		UserAgent: conf.AppName + " CLI/" + conf.Build,
	})
	if err != nil {
		return err
	}
	signer, err := handoff.NewSigner(conf.AppName, conf.SecretKey, conf.Submission.FormURL, conf.Submission.HandoffTTL)
	if err != nil {
		return err
	}

	sess := session.New(creds.Scope(cliScope), appLogger)
	cli := commandLine{
		out:       os.Stdout,
		sess:      sess,
		api:       api.WithTokens(sess),
		guard:     routeGuard,
		validator: core.NewValidator(),
		handoff:   signer,
		donations: stkpush.New(conf.Donate.Endpoint, conf.API.Timeout),
	}
	return cli.run(ctx, args)
}

// credentialsPath keeps the CLI's store apart from the web server's, which holds a lock on its own file.
func credentialsPath() (string, error) {
	if p := os.Getenv("LEARNEARN_CLI_CREDENTIALS"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "locating config dir")
	}
	dir = filepath.Join(dir, "learnearn")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrap(err, "creating config dir")
	}
	return filepath.Join(dir, "credentials.db"), nil
}
