package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	echoweb "github.com/learnearn/hub/apps/web/echo"
	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/guard"
	"github.com/learnearn/hub/core/handoff"
	"github.com/learnearn/hub/services/learnapi"
	logsvc "github.com/learnearn/hub/services/logger"
	"github.com/learnearn/hub/services/stkpush"
	"github.com/learnearn/hub/storage/credstore"
)

func main() {
	std := log.New(os.Stdout, "WEB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	if err := run(std); err != nil {
		std.Printf("error: %+v", err)
		os.Exit(1)
	}
}

func run(std *log.Logger) error {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "CREDENTIALS : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	creds, err := credstore.Open(conf.Credentials.Path, dbLogger)
	if err != nil {
		return errors.Wrap(err, "opening credential store")
	}
	defer func() {
		if err := creds.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	table := guard.DefaultTable()
	if conf.Guard.TablePath != "" {
		if table, err = guard.LoadTableFile(conf.Guard.TablePath); err != nil {
			return errors.Wrap(err, "loading route table")
		}
	}
	routeGuard, err := guard.New(table, guard.Policy{
		Login:     conf.Redirect.Login,
		UserHome:  conf.Redirect.UserHome,
		AdminHome: conf.Redirect.AdminHome,
	})
	if err != nil {
		return errors.Wrap(err, "setting up route guard")
	}

	api, err := learnapi.New(learnapi.Options{
		BaseURL:   conf.API.BaseURL,
		Timeout:   conf.API.Timeout,
		UserAgent: conf.AppName + "/" + conf.Build,
	})
	if err != nil {
		return errors.Wrap(err, "setting up API client")
	}

	signer, err := handoff.NewSigner(conf.AppName, conf.SecretKey, conf.Submission.FormURL, conf.Submission.HandoffTTL)
	if err != nil {
		return errors.Wrap(err, "setting up submission handoff")
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	debugSrv := &http.Server{Addr: conf.Server.DebugHost, Handler: http.DefaultServeMux}

	// =========================================================================
	// Start Web Service

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := echoweb.NewServer(conf.Server.Address, stop, &echoweb.Deps{
		Conf:        conf,
		Logger:      logger,
		Credentials: creds,
		API:         api,
		Guard:       routeGuard,
		Validator:   core.NewValidator(),
		Handoff:     signer,
		Donations:   stkpush.New(conf.Donate.Endpoint, conf.API.Timeout),
	})
	if err != nil {
		return errors.Wrap(err, "setting up server")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return errors.Wrap(server.Start(), "web server")
	})
	g.Go(func() error {
		if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// the debug server is optional
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
		return nil
	})

	// =========================================================================
	// Shutdown

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Start shutdown...")

		// give outstanding requests a deadline for completion
		sctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		_ = debugSrv.Shutdown(sctx)
		if err := server.Stop(sctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
		return nil
	})

	return g.Wait()
}
