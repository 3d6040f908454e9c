package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	echoapi "github.com/ravi1475/School-ERPS-sub002/apps/api/echo"
	"github.com/ravi1475/School-ERPS-sub002/core"
	"github.com/ravi1475/School-ERPS-sub002/core/registration"
	emailsvc "github.com/ravi1475/School-ERPS-sub002/services/email"
	logsvc "github.com/ravi1475/School-ERPS-sub002/services/logger"
	"github.com/ravi1475/School-ERPS-sub002/services/studentapi"
	"github.com/ravi1475/School-ERPS-sub002/storage"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	ctx := context.Background()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	storeLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "STORE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	storeLogger.Enable(!conf.Debug)

	// set up storage
	repo, closeRepo, err := storage.OpenDraftStore(ctx, conf, true)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up draft store: %v", err), err)
	}
	defer func() {
		if err = closeRepo(); err != nil {
			storeLogger.Error("Failed to close", err)
		}
	}()

	blobs, err := storage.OpenBlobStore(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up blob store: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	submitter, err := studentapi.NewClient(conf.StudentAPI, blobs)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up student api client: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	registration.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger, conf)

	if unruled := registration.UnruledPaths(); len(unruled) > 0 {
		logger.Warn("Fields accepted without format check: " + strings.Join(unruled, ", "))
	}

	regSvc, err := registration.NewService(registration.ServiceDeps{
		Repo:       repo,
		Blobs:      blobs,
		Submitter:  submitter,
		MailSvc:    mailSvc,
		Logger:     logger,
		Metrics:    registration.NewMetrics(prometheus.DefaultRegisterer),
		Validate:   validate,
		Translator: translator,
		Conf:       conf,
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up registration service: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("draftStore").Set(conf.Registration.DraftStore)
	expvar.NewString("blobDriver").Set(blobs.Driver())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			RegistrationSvc: regSvc,
			Validate:        validate,
			Translator:      translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
