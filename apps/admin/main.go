package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ravi1475/School-ERPS-sub002/core"
	"github.com/ravi1475/School-ERPS-sub002/core/registration"
	emailsvc "github.com/ravi1475/School-ERPS-sub002/services/email"
	logsvc "github.com/ravi1475/School-ERPS-sub002/services/logger"
	"github.com/ravi1475/School-ERPS-sub002/services/studentapi"
	"github.com/ravi1475/School-ERPS-sub002/storage"
	"github.com/ravi1475/School-ERPS-sub002/storage/database"
)

func main() {
	conf := core.NewConfig()
	ctx := context.Background()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	var (
		regSvc     *registration.Service
		closeStore = func() error { return nil }
	)

	// start CLI
	cli := commandLine{
		conf: conf,
		out:  os.Stdout,
		openDB: func() (*sql.DB, error) {
			db, err := database.Open(conf)
			if err != nil {
				return nil, err
			}
			return db.DB, nil
		},
		regSvc: func() (*registration.Service, error) {
			if regSvc != nil {
				return regSvc, nil
			}
			svc, closeFn, err := newRegistrationService(ctx, conf, logger)
			if err != nil {
				return nil, fmt.Errorf("setting up registration service: %w", err)
			}
			regSvc, closeStore = svc, closeFn
			return regSvc, nil
		},
	}
	err := cli.run(os.Args)
	if cErr := closeStore(); cErr != nil {
		logger.Error(fmt.Sprintf("closing draft store: %v", cErr), cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		os.Exit(1)
	}
}

// newRegistrationService builds the service on the configured draft & blob stores.
// The database is left as is: createdb and migrate prepare it.
func newRegistrationService(ctx context.Context, conf *core.Config, logger core.Logger) (*registration.Service, func() error, error) {
	repo, closeStore, err := storage.OpenDraftStore(ctx, conf, false)
	if err != nil {
		return nil, nil, err
	}
	fail := func(err error) (*registration.Service, func() error, error) {
		_ = closeStore()
		return nil, nil, err
	}

	blobs, err := storage.OpenBlobStore(ctx, conf)
	if err != nil {
		return fail(err)
	}
	submitter, err := studentapi.NewClient(conf.StudentAPI, blobs)
	if err != nil {
		return fail(err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	registration.InitValidators(validate, translator)

	svc, err := registration.NewService(registration.ServiceDeps{
		Repo:       repo,
		Blobs:      blobs,
		Submitter:  submitter,
		MailSvc:    emailsvc.NewConsoleService(conf, logger),
		Logger:     logger,
		Metrics:    registration.NewMetrics(prometheus.NewRegistry()),
		Validate:   validate,
		Translator: translator,
		Conf:       conf,
	})
	if err != nil {
		return fail(err)
	}
	return svc, closeStore, nil
}
