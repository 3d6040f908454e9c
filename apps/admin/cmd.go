package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/term"

	"github.com/ravi1475/School-ERPS-sub002/core"
	"github.com/ravi1475/School-ERPS-sub002/core/registration"
	"github.com/ravi1475/School-ERPS-sub002/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword         // mockable
	createDBFunc     = database.CreateIfNotExist // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	out    io.Writer
	openDB func() (*sql.DB, error)
	// regSvc builds the registration service on first use, so migrate and createdb
	// never connect to the draft & blob stores.
	regSvc func() (*registration.Service, error)
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]          - run a goose command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  createdb [-admin USER]          - create the app user & database")
	_, _ = fmt.Fprintln(cli.out, "  purge -older-than DURATION      - delete drafts not updated for DURATION (e.g. 72h)")
	_, _ = fmt.Fprintln(cli.out, "  payload -id ID                  - print the payload a draft would be submitted with")
	_, _ = fmt.Fprintln(cli.out, "  diff -a ID -b ID                - diff the payloads of two drafts")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	createDBCmd := flag.NewFlagSet("createdb", flag.ContinueOnError)
	createDBAdmin := createDBCmd.String("admin", "", "The database admin user. The password will be prompted next.")

	purgeCmd := flag.NewFlagSet("purge", flag.ContinueOnError)
	purgeOlderThan := purgeCmd.Duration("older-than", 0, "Delete drafts not updated for this long.")

	payloadCmd := flag.NewFlagSet("payload", flag.ContinueOnError)
	payloadID := payloadCmd.String("id", "", "The draft ID.")

	diffCmd := flag.NewFlagSet("diff", flag.ContinueOnError)
	diffA := diffCmd.String("a", "", "The first draft ID.")
	diffB := diffCmd.String("b", "", "The second draft ID.")

	for _, fs := range []*flag.FlagSet{createDBCmd, purgeCmd, payloadCmd, diffCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "createdb":
		if err := createDBCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createDBAdmin != "" {
			_, _ = fmt.Fprint(cli.out, "Enter admin password:")
			pwd, err := readPasswordFunc(int(syscall.Stdin))
			_, _ = fmt.Fprintln(cli.out)
			if err != nil {
				return err
			}
			cli.conf.Database.AdminUser = *createDBAdmin
			cli.conf.Database.AdminPassword = string(pwd)
		}
		return createDBFunc(cli.conf)

	case "purge":
		if err := purgeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *purgeOlderThan <= 0 {
			purgeCmd.Usage()
			return errHelp
		}
		return cli.purge(ctx, *purgeOlderThan)

	case "payload":
		if err := payloadCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *payloadID == "" {
			payloadCmd.Usage()
			return errHelp
		}
		return cli.payload(ctx, *payloadID)

	case "diff":
		if err := diffCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *diffA == "" || *diffB == "" {
			diffCmd.Usage()
			return errHelp
		}
		return cli.diff(ctx, *diffA, *diffB)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) purge(ctx context.Context, olderThan time.Duration) error {
	svc, err := cli.regSvc()
	if err != nil {
		return err
	}
	n, err := svc.PurgeStale(ctx, olderThan)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d draft(s) purged\n", n)
	return nil
}

func (cli *commandLine) payload(ctx context.Context, id string) error {
	svc, err := cli.regSvc()
	if err != nil {
		return err
	}
	draft, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cli.out, svc.Payload(draft))
	return err
}

func (cli *commandLine) diff(ctx context.Context, idA, idB string) error {
	svc, err := cli.regSvc()
	if err != nil {
		return err
	}
	draftA, err := svc.Get(ctx, idA)
	if err != nil {
		return err
	}
	draftB, err := svc.Get(ctx, idB)
	if err != nil {
		return err
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        svc.Payload(draftA).Lines(),
		B:        svc.Payload(draftB).Lines(),
		FromFile: idA,
		ToFile:   idB,
		Context:  1,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cli.out, diff)
	return err
}
