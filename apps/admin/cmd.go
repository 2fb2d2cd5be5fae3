package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/trezcool/shule/core/user"
	jobsvc "github.com/trezcool/shule/services/jobs"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sql.DB
	usrSvc    *user.Service
	ledgerSvc jobsvc.LedgerJobs
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run a migration command (up, down, status, version, redo, reset...)")
	_, _ = fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL [-role ROLE] - create a user; the password will be prompted")
	_, _ = fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset a user's password; the password will be prompted")
	_, _ = fmt.Fprintln(cli.out, "  reconcile - recompute every fee's status from its payments")
	_, _ = fmt.Fprintln(cli.out, "  reminders [-asof YYYY-MM-DD] - email guardians about overdue fees")
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRole := addUserCmd.String("role", user.RoleAdmin, "The user's role: ADMIN, ACCOUNTANT or TEACHER.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	remindersCmd := flag.NewFlagSet("reminders", flag.ContinueOnError)
	remindersAsOf := remindersCmd.String("asof", "", "Remind about fees due before this date (YYYY-MM-DD). Defaults to today.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, remindersCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserEmail, *addUserRole, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "reconcile":
		return cli.reconcile()

	case "reminders":
		if err := remindersCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		asOf := time.Now().UTC().Truncate(24 * time.Hour)
		if *remindersAsOf != "" {
			d, err := time.Parse("2006-01-02", *remindersAsOf)
			if err != nil {
				remindersCmd.Usage()
				return errHelp
			}
			asOf = d
		}
		return cli.sendReminders(asOf)

	default:
		cli.printUsage()
		return errHelp
	}
}
