package main

import (
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/ledger"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database"
	gormrepos "github.com/trezcool/shule/storage/database/gorm"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	os.Exit(run(conf, logger))
}

func run(conf *core.Config, logger *logsvc.RollbarLogger) int {
	defer logger.Close()

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Error(fmt.Sprintf("creating database: %v", err), err)
		return 1
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Error(fmt.Sprintf("opening database: %v", err), err)
		return 1
	}
	defer func() { _ = db.Close() }()

	gdb, err := database.OpenGorm(db, conf)
	if err != nil {
		logger.Error(fmt.Sprintf("setting up gorm: %v", err), err)
		return 1
	}

	// set up services
	tmpls, err := core.NewEmailTemplates(conf)
	if err != nil {
		logger.Error(fmt.Sprintf("parsing email templates: %v", err), err)
		return 1
	}
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, tmpls, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, tmpls, logger)
	}
	defer mailSvc.Wait()
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	studentRepo := gormrepos.NewStudentRepository(gdb)

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: user.NewService(gormrepos.NewUserRepository(gdb), mailSvc, validate, translator, conf),
		ledgerSvc: ledger.NewService(ledger.Options{
			Repo:       gormrepos.NewLedgerRepository(gdb),
			Reports:    sqlxrepos.NewReportRepository(sqlx.NewDb(db, conf.Database.Engine)),
			Students:   studentRepo,
			MailSvc:    mailSvc,
			Validate:   validate,
			Translator: translator,
			Logger:     logger,
			Conf:       conf,
		}),
		out: os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		return 1
	}
	return 0
}
