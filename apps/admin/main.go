package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/circulation"
	emailsvc "github.com/trezcool/maktaba/services/email"
	logsvc "github.com/trezcool/maktaba/services/logger"
	"github.com/trezcool/maktaba/storage/database"
	sqlxrepos "github.com/trezcool/maktaba/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = database.Ping(ctx, db)
	cancel()
	if err != nil {
		logger.Fatal("pinging database", err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, os.Stdout)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	// start CLI
	cli := commandLine{
		db:             db.DB,
		circulationSvc: circulation.NewService(sqlxrepos.NewCirculationRepository(db), conf),
		mailSvc:        mailSvc,
		in:             os.Stdin,
		out:            os.Stdout,
	}
	err = cli.run(os.Args)
	if err != nil && err != errHelp {
		logger.Error("command failed", err)
	}
	_ = db.Close()
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
