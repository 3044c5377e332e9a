package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	echoapi "github.com/trezcool/maktaba/apps/api/echo"
	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/book"
	"github.com/trezcool/maktaba/core/circulation"
	"github.com/trezcool/maktaba/core/member"
	logsvc "github.com/trezcool/maktaba/services/logger"
	"github.com/trezcool/maktaba/services/ratelimit"
	"github.com/trezcool/maktaba/storage/database"
	inmemdb "github.com/trezcool/maktaba/storage/database/inmem"
	sqlxrepos "github.com/trezcool/maktaba/storage/database/sqlx"
)

type repositories struct {
	books       book.Repository
	members     member.Repository
	circulation circulation.Repository
}

func main() {
	inmem := flag.Bool("inmem", false, "use the in-memory store instead of Postgres (data is lost on exit)")
	flag.Parse()

	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB & repos
	var repos repositories
	if *inmem {
		db := inmemdb.Open()
		repos = repositories{
			books:       inmemdb.NewBookRepository(db),
			members:     inmemdb.NewMemberRepository(db),
			circulation: inmemdb.NewCirculationRepository(db),
		}
	} else {
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
		repos = repositories{
			books:       sqlxrepos.NewBookRepository(db),
			members:     sqlxrepos.NewMemberRepository(db),
			circulation: sqlxrepos.NewCirculationRepository(db),
		}
	}

	// set up services
	bookSvc := book.NewService(repos.books, conf)
	memberSvc := member.NewService(repos.members, conf)
	circulationSvc := circulation.NewService(repos.circulation, conf)

	deps := echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		BookSvc:        bookSvc,
		MemberSvc:      memberSvc,
		CirculationSvc: circulationSvc,
		Validate:       validator.New(),
		Translator:     core.NewTranslator(),
	}
	core.InitValidators(deps.Validate, deps.Translator)

	if conf.RateLimit.Enabled(conf.Redis) {
		store, err := ratelimit.NewRedisStore(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up rate limiter: %v", err), err)
		}
		defer func() { _ = store.Close() }()
		if err = store.Ping(context.Background()); err != nil {
			logger.Warn(fmt.Sprintf("rate limiter redis unreachable: %v", err), err)
		}
		deps.RateLimitStore = store
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : %s", conf))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewInt("finePerDay").Set(circulationSvc.FinePolicy().PerDay)

	debugServer := &http.Server{Addr: conf.Server.DebugHost, Handler: http.DefaultServeMux}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(deps)

	var g errgroup.Group
	g.Go(func() error {
		if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
		return nil
	})
	g.Go(func() error {
		server.Start()
		return nil
	})

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
	}

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	// asking listener to shutdown and shed load
	if err := server.Shutdown(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

		if err = server.Close(); err != nil {
			logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
		}
	}
	if err := debugServer.Shutdown(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop debug server: %v", err), err)
	}
	_ = g.Wait()
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
