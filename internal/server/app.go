// Package server wires the cloudra backend together: the database, object
// storage, services and the HTTP API, and runs it until a termination
// signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/cloudra/internal/dbx"
	"github.com/dmitrijs2005/cloudra/internal/logging"
	"github.com/dmitrijs2005/cloudra/internal/server/archive"
	"github.com/dmitrijs2005/cloudra/internal/server/config"
	"github.com/dmitrijs2005/cloudra/internal/server/httpapi"
	"github.com/dmitrijs2005/cloudra/internal/server/mail"
	"github.com/dmitrijs2005/cloudra/internal/server/metrics"
	"github.com/dmitrijs2005/cloudra/internal/server/repositories/memory"
	"github.com/dmitrijs2005/cloudra/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cloudra/internal/server/services"
	"github.com/dmitrijs2005/cloudra/internal/server/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const archiveFetchTimeout = 2 * time.Minute

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

// database opens the configured store. The returned *sql.DB is nil for the
// in-memory store.
func database(ctx context.Context, cfg *config.Config) (*sql.DB, dbx.TxRunner, repomanager.RepositoryManager, error) {
	if cfg.DatabaseDSN == config.MemoryDSN {
		store := memory.NewStore()
		return nil, store, memory.NewManager(store), nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("migrations error: %w", err)
	}
	return db, dbx.NewSQLTxRunner(db, nil), rm, nil
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, tx, rm, err := database(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.NewCollector()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	d := services.Deps{
		Tx:      tx,
		Repos:   rm,
		Objects: storage.NewS3Storage(cfg),
		Logger:  logger,
		Metrics: m,
	}
	archiver := archive.NewWriter(archive.NewHTTPFetcher(archiveFetchTimeout), logger.With("module", "archive"))

	svc := httpapi.Services{
		Users:   services.NewUserService(d, cfg, mail.NewLogMailer(logger)),
		Folders: services.NewFolderService(d),
		Files:   services.NewFileService(d, archiver),
		Share:   services.NewShareService(d, cfg),
	}

	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		server: httpapi.NewServer(cfg.EndpointAddrHTTP, logger, svc, m, reg),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close error", "error", err)
		}
	}
	app.logger.Info(ctx, "App stopped")
}
