// Package app initializes and runs the main application service.
// It configures logging, storage, sessions, and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/qrvault/internal/auth"
	"github.com/patric-chuzhbe/qrvault/internal/config"
	"github.com/patric-chuzhbe/qrvault/internal/db/jsondb"
	"github.com/patric-chuzhbe/qrvault/internal/db/memorystorage"
	"github.com/patric-chuzhbe/qrvault/internal/db/postgresdb"
	"github.com/patric-chuzhbe/qrvault/internal/db/storage"
	"github.com/patric-chuzhbe/qrvault/internal/imagesweeper"
	"github.com/patric-chuzhbe/qrvault/internal/ipchecker"
	"github.com/patric-chuzhbe/qrvault/internal/logger"
	"github.com/patric-chuzhbe/qrvault/internal/models"
	"github.com/patric-chuzhbe/qrvault/internal/router"
	"github.com/patric-chuzhbe/qrvault/internal/service"
)

// App encapsulates the configuration, HTTP handler, storage backend,
// and the background image sweeper needed to run the QR keeper service.
type App struct {
	cfg              *config.Config
	db               storage.Storage
	imageSweeper     *imagesweeper.ImageSweeper
	stopImageSweeper context.CancelFunc
	httpHandler      http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing the logger
// - selecting and setting up storage
// - setting up the background image sweeper
// - setting up the router and middleware
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	sessionSigningSecretKey, err := base64.URLEncoding.DecodeString(app.cfg.SessionSigningSecretKey)
	if err != nil {
		return nil, err
	}

	app.imageSweeper = imagesweeper.New(
		app.cfg.SweeperQueueCapacity,
		app.cfg.DelayBetweenSweeps,
	)
	imageSweeperRunCtx, stopImageSweeper := context.WithCancel(context.Background())
	app.stopImageSweeper = stopImageSweeper

	app.imageSweeper.Run(imageSweeperRunCtx)
	app.imageSweeper.ListenErrors(func(err error) {
		logger.Log.Debugln("Error passed from the `app.imageSweeper.ListenErrors()`:", zap.Error(err))
	})

	var cacher *jsondb.JSONDB
	if fileDB, ok := app.db.(*jsondb.JSONDB); ok {
		cacher = fileDB
	}

	theService := newService(app.db, cacher, app.imageSweeper)

	theIPChecker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	app.httpHandler, err = router.New(
		theService,
		auth.New(
			app.cfg.SessionCookieName,
			sessionSigningSecretKey,
			"/login",
		),
		theIPChecker,
	)
	if err != nil {
		return nil, err
	}

	return app, nil
}

// newService keeps the nil-cacher case an honest nil interface: a typed nil
// *jsondb.JSONDB inside the interface would pass the service's nil check.
func newService(
	db storage.Storage,
	cacher *jsondb.JSONDB,
	sweeper *imagesweeper.ImageSweeper,
) *service.Service {
	if cacher == nil {
		return service.New(db, nil, sweeper)
	}

	return service.New(db, cacher, sweeper)
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Saving database and exiting...")
		a.stopImageSweeper()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.db.Close()

	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.FileStoragePath != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.FileStoragePath)
	}

	return memorystorage.New()
}
