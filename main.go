package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"     // swagger embed files
	ginSwagger "github.com/swaggo/gin-swagger" // gin-swagger middleware
	"go.uber.org/zap"

	"movieweb/api"
	"movieweb/config"
	"movieweb/db"
	"movieweb/metadata"
	"movieweb/utils"
)

const shutdownTimeout = 10 * time.Second

// @title           MovieWeb API
// @version         1.0.0

// @description     ## MovieWeb
// @description
// @description     A small web application for keeping lists of favorite movies per user.
// @description     Every page is also available as JSON: send `Accept: application/json`, or post a JSON body instead of a form.
// @description
// @description     **High-Level Overview:**
// @description     *   Create, rename and delete users.
// @description     *   Add movies to a user's list. Poster, actors and plot are looked up on OMDb by title.
// @description     *   Edit or remove movies; only the submitted fields change.
// @description     *   Browse every user's movies on `/movies`, paginated and filterable.
// @description
// @description     **Movie filter (`filter` parameter):**
// @description     A condition is `field operator value`, e.g. `year greaterthan 1990`. Conditions are joined by `and` / `or` and evaluated left to right.
// @description     Text operators (`equals`, `notequals`, `contains`, `startswith`, `endswith`) accept a `-insensitive` suffix.
// @description
// @description     **Examples:**
// @description     1.  `?filter=director contains Nolan`
// @description     2.  `?filter=year greaterthanorequals 2000 and rating greaterthan 8`
// @description     3.  `?filter=name startswith-insensitive the&filter=or&filter=year lessthan 1980`

// @license.name  MIT

// @host      localhost:5000
// @BasePath  /
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, log *zap.Logger) error {
	// --- Storage ---
	fetcher := metadata.FromConfig(cfg, log)
	store, err := db.New(cfg, fetcher, log)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close store", zap.Error(err))
		}
	}()

	flash, err := utils.NewFlashStore(cfg.SessionSecret)
	if err != nil {
		return err
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := setupRouter(store, cfg, flash, log)
	if err != nil {
		return err
	}

	// --- Start Server ---
	listenAddr := fmt.Sprintf("%s:%s", cfg.ListenAddress, cfg.ListenPort)
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("addr", listenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// setupRouter wires middleware, templates, application routes and the API docs.
func setupRouter(store db.DataManager, cfg *config.Config, flash *utils.FlashStore, log *zap.Logger) (*gin.Engine, error) {
	router := gin.New()
	router.Use(utils.ZapLogger(log))
	router.Use(utils.ZapRecovery(log))
	router.Use(flash.Middleware())

	tmpl, err := api.LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	api.RegisterRoutes(router, store, cfg)

	// --- Swagger Route ---
	// swagger.json is served from docs/; the UI lives under /swagger/.
	router.StaticFS("/docs", http.Dir("docs"))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.json")))

	return router, nil
}
