package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ledgerline.com/xerobi/auth"
	"ledgerline.com/xerobi/config"
	"ledgerline.com/xerobi/connections"
	"ledgerline.com/xerobi/dashboards"
	"ledgerline.com/xerobi/etl"
	"ledgerline.com/xerobi/pg/repo"
	"ledgerline.com/xerobi/xero"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	manager, err := config.NewManager(logger)
	if err != nil {
		return err
	}
	settings, err := config.Load(manager)
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", zap.String("source", string(manager.Source())))

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, settings.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	store := repo.NewPostgresStore(pool)

	sessions, err := auth.NewSessionVerifier(settings.SessionJWTSecret)
	if err != nil {
		return err
	}
	serviceGuard := auth.RequireServiceRole(settings.ServiceRoleKey)

	xeroClient := xero.NewClient(xero.Config{
		ClientID:     settings.XeroClientID,
		ClientSecret: settings.XeroClientSecret,
		RedirectURI:  settings.XeroRedirectURI,
		Timeout:      settings.XeroTimeout,
	})

	connSvc := connections.NewService(store, xeroClient, settings.EncryptionKey, logger)
	connHandlers := connections.NewHandlers(connSvc, store, sessions, settings.FrontendURL, logger)

	extractor := etl.NewExtractor(store, connSvc, xeroClient, logger)
	etlHandlers := etl.NewHandlers(extractor, logger)

	dashHandlers := dashboards.NewHandlers(store, logger)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	connections.SetupRoutes(app, connHandlers, sessions, serviceGuard)
	etl.SetupRoutes(app, etlHandlers, serviceGuard)
	dashboards.SetupRoutes(app, dashHandlers, sessions)

	errs := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", settings.ListenAddr))
		errs <- app.Listen(settings.ListenAddr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		return app.Shutdown()
	}
}
