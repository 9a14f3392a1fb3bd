package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"fleetWs/internal/config"
	eventhandler "fleetWs/internal/modules/events/application/handler"
	eventport "fleetWs/internal/modules/events/application/port"
	events "fleetWs/internal/modules/events/infrastructure"
	eventtransport "fleetWs/internal/modules/events/interface"
	rthandler "fleetWs/internal/modules/realtime/application/handler"
	rtusecase "fleetWs/internal/modules/realtime/application/usecase"
	rtdomain "fleetWs/internal/modules/realtime/domain"
	realtime "fleetWs/internal/modules/realtime/infrastructure"
	rttransport "fleetWs/internal/modules/realtime/interface"
	refreshport "fleetWs/internal/modules/refresh/application/port"
	refreshusecase "fleetWs/internal/modules/refresh/application/usecase"
	refresh "fleetWs/internal/modules/refresh/infrastructure"
	refreshtransport "fleetWs/internal/modules/refresh/interface"
	"fleetWs/internal/platform/broker"
	"fleetWs/internal/platform/metrics"
	"fleetWs/internal/shared/auth"
	"fleetWs/internal/shared/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Attempt to load variables from .env so local runs honour configuration tweaks.
	if err := godotenv.Overload(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, ".env load warning: %v\n", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logFile, logger, err := logging.Setup(cfg.Logging.Directory, logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	slog.SetDefault(logger)
	slog.Info("logging initialized", slog.String("directory", cfg.Logging.Directory), slog.String("level", cfg.Logging.Level), slog.String("format", cfg.Logging.Format))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		logFile.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	manager, err := broker.Connect(ctx, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("broker connect: %w", err)
	}
	defer manager.Close()

	validator, err := auth.NewJWTValidatorWithPublicKey(cfg.Security.JWTSecret, cfg.Security.JWTPublicKey)
	if err != nil {
		return err
	}
	if cfg.Websocket.StrictAuth {
		slog.Info("strict websocket auth enabled: every gateway verifies bearer tokens")
	} else {
		slog.Warn("notifications, trips and users gateways trust the userId query parameter without verification; set WS_STRICT_AUTH=true to require tokens")
	}

	// Domain event router
	router := events.NewRouter(manager,
		func(name string) eventport.Listener { return manager.NewSubscriber(name) },
		logger,
		events.WithDefaultSource(cfg.Events.Source),
	)
	emitter := refreshusecase.NewEmitter(manager, logger)
	if err := eventhandler.NewRefreshBridge(emitter, logger).Register(router); err != nil {
		return err
	}
	if err := router.Start(ctx); err != nil {
		return err
	}

	// Gateways, each fed by its own refresh listener
	connectUC := rtusecase.NewConnectUseCase(validator, cfg.Websocket.StrictAuth, logger)
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetOutput(log.Writer())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())

	var (
		hubs      []*realtime.Hub
		listeners []*refresh.SignalListener
	)
	newListener := func(name string) refreshport.Listener { return manager.NewSubscriber(name) }
	for _, ns := range rtdomain.Namespaces() {
		hub := realtime.NewHub(ns, logger)
		signals := &rthandler.RefreshSignalHandler{UseCase: rtusecase.NewFanoutUseCase(ns, hub, logger)}
		listener := refresh.NewSignalListener(signals.Channel(), newListener, signals.Handle, logger)
		if err := listener.Start(ctx); err != nil {
			return err
		}
		hubs = append(hubs, hub)
		listeners = append(listeners, listener)
		e.GET("/ws/"+ns.String(), rttransport.NewWebsocketHandler(hub, connectUC, cfg.Websocket.SendBuffer, logger))
	}

	if cfg.KafkaEnabled() {
		sink := func(ctx context.Context, rec broker.Record) error {
			return router.Publish(ctx, rec.Domain, rec.Action, rec.Data,
				events.WithSource(rec.Source),
				events.WithCorrelationID(rec.CorrelationID),
			)
		}
		broker.StartKafkaBridge(ctx, sink, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topics, logger)
		slog.Info("kafka bridge started", slog.Any("brokers", cfg.Kafka.Brokers), slog.Any("topics", cfg.Kafka.Topics), slog.String("group", cfg.Kafka.GroupID))
	}

	e.GET("/health", func(c echo.Context) error {
		pingCtx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := manager.Ping(pingCtx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "broker": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.POST("/api/events", eventtransport.NewPublishHTTPHandler(router))
	e.GET("/api/events/stats", eventtransport.NewStatsHTTPHandler(router))
	e.POST("/api/refresh/:channel", refreshtransport.NewRefreshHTTPHandler(emitter))

	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serverErr:
		if err != nil {
			slog.Error("http server stopped", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", slog.Any("error", err))
	}
	for _, hub := range hubs {
		hub.Close()
	}
	for _, listener := range listeners {
		if err := listener.Stop(shutdownCtx); err != nil {
			slog.Warn("refresh listener stop", slog.String("channel", listener.Channel().String()), slog.Any("error", err))
		}
	}
	if err := router.Stop(shutdownCtx); err != nil {
		slog.Warn("router stop", slog.Any("error", err))
	}
	return nil
}
