package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taxi-realtime/internal/realtime/group"
	"taxi-realtime/internal/shared/config"
	"taxi-realtime/internal/shared/db"
	"taxi-realtime/internal/shared/health"
	"taxi-realtime/internal/shared/jwt"
	"taxi-realtime/internal/shared/mq"
	"taxi-realtime/internal/shared/util"
	"taxi-realtime/internal/trip/api"
	"taxi-realtime/internal/trip/app"
	"taxi-realtime/internal/trip/domain"
	"taxi-realtime/internal/trip/repo"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	if env := os.Getenv("CONFIG_PATH"); env != "" && *configPath == "config.yaml" {
		*configPath = env
	}

	bootLog := util.New()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootLog.Fatal("Config", fmt.Errorf("failed to load configuration: %w", err))
	}

	log := util.NewWithLevel(cfg.Log.Level)
	log.OK("Config", fmt.Sprintf("configuration loaded [storage=%s, rabbitmq=%t]", cfg.Storage.Backend, cfg.RabbitMQ.Enabled))

	ctx := context.Background()

	monitor := health.NewMonitor("trip-service", 2*time.Second)

	var store domain.TripRepository
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := db.ConnectToDB(ctx, &cfg.Database)
		if err != nil {
			log.Fatal("Database", err)
		}
		defer pool.Close()

		pg := repo.NewPostgresStore(pool, cfg.Trips.ExclusiveDriverAssignment)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal("Database", fmt.Errorf("failed to prepare schema: %w", err))
		}
		store = pg
		monitor.AddCheck("database", health.Pinger(pool))
		log.OK("Database", "connected successfully")
	default:
		store = repo.NewMemoryStore(cfg.Trips.ExclusiveDriverAssignment)
		log.Info("Storage", "using in-memory trip store")
	}

	var publisher domain.Publisher
	if cfg.RabbitMQ.Enabled {
		conn, ch, err := mq.ConnectToRMQ(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal("RabbitMQ", err)
		}
		defer conn.Close()
		defer ch.Close()

		p := mq.NewPublisher(ch, cfg.RabbitMQ.Exchange)
		if err := p.DeclareExchange(); err != nil {
			log.Fatal("RabbitMQ", fmt.Errorf("failed to declare exchange: %w", err))
		}
		publisher = p
		monitor.AddCheck("rabbitmq", health.Connection(conn))
		log.OK("RabbitMQ", "trip events go to exchange "+cfg.RabbitMQ.Exchange)
	}

	verifier := jwt.NewVerifier(cfg.JWT.Secret, cfg.JWT.TTL)
	registry := group.NewRegistry()
	router := app.NewRouter(store, registry, publisher, log)
	gateway := api.NewGateway(router, registry, store, verifier, cfg.WebSocket, log)
	handler := api.NewHandler(store, log)

	monitor.AddGauge("sessions", gateway.Sessions).AddGauge("topics", registry.Topics)
	log.Info("Health", fmt.Sprintf("checks registered %v", monitor.Names()))

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: handler.RegisterRoutes(gateway, verifier, monitor),
	}

	go func() {
		log.Info("TripService", "listening on :"+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("TripService", fmt.Errorf("server failed: %w", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("TripService", "shutting down...")

	// hijacked websocket connections are not tracked by the http server
	gateway.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("TripService", fmt.Errorf("server shutdown failed: %w", err))
	}
	log.OK("TripService", "stopped gracefully")
}
