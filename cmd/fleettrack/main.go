package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"fleettrack/config"
	"fleettrack/engine"
	"fleettrack/livestate"
	"fleettrack/messaging"
	"fleettrack/store"
	"fleettrack/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "fleettrack.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("fleettrack", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("fleettrack: database open (%s)", cfg.Database.Driver)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("fleettrack: redis not available (%v), running without cache", err)
	} else {
		log.Printf("fleettrack: redis connected (%s)", cfg.Redis.Address)
	}
	cancel()
	defer redisClient.Close()

	// Live truck positions
	liveState := livestate.NewManager(db, livestate.NewRedisStore(redisClient))
	if err := liveState.SyncFromSQL(); err != nil {
		log.Printf("fleettrack: redis sync from SQL: %v", err)
	}

	// Messaging client
	msgClient := messaging.NewClient(&cfg.Messaging)
	if err := msgClient.Connect(); err != nil {
		log.Printf("fleettrack: messaging connect failed (%v)", err)
	} else {
		log.Printf("fleettrack: messaging connected (%s)", cfg.Messaging.Backend)
	}
	defer msgClient.Close()

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		LiveState:  liveState,
		MsgClient:  msgClient,
	})
	eng.Start()
	defer eng.Stop()

	// Telemetry consumer (driver devices reporting over the broker)
	consumer := messaging.NewConsumer(msgClient, cfg.Messaging.TelemetryTopic, eng.Telemetry())
	if err := consumer.Start(); err != nil {
		log.Printf("fleettrack: telemetry subscribe failed: %v", err)
	} else {
		log.Printf("fleettrack: telemetry listening on %s", cfg.Messaging.TelemetryTopic)
	}

	// Outbox drainer (status events to downstream consumers)
	drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval)
	drainer.Start()
	defer drainer.Stop()

	// Web server
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: www.NewRouter(eng),
	}

	go func() {
		log.Printf("fleettrack: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("fleettrack: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("fleettrack: shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("fleettrack: stopped")
}
