package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Informatica-uaint/HorariosLabInf/internal/access"
	"github.com/Informatica-uaint/HorariosLabInf/internal/config"
	"github.com/Informatica-uaint/HorariosLabInf/internal/db"
	"github.com/Informatica-uaint/HorariosLabInf/internal/db/memory"
	"github.com/Informatica-uaint/HorariosLabInf/internal/door"
	internalhttp "github.com/Informatica-uaint/HorariosLabInf/internal/http"
	"github.com/Informatica-uaint/HorariosLabInf/internal/jobs"
	"github.com/Informatica-uaint/HorariosLabInf/internal/metrics"
)

// store is the full persistence surface main wires together.
type store interface {
	access.Directory
	access.Ledger
	internalhttp.Store
}

func main() {
	cfg := config.Load()
	loc := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connection failed: %v", err)
		}
		defer pool.Close()
		pgStore := db.NewStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Fatalf("schema setup failed: %v", err)
		}
		st = pgStore
	} else {
		log.Printf("DATABASE_URL not set, using in-memory store")
		st = memory.NewStore()
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
	}

	validator := &access.Validator{
		Secret:           cfg.ReaderQRSecret,
		DefaultStationID: cfg.ReaderStationID,
		Window:           cfg.QRWindow,
	}
	engine := access.NewEngine(st, st, loc, nil)
	aggregator := access.NewAggregator(st)
	policy := access.Policy{Threshold: cfg.AssistantThreshold}
	gateway := door.NewGateway(door.Config{
		Host:       cfg.DoorHost,
		Port:       cfg.DoorPort,
		DeviceName: cfg.DoorDeviceName,
		APIKey:     cfg.DoorAPIKey,
		ButtonName: cfg.DoorButtonName,
		Timeout:    cfg.DoorTimeout,
	})
	orch := access.NewOrchestrator(validator, engine, aggregator, policy, gateway, loc, nil)

	m := metrics.New(prometheus.DefaultRegisterer)
	server := internalhttp.NewServer(cfg, orch, aggregator, policy, st, redisClient, m, loc, nil)

	jobs.StartDailyClose(ctx, jobs.DailyCloseConfig{
		Enabled:  cfg.DailyCloseEnabled,
		CloseAt:  cfg.DailyCloseAt,
		Location: loc,
	}, engine, st)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("acceso http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
