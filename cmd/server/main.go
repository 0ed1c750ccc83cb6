package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/example/carona/internal/config"
	"github.com/example/carona/internal/geocode"
	httpapi "github.com/example/carona/internal/http"
	"github.com/example/carona/internal/ingest"
	"github.com/example/carona/internal/logging"
	"github.com/example/carona/internal/matcher"
	"github.com/example/carona/internal/routing"
	"github.com/example/carona/internal/search"
	"github.com/example/carona/internal/storage"
	"github.com/example/carona/internal/trips"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel, "carona-api")

	if cfg.PGDSN != "" && cfg.RunMigrations {
		if err := runMigrations(cfg.PGDSN); err != nil {
			logger.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	var store storage.TripStore
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		store = ps
	} else {
		logger.Warn("PG_DSN not set, using in-memory store")
		store = storage.NewMemoryStore()
	}

	var geoCache geocode.Cache
	if cfg.RedisAddr != "" {
		geoCache = geocode.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.GeocodeCacheTTL)
	} else {
		geoCache = geocode.NewMemoryCache(cfg.GeocodeCacheTTL)
	}
	geocoder := geocode.NewClient(cfg.ORSBaseURL, cfg.ORSAPIKey, cfg.GeocodeTimeout, geoCache, logger)

	routeSvc := &routing.Service{
		OSRM:   routing.NewOSRMClient(cfg.OSRMBaseURL, cfg.RouteTimeout),
		Cache:  routing.NewCache(cfg.RouteCacheTTL),
		Logger: logger,
	}
	if cfg.ORSAPIKey != "" {
		routeSvc.ORS = routing.NewORSClient(cfg.ORSBaseURL, cfg.ORSAPIKey, cfg.RouteTimeout)
	}

	m := &matcher.Service{Store: store, Logger: logger}
	text := &search.TextMatcher{Store: store}

	tripSvc := &trips.Service{Store: store, Routes: routeSvc, Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		tripSvc.Events = kp
	}

	srv := httpapi.NewServer(cfg, logger, store, geocoder, routeSvc, m, text, tripSvc)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("carona api listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("carona api stopped")
}

func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_corridas.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}
