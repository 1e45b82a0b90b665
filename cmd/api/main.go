package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aqmesh/station-api/internal/config"
	"github.com/aqmesh/station-api/internal/contentstore"
	"github.com/aqmesh/station-api/internal/handler"
	medrecordHandler "github.com/aqmesh/station-api/internal/handler/medrecord"
	reportHandler "github.com/aqmesh/station-api/internal/handler/report"
	reviewHandler "github.com/aqmesh/station-api/internal/handler/review"
	stationHandler "github.com/aqmesh/station-api/internal/handler/station"
	"github.com/aqmesh/station-api/internal/ledger"
	"github.com/aqmesh/station-api/internal/middleware"
	"github.com/aqmesh/station-api/internal/router"
	medrecordService "github.com/aqmesh/station-api/internal/service/medrecord"
	reportService "github.com/aqmesh/station-api/internal/service/report"
	reviewService "github.com/aqmesh/station-api/internal/service/review"
	"github.com/aqmesh/station-api/pkg/logger"
	"github.com/aqmesh/station-api/pkg/messaging"
	redisBroker "github.com/aqmesh/station-api/pkg/messaging/redis"
	"github.com/aqmesh/station-api/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.New("station_api")

	// Ledger client and typed gateway
	client := ledger.NewHTTPClient(cfg.Ledger.RPCURL, cfg.Ledger.ContractAddress)
	defer client.Close()
	gateway := ledger.NewGateway(client, cfg.Ledger.ContractAddress, appMetrics)

	// Content store
	store := contentstore.NewIPFSStore(cfg.IPFS.APIURL)

	// Event broker is optional; workflows degrade to log-only
	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		zl := log.Logger
		broker, err = redisBroker.NewRedisBroker(redisBroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			PoolSize:     10,
			MinIdleConns: 2,
		}, &zl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer broker.Close()
	}

	// Initialize services
	reportSvc := reportService.NewService(gateway, store, broker, appLogger, appMetrics, reportService.Config{
		FetchConcurrency: cfg.Fetch.Concurrency,
		ProfileTTL:       time.Duration(cfg.Fetch.ProfileTTLSeconds) * time.Second,
	})
	reviewSvc := reviewService.NewService(gateway, broker, appLogger, appMetrics)
	medrecordSvc := medrecordService.NewService(gateway, store, broker, appLogger)

	// Initialize handlers
	h := handler.NewHandler(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := gateway.ContractBalance(ctx)
		return err
	})

	r := router.NewRouter(h, router.Config{
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		Timeout:        time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		CORSConfig:     middleware.DefaultCORSConfig(),
		MetricsPrefix:  "station_api",
	},
		reportHandler.NewHandler(reportSvc, cfg.Ledger.DefaultSigner),
		stationHandler.NewHandler(reportSvc),
		reviewHandler.NewHandler(reviewSvc, cfg.Ledger.DefaultSigner),
		medrecordHandler.NewHandler(medrecordSvc, cfg.Ledger.DefaultSigner),
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
