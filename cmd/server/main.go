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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/auth"
	"github.com/iliyamo/tour-booking/internal/config"
	"github.com/iliyamo/tour-booking/internal/database"
	"github.com/iliyamo/tour-booking/internal/handler"
	"github.com/iliyamo/tour-booking/internal/logger"
	"github.com/iliyamo/tour-booking/internal/mailer"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/queue"
	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/router"
	"github.com/iliyamo/tour-booking/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	cols, store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	creds := auth.NewManager(auth.Options{
		Secret:        cfg.JWTSecret,
		TokenTTL:      cfg.JWTExpiresIn,
		BcryptCost:    cfg.BcryptCost,
		ResetTokenTTL: cfg.ResetTokenTTL,
	})

	deps := service.Deps{
		Collections: cols,
		Credentials: creds,
		Mailer:      mailer.NewSMTP(cfg.SMTP),
		Log:         log,
	}
	if cfg.RabbitURL != "" {
		deps.Events = queue.NewPublisher(cfg.RabbitURL)
		go queue.StartBookingConsumer(ctx, cfg.RabbitURL, log)
	} else {
		log.Info().Msg("RABBITMQ_URL not set; booking events disabled")
	}
	svc := service.New(deps)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable; rate limiting and response cache disabled")
	} else {
		defer func() { _ = rdb.Close() }()
	}
	cacheCfg := config.LoadCacheConfig()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg, "tours")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperror.Handler(cfg.IsProduction(), log)
	e.Use(
		echomw.Recover(),
		echomw.RequestID(),
		echomw.Secure(),
		middleware.RequestLogger(log),
		metrics.Middleware(),
		echomw.BodyLimit(cfg.BodyLimit),
	)

	router.Register(e, router.Deps{
		Auth:      handler.NewAuthHandler(svc.Accounts, cfg.ResetURLBase),
		Users:     handler.NewUserHandler(svc.Users, svc.Accounts),
		Tours:     handler.NewTourHandler(svc.Tours),
		Reviews:   handler.NewReviewHandler(svc.Reviews),
		Bookings:  handler.NewBookingHandler(svc.Bookings),
		Protect:   middleware.Protect(creds, svc.Accounts),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		Cache:     middleware.NewRedisCache(cacheCfg, rdb, log),
		Purge:     middleware.PurgeCache(cacheCfg, rdb, log),
		Health:    handler.Health(store),
		Metrics:   metrics.Handler(),
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("store", cfg.StoreDriver).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// openStore returns the collections of the configured driver, a pinger for
// the health check and a release function.
func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (repository.Collections, handler.Pinger, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn().Msg("using the in-memory store; data is lost on exit")
		return repository.NewMemoryCollections(), nil, func() {}, nil
	}
	client, db, err := database.Open(ctx, cfg.MongoURI, cfg.MongoDB, log)
	if err != nil {
		return repository.Collections{}, nil, nil, err
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}
	ping := handler.PingFunc(func(ctx context.Context) error { return client.Ping(ctx, nil) })
	return repository.NewMongoCollections(db), ping, release, nil
}
