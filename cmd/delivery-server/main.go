package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/nrednav/cuid2"
	"github.com/redis/go-redis/v9"

	"uk.co.dudmesh.tweetqueue/internal/boot"
	"uk.co.dudmesh.tweetqueue/internal/handlers"
	"uk.co.dudmesh.tweetqueue/internal/lock"
	"uk.co.dudmesh.tweetqueue/internal/scheduler"
	"uk.co.dudmesh.tweetqueue/internal/service/delivery"
	"uk.co.dudmesh.tweetqueue/internal/store"
	"uk.co.dudmesh.tweetqueue/pkg/oauth1"
	"uk.co.dudmesh.tweetqueue/pkg/platform"
)

type DeliveryService interface {
	handlers.DeliveryService
	scheduler.PassRunner
}

type config struct {
	boot.Config
	store           *store.Store
	client          *platform.Client
	redis           *redis.Client
	deliveryService DeliveryService
}

func (c *config) Close() {
	if c.redis != nil {
		c.redis.Close()
	}
	c.store.Close()
}

func newConfig(ctx context.Context, bootConfig *boot.Config) *config {
	if err := bootConfig.Validate(); err != nil {
		log.Fatalf("config: %+v", err)
	}

	db, err := store.Open(bootConfig.Database.Driver, bootConfig.Database.URL)
	if err != nil {
		log.Fatalf("opening store: %+v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrating store: %+v", err)
	}

	signer, err := oauth1.New(oauth1.Config{
		ConsumerKey:    bootConfig.Twitter.ConsumerKey,
		ConsumerSecret: bootConfig.Twitter.ConsumerSecret,
	})
	if err != nil {
		log.Fatalf("creating signer: %+v", err)
	}
	client := platform.New(signer,
		platform.WithBaseURL(bootConfig.Twitter.BaseURL),
		platform.WithTimeout(bootConfig.Twitter.Timeout),
	)

	c := &config{Config: *bootConfig, store: db, client: client}

	passLock := lock.NewNoop()
	if bootConfig.Redis.Addr != "" {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     bootConfig.Redis.Addr,
			Password: bootConfig.Redis.Password,
			DB:       bootConfig.Redis.DB,
		})
		if err := c.redis.Ping(ctx).Err(); err != nil {
			log.Fatalf("connecting to redis: %+v", err)
		}
		passLock = lock.NewRedis(c.redis, lock.DefaultKey, bootConfig.Redis.LockTTL)
	}

	c.deliveryService = delivery.New(db, client,
		delivery.WithPassLock(passLock),
		delivery.WithWorkers(bootConfig.Scheduler.Workers),
		delivery.WithClaimTTL(bootConfig.Scheduler.ClaimTTL),
	)
	return c
}

func main() {
	bootConfig, err := boot.Load()
	if err != nil {
		log.Fatalf("boot: %+v", err)
	}

	level, logFile, err := bootConfig.ConfigureLogging()
	if err != nil {
		log.Fatalf("logging: %+v", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := newConfig(ctx, bootConfig)
	defer config.Close()

	server := echo.New()
	server.Use(middleware.BodyLimit("1M"))
	server.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return cuid2.Generate()
		},
	}))
	server.Use(echoprometheus.NewMiddleware("tweetqueue"))
	server.Use(middleware.Recover())

	server.Logger.SetLevel(level)

	headers := []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization}
	server.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     strings.Split(config.Server.Origins, ","),
		AllowHeaders:     headers,
		AllowCredentials: true,
	}))

	server.GET("/healthz", handlers.Healthz(config.store))

	api := server.Group("/api", handlers.CallerIdentity(config.Server.JWTSecret))
	api.POST("/tweets/:id/post", handlers.PostNow(config.deliveryService))
	api.POST("/passes", handlers.RunPass(config.deliveryService))
	api.POST("/connection/test", handlers.TestConnection(config.client))

	var wg sync.WaitGroup
	if config.Scheduler.Interval > 0 {
		job := scheduler.NewJob(config.Scheduler.Interval, config.deliveryService, true)
		wg.Add(1)
		go func() {
			defer wg.Done()
			job.Run(ctx)
		}()
	}

	metrics := echo.New()
	metrics.HideBanner = true
	metrics.GET("/metrics", echoprometheus.NewHandler())
	go func() {
		if err := metrics.Start(":" + config.Server.MetricsPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	go func() {
		if err := server.Start(":" + config.Server.Port); err != nil && err != http.ErrServerClosed {
			server.Logger.Fatal("shutting down the server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		server.Logger.Error(err)
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		server.Logger.Error(err)
	}
	wg.Wait()
}
