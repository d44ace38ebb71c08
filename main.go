// main.go
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"ride-booking/cmd"
	"ride-booking/internal/data/repository"
	"ride-booking/internal/gateway"
	"ride-booking/internal/tripclient"
	"ride-booking/internal/usecase"
	"ride-booking/internal/wire"
	"ride-booking/pkg/cache"
	"ride-booking/pkg/database"
	"ride-booking/pkg/mq"
	"ride-booking/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("service", config.App.Service),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if config.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	logger.Info("Database connected successfully")

	repos := repository.NewRepository(db, logger)

	// Message broker
	broker, err := mq.New(ctx, mq.Config{
		Driver:         config.Broker.Driver,
		URL:            config.Broker.URL,
		KafkaBrokers:   config.Broker.KafkaBrokers,
		KafkaGroupID:   config.Broker.KafkaGroupID,
		PublishTimeout: config.Broker.PublishTimeout,
		Prefetch:       config.Broker.Prefetch,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message broker", zap.Error(err))
	}
	defer broker.Close()

	relay := usecase.NewOutboxRelay(repos.Outbox, broker, config.Outbox.Interval, config.Outbox.BatchSize, config.Broker.PublishTimeout, logger)

	probes := []wire.Probe{
		{Name: "postgres", Check: db.Ping},
		{Name: "broker", Check: func(context.Context) error {
			if !broker.Ready() {
				return errBrokerNotReady
			}
			return nil
		}},
	}

	// Webhook dedup guard
	guard := cache.NoopEventGuard()
	if config.Redis.Enabled {
		rdb, err := cache.ConnectRedis(ctx, cache.RedisConfig{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		guard = cache.NewRedisEventGuard(rdb, config.Redis.EventTTL)
		probes = append(probes, wire.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	gw, err := gateway.New(gateway.Config{
		Driver:        config.Gateway.Driver,
		SecretKey:     config.Gateway.SecretKey,
		WebhookSecret: config.Gateway.WebhookSecret,
		Timeout:       config.Gateway.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to build payment gateway", zap.Error(err))
	}

	var lookup usecase.TripLookup = tripclient.NewHTTPLookup(config.Services.TripURL, config.Services.TripLookupTimeout, logger)
	if config.App.Runs(utils.ServiceTrip) {
		lookup = tripclient.NewLocalLookup(repos.Trip)
	}

	// Wire all dependencies
	app := wire.Wiring(repos, usecase.Deps{
		Publisher:  relay,
		TripLookup: lookup,
		Gateway:    gw,
		EventGuard: guard,
	}, probes, config, logger)

	var wg sync.WaitGroup
	run := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			logger.Info("Background worker stopped", zap.String("worker", name))
		}()
	}

	run("outbox_relay", func() { relay.Run(ctx) })
	if app.Service.Payment != nil {
		run("earning_sweep", func() {
			usecase.RunEarningSweep(ctx, app.Service.Payment, config.Outbox.SweepInterval, config.Outbox.BatchSize, logger)
		})
	}
	for queue, handler := range app.Consumer.Subscriptions() {
		run("consumer:"+queue, func() {
			if err := broker.Consume(ctx, queue, handler); err != nil && ctx.Err() == nil {
				logger.Error("Consumer stopped", zap.String("queue", queue), zap.Error(err))
			}
		})
	}

	// Start server
	if err := cmd.APIServer(ctx, app.Router, config.App.Port, config.App.ShutdownTimeout, logger); err != nil {
		logger.Error("HTTP server stopped", zap.Error(err))
	}

	stop()
	wg.Wait()
	logger.Info("Shutdown complete")
}

var errBrokerNotReady = errors.New("broker not connected")
