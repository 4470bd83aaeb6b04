// main wires the stores, the expiry engine, the domain services, and the HTTP
// server, then runs the server and the background sweeper side by side.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	auctionhandler "bidhub/internal/auction/handler"
	auctionports "bidhub/internal/auction/ports"
	auctionservice "bidhub/internal/auction/service"
	bidstore "bidhub/internal/auction/store/bid"
	settlementstore "bidhub/internal/auction/store/settlement"
	banhandler "bidhub/internal/ban/handler"
	"bidhub/internal/ban/notifier"
	banservice "bidhub/internal/ban/service"
	"bidhub/internal/expiry/gate"
	expirymetrics "bidhub/internal/expiry/metrics"
	expiry "bidhub/internal/expiry/models"
	"bidhub/internal/expiry/ports"
	recordstore "bidhub/internal/expiry/store/record"
	"bidhub/internal/expiry/sweeper"
	jwttoken "bidhub/internal/jwt_token"
	"bidhub/internal/platform/config"
	"bidhub/internal/platform/httpserver"
	"bidhub/internal/platform/logger"
	"bidhub/internal/platform/postgres"
	platformredis "bidhub/internal/platform/redis"
	httptransport "bidhub/internal/transport/http"
	"bidhub/pkg/platform/audit"
	auditkafka "bidhub/pkg/platform/audit/kafka"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores. Empty connection settings select the in-memory fallbacks.
	var records ports.RecordStore
	var bids auctionports.BidStore
	var settlements auctionports.SettlementStore
	var health httptransport.HealthChecker

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	pool, err := postgres.OpenPool(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("postgres pool connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		defer pool.Close()
		records = recordstore.NewPostgres(db)
		bids = bidstore.NewPostgres(pool)
		settlements = settlementstore.NewPostgres(pool)
		health = func() error { return db.Ping() }
		log.Info("using postgres stores")
	} else {
		records = recordstore.New()
		bids = bidstore.New()
		settlements = settlementstore.New()
		log.Info("postgres not configured, using in-memory stores")
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	var banNotifier notifier.Notifier
	if redisClient != nil {
		defer redisClient.Close()
		banNotifier = notifier.NewRedis(redisClient.Client)
		dbHealth := health
		health = func() error {
			if dbHealth != nil {
				if err := dbHealth(); err != nil {
					return err
				}
			}
			return redisClient.Health(context.Background())
		}
		log.Info("using redis ban notifier")
	} else {
		banNotifier = notifier.NewMemory()
		log.Info("redis not configured, using in-memory ban notifier")
	}

	var auditPublisher audit.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := auditkafka.New(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer kafkaPublisher.Close()
		auditPublisher = kafkaPublisher
		log.Info("audit events publishing to kafka", "topic", cfg.AuditTopic)
	}

	// Expiry engine.
	engineMetrics := expirymetrics.New()
	finalizers := ports.NewFinalizerRegistry()

	statusGate, err := gate.New(records,
		gate.WithLogger(log),
		gate.WithMetrics(engineMetrics),
		gate.WithFinalizers(finalizers),
	)
	if err != nil {
		log.Error("gate init failed", "error", err)
		os.Exit(1)
	}

	// Domain services.
	banSvc, err := banservice.New(records, statusGate,
		banservice.WithLogger(log),
		banservice.WithNotifier(banNotifier),
		banservice.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		log.Error("ban service init failed", "error", err)
		os.Exit(1)
	}

	auctionSvc, err := auctionservice.New(records, statusGate, bids, settlements,
		auctionservice.WithLogger(log),
		auctionservice.WithPrivilegeChecker(banSvc),
		auctionservice.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		log.Error("auction service init failed", "error", err)
		os.Exit(1)
	}

	finalizers.Register(expiry.KindBan, banSvc.ExpiryFinalizer())
	finalizers.Register(expiry.KindAuction, auctionSvc.ExpiryFinalizer())

	// Sweeper.
	sw, err := sweeper.New(records,
		sweeper.WithLogger(log),
		sweeper.WithMetrics(engineMetrics),
		sweeper.WithFinalizers(finalizers),
	)
	if err != nil {
		log.Error("sweeper init failed", "error", err)
		os.Exit(1)
	}

	// HTTP.
	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "bidhub", "bidhub-api")
	router := httptransport.NewRouter(log, health,
		banhandler.New(banSvc, log, jwtService),
		auctionhandler.New(auctionSvc, log, jwtService),
	)
	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting bidhub", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return sw.Start(groupCtx, cfg.SweepInterval)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
