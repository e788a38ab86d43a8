package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-storefront/internal/api"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/example/ec-storefront/internal/domain/guest"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/user"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/infrastructure/redisstore"
	"github.com/example/ec-storefront/internal/infrastructure/repository"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/logger"
	"github.com/example/ec-storefront/internal/payment"
	"github.com/example/ec-storefront/internal/query"
	"github.com/example/ec-storefront/internal/webhook"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting storefront api",
		zap.String("env", cfg.Environment),
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
		zap.String("kafka_topic", cfg.Kafka.Topic),
		zap.Bool("webhook_dedupe", cfg.Webhook.Deduplicate),
	)

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err := store.RunMigrations(sqlDB); err != nil {
		return err
	}
	log.Info("connected to postgres, migrations applied")

	rdb, err := redisstore.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	defer producer.Close()
	eventStore := store.NewEventStore(db, log)
	relay := store.NewOutboxRelay(db, producer, cfg.Outbox.Interval, cfg.Outbox.BatchSize, log)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Run(ctx)
	}()
	// Stop the relay before the producer closes.
	defer func() {
		stop()
		<-relayDone
	}()

	// Domain services
	catalogSvc := catalog.NewService(repository.NewVariantRepository(db), log)
	cartSvc := cart.NewService(
		repository.NewCartRepository(db),
		redisstore.NewGuestCartStore(rdb, cfg.Guest.SessionTTL),
		catalogSvc,
		log,
	)
	orderSvc := order.NewService(repository.NewOrderRepository(db), eventStore, log)
	guestSvc := guest.NewService(redisstore.NewGuestSessionStore(rdb), cfg.Guest.SessionTTL, log)
	userSvc := user.NewService(repository.NewUserRepository(db), log)
	tokens := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	// Payments
	gateway := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:  cfg.Stripe.SecretKey,
		Currency:   cfg.Stripe.Currency,
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
	}, log)
	if cfg.TestSignatureAllowed() {
		log.Warn("webhook test signature accepted; never enable outside local development")
	}
	var ledger webhook.Ledger
	if cfg.Webhook.Deduplicate {
		ledger = repository.NewWebhookEventRepository(db)
	}
	webhooks := webhook.NewHandler(
		payment.NewStripeVerifier(cfg.Stripe.WebhookSecret, cfg.TestSignatureAllowed()),
		orderSvc,
		ledger,
		log,
	)

	// Handlers
	cmdHandler := command.NewHandler(cartSvc, orderSvc, catalogSvc, guestSvc, gateway, log)
	queryHandler := query.NewHandler(cartSvc, orderSvc, eventStore, log)

	router := api.NewRouter(api.RouterConfig{
		Handlers: api.NewHandlers(cmdHandler, queryHandler, guestSvc, webhooks, log),
		Auth:     api.NewAuthHandlers(userSvc, tokens, redisstore.NewAuthSessionStore(rdb), cmdHandler, log),
		Tokens:   tokens,
		Guests:   guestSvc,
		Health: map[string]api.HealthCheck{
			"postgres": sqlDB.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Logger:         log,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           otelhttp.NewHandler(router, "storefront-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
