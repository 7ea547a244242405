package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jvstudio/salonbook/libs/config"
	"github.com/jvstudio/salonbook/libs/db"
	"github.com/jvstudio/salonbook/libs/httpx"
	"github.com/jvstudio/salonbook/libs/kafkax"
	otelx "github.com/jvstudio/salonbook/libs/otel"
	"github.com/jvstudio/salonbook/libs/runtime"
	"github.com/jvstudio/salonbook/services/booking-service/internal/availability"
	"github.com/jvstudio/salonbook/services/booking-service/internal/booking"
	"github.com/jvstudio/salonbook/services/booking-service/internal/giftcards"
	"github.com/jvstudio/salonbook/services/booking-service/internal/handlers"
	"github.com/jvstudio/salonbook/services/booking-service/internal/metrics"
	"github.com/jvstudio/salonbook/services/booking-service/internal/outbox"
	"github.com/jvstudio/salonbook/services/booking-service/internal/settings"
	"github.com/jvstudio/salonbook/services/booking-service/internal/storage"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	cfg, err := settings.Load(config.String("BOOKING_SETTINGS_PATH", ""))
	if err != nil {
		logger.Error("settings load failed", "err", err)
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := storage.New(pool)
	calculator := availability.NewCalculator(store, availability.Config{
		Location:   cfg.Location,
		OpenAt:     cfg.OpenAt,
		CloseAt:    cfg.CloseAt,
		Step:       cfg.SlotStep,
		MinLead:    cfg.MinLead,
		MaxAdvance: cfg.MaxAdvance,
	}, logger, m)
	committer := booking.NewCommitter(store, booking.Config{
		Location:   cfg.Location,
		OpenAt:     cfg.OpenAt,
		CloseAt:    cfg.CloseAt,
		Step:       cfg.SlotStep,
		MinLead:    cfg.MinLead,
		MaxAdvance: cfg.MaxAdvance,
	}, logger, m)
	clients := booking.NewClients(store, logger)

	var payments giftcards.CheckoutProvider
	if key := config.String("STRIPE_SECRET_KEY", ""); key != "" {
		payments = giftcards.NewStripeCheckout(giftcards.StripeConfig{
			SecretKey:  key,
			SuccessURL: config.String("STRIPE_SUCCESS_URL", "http://localhost:3000/gift-cards/success"),
			CancelURL:  config.String("STRIPE_CANCEL_URL", "http://localhost:3000/gift-cards"),
			Currency:   cfg.GiftCardCurrency,
		})
	} else {
		logger.Info("stripe not configured; gift cards are issued active")
	}
	giftCardService := giftcards.NewService(store.GiftCards(), payments, giftcards.Config{
		Prefix:   cfg.GiftCardPrefix,
		Currency: cfg.GiftCardCurrency,
		Validity: cfg.GiftCardValidity,
	}, logger, m)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	limiter, limiterCheck := newLimiter(logger)
	if limiterCheck != nil {
		checks = append(checks, *limiterCheck)
	}

	if brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", "")); len(brokers) > 0 {
		writer := kafkax.NewWriter(brokers)
		defer func() { _ = writer.Close() }()
		pollEvery, err := config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second)
		if err != nil {
			panic(err)
		}
		publisher := outbox.NewPublisher(pool, writer, logger, m, outbox.PublisherConfig{
			PollEvery: pollEvery,
			BatchSize: 50,
		})
		go publisher.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	} else {
		logger.Info("kafka not configured; outbox events stay unpublished")
	}

	failOpen, err := config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	if err != nil {
		panic(err)
	}
	public := []httpx.Middleware{
		httpx.WithCORS(httpx.PublicCORS(config.List("CORS_ALLOWED_ORIGINS"))),
		httpx.RateLimit(limiter, logger, failOpen),
	}

	api := handlers.New(calculator, committer, clients, store, giftCardService, handlers.Config{
		Settings:         cfg,
		AdminJWTSecret:   config.String("ADMIN_JWT_SECRET", ""),
		WebhookSecret:    config.String("STRIPE_WEBHOOK_SECRET", ""),
		WebhookTolerance: 5 * time.Minute,
		PublicMiddleware: public,
	}, logger)

	mux := http.NewServeMux()
	mux.Handle("/healthz", runtime.HealthHandler())
	mux.Handle("/readyz", runtime.ReadyHandler(checks...))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/", api.Routes())

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := runtime.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		logger.Error("http server error", "err", err)
	}
}

// newLimiter prefers a shared Redis window so limits hold across replicas and
// falls back to a per-process token bucket.
func newLimiter(logger *slog.Logger) (httpx.Limiter, *runtime.ReadyCheck) {
	perMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	if err != nil {
		panic(err)
	}
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		return httpx.NewMemoryLimiter(perMinute, perMinute/4+1), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
	})
	logger.Info("rate limiting via redis", "addr", addr, "per_minute", perMinute)
	return httpx.NewRedisLimiter(rdb, perMinute, time.Minute, "salonbook:rl:"), &runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)}
}
