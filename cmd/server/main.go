package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/revue-tickets/internal/clock"
	"github.com/iliyamo/revue-tickets/internal/config"
	"github.com/iliyamo/revue-tickets/internal/database"
	"github.com/iliyamo/revue-tickets/internal/handler"
	"github.com/iliyamo/revue-tickets/internal/logger"
	"github.com/iliyamo/revue-tickets/internal/middleware"
	"github.com/iliyamo/revue-tickets/internal/payment"
	"github.com/iliyamo/revue-tickets/internal/queue"
	"github.com/iliyamo/revue-tickets/internal/repository"
	"github.com/iliyamo/revue-tickets/internal/reservation"
	"github.com/iliyamo/revue-tickets/internal/router"
	"github.com/iliyamo/revue-tickets/internal/service"
	"github.com/iliyamo/revue-tickets/internal/utils"
)

func main() {
	cfg := config.Load() // Load environment config

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Durable stores
	db, err := database.Open(ctx, cfg)
	if err != nil {
		zl.Fatal("mysql connect failed", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		zl.Fatal("mysql migrate failed", zap.Error(err))
	}

	// Holds and seat views live in Redis; without it no seat can be held.
	rdb, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		zl.Fatal("redis connect failed", zap.Error(err))
	}
	defer rdb.Close()

	seatRepo := repository.NewSeatRepo(db)
	orderRepo := repository.NewOrderRepo(db, seatRepo)
	reconciler := reservation.NewReconciler(
		seatRepo,
		orderRepo,
		reservation.NewHoldRegistry(rdb),
		reservation.NewViewCache(rdb),
		reservation.Options{HoldTTL: cfg.Reservation.HoldTTL, ViewTTL: cfg.Reservation.ViewTTL},
		zl.Named("reconciler"),
	)

	authority, webhooks := newAuthority(cfg, zl)

	var events service.EventPublisher
	if cfg.Queue.Enabled {
		events = queue.NewPublisher(cfg.Queue.URL, zl.Named("publisher"))
		if cfg.Queue.ConsumerEnabled {
			consumer := queue.NewConsumer(cfg.Queue.URL, cfg.Queue.ConfirmationLog, zl.Named("consumer"))
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					zl.Error("confirmation consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	scheduler := service.NewStatusScheduler(cfg.Reservation.StatusChecks, 30*time.Second, zl.Named("status"))
	defer scheduler.Stop()

	orders := service.NewOrderService(orderRepo, reconciler, authority, events, scheduler,
		service.OrderConfig{CheckoutHoldTTL: cfg.Reservation.CheckoutHoldTTL, CheckoutExpiry: cfg.Payment.CheckoutExpiry},
		clock.NewSystem(), zl.Named("orders"))

	secretHash := cfg.InternalSecretHash
	if secretHash == "" && cfg.InternalSecret != "" {
		if secretHash, err = utils.HashSecret(cfg.InternalSecret, cfg.BcryptCost); err != nil {
			zl.Fatal("hash internal secret", zap.Error(err))
		}
	}
	if secretHash == "" {
		zl.Warn("no internal secret configured; /internal routes are disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(zl.Named("http")))

	sessions := router.SessionOptions{Secret: cfg.SessionSecret, TTL: cfg.SessionTTL, Secure: cfg.Env == "prod"}
	limit := middleware.NewTokenBucket(cfg.RateLimit, rdb, zl.Named("ratelimit"))
	seatHandler := handler.NewSeatHandler(reconciler, zl.Named("seats"))
	orderHandler := handler.NewOrderHandler(orders, webhooks, zl.Named("orders"))

	router.RegisterRoutes(e, handler.NewHealthHandler(db, rdb))
	router.RegisterSeats(e, seatHandler, sessions, limit)
	router.RegisterOrders(e, orderHandler, sessions, limit)
	router.RegisterInternal(e, seatHandler, orderHandler, secretHash)

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("payment", cfg.Payment.Provider))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
}

// newAuthority picks the payment provider.  The mock provider also
// verifies webhooks so local runs exercise the same path.
func newAuthority(cfg config.Config, zl *zap.Logger) (payment.Authority, handler.WebhookVerifier) {
	switch cfg.Payment.Provider {
	case "mock":
		zl.Warn("using mock payment provider")
		m := payment.NewMock(cfg.Payment.WebhookSecret, cfg.Payment.PublicBaseURL)
		return m, m
	default:
		s, err := payment.NewStripe(payment.StripeConfig{
			SecretKey:     cfg.Payment.StripeSecretKey,
			WebhookSecret: cfg.Payment.WebhookSecret,
			Currency:      cfg.Payment.Currency,
			SuccessURL:    cfg.Payment.SuccessURL,
			CancelURL:     cfg.Payment.CancelURL,
		})
		if err != nil {
			zl.Fatal("stripe setup failed", zap.Error(err))
		}
		return s, s
	}
}
