// Package main запускает HTTP-сервер витрины soapyfy.
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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/soapyfy/internal/catalog"
	"github.com/mmeshcher/soapyfy/internal/config"
	"github.com/mmeshcher/soapyfy/internal/handler"
	"github.com/mmeshcher/soapyfy/internal/middleware"
	"github.com/mmeshcher/soapyfy/internal/notify"
	"github.com/mmeshcher/soapyfy/internal/pricing"
	"github.com/mmeshcher/soapyfy/internal/repository"
	"github.com/mmeshcher/soapyfy/internal/service"
	"github.com/mmeshcher/soapyfy/internal/session"
)

const sweepInterval = time.Minute

var (
	_ service.Repository = (*repository.PostgresRepository)(nil)
	_ service.Repository = (*repository.MongoRepository)(nil)
	_ handler.Service    = (*service.Service)(nil)
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}
	if cfg.DatabaseURI == "" {
		sugar.Fatal("DATABASE_URI is required")
	}

	policy, err := service.ParseTransitionPolicy(cfg.OrderStatusPolicy)
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := openRepository(cfg)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	var store session.Store
	if cfg.RedisAddr != "" {
		rs, err := session.NewRedisStore(ctx, cfg.RedisAddr, cfg.SessionTTL)
		if err != nil {
			sugar.Fatalw("session store initialization error", "error", err.Error())
		}
		defer rs.Close()
		store = rs
		sugar.Infow("sessions stored in redis", "addr", cfg.RedisAddr)
	} else {
		ms := session.NewMemoryStore(cfg.SessionTTL)
		g.Go(func() error {
			ms.StartSweeper(ctx, sweepInterval)
			return nil
		})
		store = ms
	}

	sessions := session.NewManager(store)
	unsubscribe := sessions.Subscribe(func(id string, st *session.State) {
		logger.Debug("session updated",
			zap.String("session", id),
			zap.Int("badge", st.Cart.ItemCount()),
			zap.Bool("customer", st.User != nil),
			zap.Bool("admin", st.Admin != nil),
		)
	})
	defer unsubscribe()

	svc := service.NewService(
		repo,
		sessions,
		catalog.Default(),
		pricing.NewEngine(cfg.Pricing(), logger),
		service.WithLogger(logger),
		service.WithPublisher(newPublisher(cfg, logger)),
		service.WithAdmin(service.AdminCredentials{Username: cfg.AdminUsername, Password: cfg.AdminPassword}),
		service.WithTransitionPolicy(policy),
	)
	defer svc.Close()

	if cfg.AdminPassword == "" {
		sugar.Warn("ADMIN_PASSWORD is empty, admin console is disabled")
	}

	sessionMiddleware := middleware.NewSessionMiddleware(cfg.SessionSecret, cfg.SecureCookies)
	h := handler.NewHandler(svc, logger, sessionMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting soapyfy server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("application terminated with error", "error", err)
	}
}

func openRepository(cfg *config.Config) (service.Repository, error) {
	if repository.IsMongoURI(cfg.DatabaseURI) {
		return repository.NewMongoRepository(cfg.DatabaseURI, cfg.Store())
	}
	return repository.NewPostgresRepository(cfg.DatabaseURI, cfg.Store())
}

func newPublisher(cfg *config.Config, logger *zap.Logger) notify.Publisher {
	var publishers notify.Multi
	if len(cfg.KafkaBrokers) > 0 {
		publishers = append(publishers, notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic))
		logger.Info("order events published to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	if cfg.OrderWebhookURL != "" {
		publishers = append(publishers, notify.NewWebhookPublisher(cfg.OrderWebhookURL, logger))
		logger.Info("order events posted to webhook", zap.String("url", cfg.OrderWebhookURL))
	}

	switch len(publishers) {
	case 0:
		return notify.Nop{}
	case 1:
		return publishers[0]
	default:
		return publishers
	}
}
