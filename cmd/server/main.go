package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/linemk/parfume-shop/internal/app"
	"github.com/linemk/parfume-shop/internal/chat"
	"github.com/linemk/parfume-shop/internal/config"
	"github.com/linemk/parfume-shop/internal/lib/logger"
	"github.com/linemk/parfume-shop/internal/notifier"
	"github.com/linemk/parfume-shop/internal/service"
	"github.com/linemk/parfume-shop/internal/storage"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	itemRepo := storage.NewItemRepository(application.DB)
	cartRepo := storage.NewCartRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	messageRepo := storage.NewMessageRepository(application.DB)

	// уведомления о смене статуса заказа
	sinks := []notifier.Sink{notifier.NewLogSink(log)}
	if cfg.Notifier.Kafka.Enabled {
		kafkaSink := notifier.NewKafkaSink(notifier.NewKafkaWriter(cfg.Notifier.Kafka.Brokers, cfg.Notifier.Kafka.Topic))
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Info("kafka notifications enabled", slog.String("topic", cfg.Notifier.Kafka.Topic))
	}
	statusNotifier := notifier.New(log, cfg.Notifier.QueueSize, sinks...)

	tokenTTL := time.Duration(cfg.JWT.TokenTTL) * time.Minute
	authService := service.NewAuthService(log, userRepo, cfg.JWT.Secret, tokenTTL)
	catalogService := service.NewCatalogService(log, itemRepo)
	cartService := service.NewCartService(log, cartRepo, itemRepo)
	orderService := service.NewOrderService(log, application.DB, cartRepo, itemRepo, orderRepo, statusNotifier)

	hub := chat.NewHub(log, chat.NewRegistry(), messageRepo, cfg.Chat.HistoryLimit)
	var relay *chat.RedisRelay
	if cfg.Chat.Redis.Enabled {
		relay = chat.NewRedisRelay(log, chat.NewRedisClient(cfg.Chat.Redis.Address, cfg.Chat.Redis.Password), cfg.Chat.Redis.Channel)
		defer relay.Close()
		hub.WithRelay(relay)
	}

	router := app.NewRouter(log, app.Services{
		Auth:             authService,
		Catalog:          catalogService,
		Cart:             cartService,
		Orders:           orderService,
		Chat:             hub,
		ChatWriteTimeout: cfg.Chat.WriteTimeout,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server error")
		}
		return nil
	})

	g.Go(func() error {
		return statusNotifier.Run(gCtx)
	})

	if relay != nil {
		g.Go(func() error {
			return relay.Run(gCtx, hub)
		})
	}

	// graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "server shutdown failed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("app stopped with error", slog.Any("error", err))
		return
	}
	log.Info("server gracefully stopped")
}
