// Package gymbooking собирает движок бронирования: хранилище, кеш, очередь
// событий, сервисы и HTTP-сервер, и управляет его жизненным циклом.
package gymbooking

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/gym-booking/internal/cache"
	"github.com/magabrotheeeer/gym-booking/internal/config"
	"github.com/magabrotheeeer/gym-booking/internal/lib/discount"
	"github.com/magabrotheeeer/gym-booking/internal/lib/jwt"
	"github.com/magabrotheeeer/gym-booking/internal/lib/sl"
	"github.com/magabrotheeeer/gym-booking/internal/migrations"
	"github.com/magabrotheeeer/gym-booking/internal/rabbitmq"
	attendanceservice "github.com/magabrotheeeer/gym-booking/internal/services/attendance"
	authservice "github.com/magabrotheeeer/gym-booking/internal/services/auth"
	bookingservice "github.com/magabrotheeeer/gym-booking/internal/services/booking"
	ledgerservice "github.com/magabrotheeeer/gym-booking/internal/services/ledger"
	slotsservice "github.com/magabrotheeeer/gym-booking/internal/services/slots"
	"github.com/magabrotheeeer/gym-booking/internal/storage/repository"
)

// App держит собранный HTTP-сервер и подключения движка.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	rabbit *amqp.Connection
}

// New собирает приложение: подключает Postgres с миграциями, Redis и
// RabbitMQ, связывает сервисы движка и регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	rabbitConn, err := rabbitmq.Connect(cfg.AddressRabbit, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(rabbitConn, rabbitmq.DefaultQueues())
	if err != nil {
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(ch)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	calc := discount.New(cfg.DiscountCap)

	authService := authservice.NewAuthService(db, jwtMaker)
	slotRegistry := slotsservice.New(db, logger)
	ledger := ledgerservice.New(db, cacheRedis, logger)
	bookingManager := bookingservice.New(slotRegistry, ledger, db, publisher, logger)
	attendanceRecorder := attendanceservice.New(
		slotRegistry, ledger, db, db, db, calc, publisher, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, db,
		authService, slotRegistry, ledger, bookingManager, attendanceRecorder)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		rabbit: rabbitConn,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if cerr := a.rabbit.Close(); cerr != nil {
			a.logger.Warn("failed to close rabbitmq connection", sl.Err(cerr))
		}
		if cerr := a.db.DB.Close(); cerr != nil {
			a.logger.Warn("failed to close database", sl.Err(cerr))
		}
		return err
	}
}
