package gymbooking

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/gym-booking/internal/http/handlers/attendance/mark"
	"github.com/magabrotheeeer/gym-booking/internal/http/handlers/attendance/unmark"
	"github.com/magabrotheeeer/gym-booking/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/gym-booking/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/gym-booking/internal/http/handlers/booking/cancel"
	"github.com/magabrotheeeer/gym-booking/internal/http/handlers/booking/create"
	"github.com/magabrotheeeer/gym-booking/internal/http/handlers/booking/gymvisit"
	"github.com/magabrotheeeer/gym-booking/internal/http/handlers/health"
	"github.com/magabrotheeeer/gym-booking/internal/http/handlers/session/available"
	"github.com/magabrotheeeer/gym-booking/internal/http/handlers/subscription/list"
	"github.com/magabrotheeeer/gym-booking/internal/http/handlers/subscription/purchase"
	"github.com/magabrotheeeer/gym-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gym-booking/internal/models"
	attendanceservice "github.com/magabrotheeeer/gym-booking/internal/services/attendance"
	authservice "github.com/magabrotheeeer/gym-booking/internal/services/auth"
	bookingservice "github.com/magabrotheeeer/gym-booking/internal/services/booking"
	ledgerservice "github.com/magabrotheeeer/gym-booking/internal/services/ledger"
	slotsservice "github.com/magabrotheeeer/gym-booking/internal/services/slots"
	"github.com/magabrotheeeer/gym-booking/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, db *repository.Storage,
	authService *authservice.AuthService,
	slotRegistry *slotsservice.Registry,
	ledger *ledgerservice.Ledger,
	bookingManager *bookingservice.Manager,
	attendanceRecorder *attendanceservice.Recorder,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authService, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Get("/available-sessions", available.New(logger, authService, slotRegistry).ServeHTTP)

			r.Post("/bookings", create.New(logger, authService, bookingManager).ServeHTTP)
			r.Delete("/bookings/{id}", cancel.New(logger, authService, bookingManager).ServeHTTP)
			r.Post("/gym-booking", gymvisit.New(logger, authService, bookingManager).ServeHTTP)

			r.Get("/subscriptions", list.New(logger, authService, ledger).ServeHTTP)
			r.Post("/subscriptions", purchase.New(logger, authService, ledger).ServeHTTP)

			// Отметки посещений доступны тренерам и администраторам
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireRole(logger, models.RoleTrainer, models.RoleAdmin))
				r.Post("/attendance", mark.New(logger, authService, attendanceRecorder).ServeHTTP)
				r.Delete("/attendance", unmark.New(logger, authService, attendanceRecorder).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(logger, db).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
