// Package gymvisit реализует HTTP-обработчик оформления визита в тренажерный зал.
//
// С тренером бронируется его ближайший свободный индивидуальный слот на
// дату; без тренера посещение списывается с абонемента сразу, брони нет.
package gymvisit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/gym-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gym-booking/internal/http/response"
	"github.com/magabrotheeeer/gym-booking/internal/lib/sl"
	"github.com/magabrotheeeer/gym-booking/internal/models"
)

// Request — входные данные для визита в зал.
type Request struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string `json:"time" validate:"required,datetime=15:04"`
	TrainerID *int   `json:"trainer_id,omitempty" validate:"omitempty,min=1"`
}

// Handler обрабатывает HTTP-запросы оформления визита в зал.
type Handler struct {
	log      *slog.Logger
	users    UserResolver
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс менеджера броней для визита в зал.
type Service interface {
	BookGymVisit(ctx context.Context, userID int, day, from time.Time, trainerID *int) (int, error)
}

// UserResolver возвращает пользователя по uid из JWT.
type UserResolver interface {
	ResolveUser(ctx context.Context, uid string) (*models.User, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, users UserResolver, service Service) *Handler {
	return &Handler{
		log:      log,
		users:    users,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Оформить визит в тренажерный зал
// @Description Без тренера сразу списывает посещение с абонемента. С тренером бронирует его ближайший свободный индивидуальный слот на дату не раньше указанного времени.
// @Tags Bookings
// @Accept  json
// @Produce  json
// @Param request body Request true "Дата, время и опционально тренер"
// @Success 200 {object} map[string]any "Визит оформлен"
// @Failure 400 {object} response.ErrorResponse "Нет абонемента, нет мест или тренер занят"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /gym-booking [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.booking.gymvisit"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.String("date", req.Date), slog.String("time", req.Time))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	day, _ := time.Parse("2006-01-02", req.Date)
	visitTime, _ := time.Parse("15:04", req.Time)
	from := time.Date(day.Year(), day.Month(), day.Day(),
		visitTime.Hour(), visitTime.Minute(), 0, 0, time.UTC)

	uid, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || uid == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	user, err := h.users.ResolveUser(r.Context(), uid)
	if err != nil {
		log.Error("failed to resolve user", sl.Err(err))
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	bookingID, err := h.service.BookGymVisit(r.Context(), user.ID, day, from, req.TrainerID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNoEligibleSubscription),
			errors.Is(err, models.ErrTrainerUnavailable),
			errors.Is(err, models.ErrCapacityExceeded),
			errors.Is(err, models.ErrAlreadyBooked):
			log.Warn("gym visit rejected", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
		default:
			log.Error("failed to book gym visit", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to book gym visit"))
		}
		return
	}

	data := map[string]any{"date": req.Date, "time": req.Time}
	if bookingID != 0 {
		data["booking_id"] = bookingID
	}
	log.Info("gym visit booked", slog.Int("booking_id", bookingID))
	render.JSON(w, r, response.StatusOKWithData(data))
}
