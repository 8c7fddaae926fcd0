// Package create реализует HTTP-обработчик записи на занятие.
//
// Принимает JSON с идентификатором слота, находит текущего пользователя
// по uid из JWT и делегирует создание брони менеджеру броней.
// Конфликтные исходы (нет мест, повторная бронь, нет абонемента)
// возвращаются клиенту с конкретным сообщением.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/gym-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gym-booking/internal/http/response"
	"github.com/magabrotheeeer/gym-booking/internal/lib/sl"
	"github.com/magabrotheeeer/gym-booking/internal/models"
)

// Request — входные данные для записи на занятие.
type Request struct {
	ScheduleID int `json:"schedule_id" validate:"required,min=1"`
}

// Handler обрабатывает HTTP-запросы создания брони.
type Handler struct {
	log      *slog.Logger
	users    UserResolver
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс менеджера броней.
type Service interface {
	CreateBooking(ctx context.Context, userID, slotID int) (int, error)
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
// @Summary Записаться на занятие
// @Description Создает бронь текущего пользователя на слот расписания. Для групповых занятий посещение списывается сразу.
// @Tags Bookings
// @Accept  json
// @Produce  json
// @Param request body Request true "Идентификатор слота расписания"
// @Success 200 {object} map[string]any "Бронь создана"
// @Failure 400 {object} response.ErrorResponse "Нет мест, повторная бронь или нет подходящего абонемента"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Слот не найден или отменен"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /bookings [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.booking.create"

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
	log.Info("request body decoded", slog.Int("schedule_id", req.ScheduleID))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

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

	bookingID, err := h.service.CreateBooking(r.Context(), user.ID, req.ScheduleID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSlotNotFound):
			log.Warn("slot not found", slog.Int("schedule_id", req.ScheduleID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(models.ErrSlotNotFound.Error()))
		case errors.Is(err, models.ErrCapacityExceeded),
			errors.Is(err, models.ErrAlreadyBooked),
			errors.Is(err, models.ErrNoEligibleSubscription):
			log.Warn("booking rejected", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
		default:
			log.Error("failed to create booking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to create booking"))
		}
		return
	}

	log.Info("booking created", slog.Int("booking_id", bookingID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"booking_id": bookingID,
	}))
}
