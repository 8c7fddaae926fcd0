// Package unmark реализует HTTP-обработчик снятия отметки посещения.
//
// Снять отметку может только тренер, ведущий слот. Отсутствующая отметка —
// успешный no-op; списанное посещение не восстанавливается.
package unmark

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

// Request — входные данные для снятия отметки.
type Request struct {
	UserID     int  `json:"user_id" validate:"required,min=1"`
	ScheduleID int  `json:"schedule_id" validate:"required,min=1"`
	BookingID  *int `json:"booking_id,omitempty" validate:"omitempty,min=1"`
}

// Handler обрабатывает HTTP-запросы снятия отметки посещения.
type Handler struct {
	log      *slog.Logger
	users    UserResolver
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс регистратора посещений.
type Service interface {
	UnmarkAttended(ctx context.Context, trainerID, userID, scheduleID int, bookingID *int) error
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
// @Summary Снять отметку посещения
// @Description Убирает отметку присутствия клиента. Доступно только тренеру, ведущему слот. Списанное посещение не возвращается.
// @Tags Attendance
// @Accept  json
// @Produce  json
// @Param request body Request true "Клиент, слот и опционально бронь"
// @Success 200 {object} map[string]any "Отметка снята"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Слот ведет другой тренер"
// @Failure 404 {object} response.ErrorResponse "Слот не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /attendance [delete]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.attendance.unmark"

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
	trainer, err := h.users.ResolveUser(r.Context(), uid)
	if err != nil {
		log.Error("failed to resolve trainer", sl.Err(err))
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	err = h.service.UnmarkAttended(r.Context(), trainer.ID, req.UserID, req.ScheduleID, req.BookingID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrForbidden):
			log.Warn("slot belongs to another trainer", slog.Int("schedule_id", req.ScheduleID))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(models.ErrForbidden.Error()))
		case errors.Is(err, models.ErrSlotNotFound):
			log.Warn("slot not found", slog.Int("schedule_id", req.ScheduleID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(models.ErrSlotNotFound.Error()))
		default:
			log.Error("failed to unmark attendance", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to unmark attendance"))
		}
		return
	}

	log.Info("attendance unmarked",
		slog.Int("user_id", req.UserID), slog.Int("schedule_id", req.ScheduleID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user_id":     req.UserID,
		"schedule_id": req.ScheduleID,
	}))
}
