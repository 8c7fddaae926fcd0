// Package cancel реализует HTTP-обработчик отмены брони.
//
// Идентификатор брони берется из URL, принадлежность проверяется по
// текущему пользователю. Списанное при бронировании посещение не
// возвращается.
package cancel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/gym-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gym-booking/internal/http/response"
	"github.com/magabrotheeeer/gym-booking/internal/lib/sl"
	"github.com/magabrotheeeer/gym-booking/internal/models"
)

// Handler обрабатывает HTTP-запросы отмены брони.
type Handler struct {
	log     *slog.Logger
	users   UserResolver
	service Service
}

// Service описывает интерфейс менеджера броней.
type Service interface {
	CancelBooking(ctx context.Context, bookingID, userID int) error
}

// UserResolver возвращает пользователя по uid из JWT.
type UserResolver interface {
	ResolveUser(ctx context.Context, uid string) (*models.User, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, users UserResolver, service Service) *Handler {
	return &Handler{
		log:     log,
		users:   users,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отменить бронь
// @Description Отменяет бронь текущего пользователя и освобождает место. Списанное посещение не возвращается.
// @Tags Bookings
// @Produce  json
// @Param id path int true "Идентификатор брони"
// @Success 200 {object} map[string]any "Бронь отменена"
// @Failure 400 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Бронь не найдена или не принадлежит пользователю"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /bookings/{id} [delete]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.booking.cancel"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	idStr := chi.URLParam(r, "id")
	bookingID, err := strconv.Atoi(idStr)
	if err != nil {
		log.Error("invalid id format", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid id"))
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

	if err := h.service.CancelBooking(r.Context(), bookingID, user.ID); err != nil {
		if errors.Is(err, models.ErrBookingNotFound) {
			log.Warn("booking not found", slog.Int("booking_id", bookingID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(models.ErrBookingNotFound.Error()))
			return
		}
		log.Error("failed to cancel booking", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to cancel booking"))
		return
	}

	log.Info("booking cancelled", slog.Int("booking_id", bookingID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"booking_id": bookingID,
		"status":     models.BookingStatusCancelled,
	}))
}
