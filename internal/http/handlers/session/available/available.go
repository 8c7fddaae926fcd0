// Package available реализует HTTP-обработчик выдачи доступных занятий.
//
// Возвращает слоты расписания на указанную дату, достижимые категориями
// активных абонементов текущего пользователя и еще не забронированные им.
package available

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/gym-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gym-booking/internal/http/response"
	"github.com/magabrotheeeer/gym-booking/internal/lib/sl"
	"github.com/magabrotheeeer/gym-booking/internal/models"
)

// SlotView — представление доступного слота для клиента.
type SlotView struct {
	ID              int     `json:"id"`
	Name            *string `json:"name,omitempty"`
	SessionType     string  `json:"session_type"`
	TrainerName     string  `json:"trainer_name"`
	StartsAt        string  `json:"starts_at"`
	EndsAt          string  `json:"ends_at"`
	FreeSeats       int     `json:"free_seats"`
	MaxParticipants int     `json:"max_participants"`
}

// Handler обрабатывает HTTP-запросы списка доступных занятий.
type Handler struct {
	log     *slog.Logger
	users   UserResolver
	service Service
}

// Service описывает интерфейс реестра слотов расписания.
type Service interface {
	GetAvailable(ctx context.Context, userID int, day time.Time) ([]*models.AvailableSlot, error)
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
// @Summary Доступные занятия на дату
// @Description Возвращает будущие слоты расписания на дату, достижимые абонементами пользователя и еще не забронированные им.
// @Tags Sessions
// @Produce  json
// @Param date query string true "Дата в формате 2006-01-02"
// @Success 200 {object} map[string]any "Список доступных занятий"
// @Failure 400 {object} response.ErrorResponse "Некорректная дата"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /available-sessions [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.available"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	dateStr := r.URL.Query().Get("date")
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		log.Error("invalid date format", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid date, expected format 2006-01-02"))
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

	slots, err := h.service.GetAvailable(r.Context(), user.ID, day)
	if err != nil {
		log.Error("failed to list available sessions", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list available sessions"))
		return
	}

	views := make([]SlotView, 0, len(slots))
	for _, s := range slots {
		views = append(views, SlotView{
			ID:              s.ID,
			Name:            s.Name,
			SessionType:     s.SessionType,
			TrainerName:     s.TrainerName,
			StartsAt:        s.StartsAt.Format(time.RFC3339),
			EndsAt:          s.EndsAt.Format(time.RFC3339),
			FreeSeats:       s.MaxParticipants - s.CurrentParticipants,
			MaxParticipants: s.MaxParticipants,
		})
	}

	log.Info("available sessions listed", slog.Int("count", len(views)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"date":     dateStr,
		"sessions": views,
	}))
}
