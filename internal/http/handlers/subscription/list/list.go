// Package list реализует HTTP-обработчик выдачи абонементов пользователя.
package list

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

// SubscriptionView — представление абонемента для клиента.
type SubscriptionView struct {
	ID              int    `json:"id"`
	TypeName        string `json:"type_name"`
	Category        string `json:"category"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	VisitsRemaining *int   `json:"visits_remaining,omitempty"`
	Unlimited       bool   `json:"unlimited"`
}

// Handler обрабатывает HTTP-запросы списка абонементов.
type Handler struct {
	log     *slog.Logger
	users   UserResolver
	service Service
}

// Service описывает интерфейс книги абонементов.
type Service interface {
	ListActive(ctx context.Context, userID int) ([]*models.Subscription, error)
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
// @Summary Активные абонементы пользователя
// @Description Возвращает активные абонементы текущего пользователя с остатком посещений.
// @Tags Subscriptions
// @Produce  json
// @Success 200 {object} map[string]any "Список абонементов"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /subscriptions [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

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

	subs, err := h.service.ListActive(r.Context(), user.ID)
	if err != nil {
		log.Error("failed to list subscriptions", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list subscriptions"))
		return
	}

	views := make([]SubscriptionView, 0, len(subs))
	for _, s := range subs {
		views = append(views, SubscriptionView{
			ID:              s.ID,
			TypeName:        s.TypeName,
			Category:        s.Category,
			StartDate:       s.StartDate.Format(time.DateOnly),
			EndDate:         s.EndDate.Format(time.DateOnly),
			VisitsRemaining: s.VisitsRemaining,
			Unlimited:       s.VisitsRemaining == nil,
		})
	}

	log.Info("subscriptions listed", slog.Int("count", len(views)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscriptions": views,
	}))
}
