// Package purchase реализует HTTP-обработчик покупки абонемента.
//
// Цена считается с учетом накопительной скидки пользователя; сама оплата
// за рамками движка.
package purchase

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

// Request — входные данные для покупки абонемента.
type Request struct {
	TypeID    int    `json:"type_id" validate:"required,min=1"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
}

// Handler обрабатывает HTTP-запросы покупки абонементов.
type Handler struct {
	log      *slog.Logger
	users    UserResolver
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс книги абонементов для покупки.
type Service interface {
	Purchase(ctx context.Context, userID, typeID int, startDate time.Time) (int, float64, error)
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
// @Summary Купить абонемент
// @Description Создает абонемент выбранного типа для текущего пользователя. Цена учитывает накопительную скидку.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body Request true "Тип абонемента и дата начала действия"
// @Success 200 {object} map[string]any "Абонемент создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Тип абонемента не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /subscriptions [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.purchase"

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
	log.Info("request body decoded", slog.Int("type_id", req.TypeID))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	startDate, _ := time.Parse("2006-01-02", req.StartDate)

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

	id, price, err := h.service.Purchase(r.Context(), user.ID, req.TypeID, startDate)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionTypeNotFound) {
			log.Warn("subscription type not found", slog.Int("type_id", req.TypeID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(models.ErrSubscriptionTypeNotFound.Error()))
			return
		}
		log.Error("failed to purchase subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to purchase subscription"))
		return
	}

	log.Info("subscription purchased", slog.Int("id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription_id": id,
		"price":           price,
	}))
}
