// Package ledger содержит бизнес-логику книги абонементов: выбор абонемента
// для списания, атомарное списание посещений с автодеактивацией, покупку
// и расчет цены с накопительной скидкой.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/magabrotheeeer/gym-booking/internal/metrics"
	"github.com/magabrotheeeer/gym-booking/internal/models"
)

// Срок действия абонемента без явного ограничения по месяцам.
const defaultDurationMonths = 12

// SubscriptionRepository определяет методы для работы с абонементами в хранилище.
type SubscriptionRepository interface {
	// FindEligible возвращает подходящие абонементы, ближайший к сгоранию первым.
	FindEligible(ctx context.Context, userID int, category string) ([]*models.Subscription, error)
	// DebitVisit атомарно списывает посещение; false — списывать нечего.
	DebitVisit(ctx context.Context, subscriptionID int) (bool, error)
	// DebitVisitForBooking списывает посещение и помечает бронь одной транзакцией.
	DebitVisitForBooking(ctx context.Context, bookingID, subscriptionID int) (bool, error)
	// SetVisitDebited помечает бронь оплаченной без списания (безлимит).
	SetVisitDebited(ctx context.Context, bookingID, subscriptionID int) error
	// CreateSubscription сохраняет купленный абонемент.
	CreateSubscription(ctx context.Context, sub models.Subscription) (int, error)
	// ListActiveByUser возвращает активные абонементы с ограниченным остатком.
	ListActiveByUser(ctx context.Context, userID int) ([]*models.Subscription, error)
	// GetSubscriptionType возвращает запись каталога.
	GetSubscriptionType(ctx context.Context, typeID int) (*models.SubscriptionType, error)
	// GetUserByID возвращает пользователя (нужен кешированный процент скидки).
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// Ledger реализует книгу абонементов.
type Ledger struct {
	repo  SubscriptionRepository
	cache Cache
	log   *slog.Logger
}

// New создает новый Ledger.
func New(repo SubscriptionRepository, cache Cache, log *slog.Logger) *Ledger {
	return &Ledger{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

func cacheKey(userID int) string {
	return fmt.Sprintf("subscriptions:user:%d", userID)
}

// FindEligible возвращает абонементы пользователя, которыми можно оплатить
// занятие указанной категории. Порядок — ближайшая дата окончания первой:
// сначала тратится то, что сгорит раньше.
func (l *Ledger) FindEligible(ctx context.Context, userID int, category string) ([]*models.Subscription, error) {
	return l.repo.FindEligible(ctx, userID, category)
}

// DebitVisit списывает одно посещение с абонемента. Для безлимитного
// абонемента операция — no-op. Ошибка models.ErrNoEligibleSubscription
// означает, что остаток исчерпала конкурентная операция.
func (l *Ledger) DebitVisit(ctx context.Context, sub *models.Subscription) error {
	const op = "ledger.DebitVisit"
	if sub.VisitsRemaining == nil {
		return nil
	}
	debited, err := l.repo.DebitVisit(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !debited {
		return models.ErrNoEligibleSubscription
	}
	metrics.VisitsDebited.Inc()
	l.invalidate(sub.UserID)
	return nil
}

// DebitForBooking списывает посещение и помечает бронь оплаченной.
// Для безлимитного абонемента бронь помечается без списания.
func (l *Ledger) DebitForBooking(ctx context.Context, sub *models.Subscription, bookingID int) error {
	const op = "ledger.DebitForBooking"
	if sub.VisitsRemaining == nil {
		if err := l.repo.SetVisitDebited(ctx, bookingID, sub.ID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	debited, err := l.repo.DebitVisitForBooking(ctx, bookingID, sub.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !debited {
		return models.ErrNoEligibleSubscription
	}
	metrics.VisitsDebited.Inc()
	l.invalidate(sub.UserID)
	return nil
}

// PriceFor возвращает цену типа абонемента для пользователя с учетом его
// накопительной скидки: base_price * (1 - discount/100), два знака.
func (l *Ledger) PriceFor(ctx context.Context, userID, typeID int) (float64, error) {
	const op = "ledger.PriceFor"
	st, err := l.repo.GetSubscriptionType(ctx, typeID)
	if err != nil {
		return 0, err
	}
	user, err := l.repo.GetUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	price := st.BasePrice * (1 - float64(user.DiscountPercent)/100)
	return math.Round(price*100) / 100, nil
}

// Purchase создает купленный абонемент и возвращает его ID и итоговую цену.
// Остаток посещений инициализируется вместимостью типа; срок действия —
// duration_months типа либо год, если тип не ограничен по сроку.
// Сама оплата за рамками движка.
func (l *Ledger) Purchase(ctx context.Context, userID, typeID int, startDate time.Time) (int, float64, error) {
	const op = "ledger.Purchase"
	st, err := l.repo.GetSubscriptionType(ctx, typeID)
	if err != nil {
		return 0, 0, err
	}
	price, err := l.PriceFor(ctx, userID, typeID)
	if err != nil {
		return 0, 0, err
	}

	months := defaultDurationMonths
	if st.DurationMonths != nil {
		months = *st.DurationMonths
	}
	var visits *int
	if st.VisitsCount != nil {
		v := *st.VisitsCount
		visits = &v
	}
	sub := models.Subscription{
		UserID:          userID,
		TypeID:          typeID,
		StartDate:       startDate,
		EndDate:         startDate.AddDate(0, months, 0),
		VisitsRemaining: visits,
		IsActive:        true,
	}

	id, err := l.repo.CreateSubscription(ctx, sub)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	l.log.Info("subscription purchased",
		slog.Int("id", id), slog.Int("user_id", userID), slog.Int("type_id", typeID))
	l.invalidate(userID)
	return id, price, nil
}

// ListActive возвращает активные абонементы пользователя, используя кеш.
func (l *Ledger) ListActive(ctx context.Context, userID int) ([]*models.Subscription, error) {
	var result []*models.Subscription
	key := cacheKey(userID)
	found, err := l.cache.Get(key, &result)
	if err != nil {
		l.log.Warn("failed to read subscriptions from cache", slog.String("key", key), slog.Any("err", err))
	}
	if found {
		return result, nil
	}

	result, err = l.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := l.cache.Set(key, result, time.Hour); err != nil {
		l.log.Warn("failed to cache subscriptions", slog.String("key", key), slog.Any("err", err))
	}
	return result, nil
}

// HasCategory сообщает, есть ли у пользователя подходящий активный абонемент
// указанной категории (combined подходит всегда).
func (l *Ledger) HasCategory(ctx context.Context, userID int, category string) (bool, error) {
	eligible, err := l.repo.FindEligible(ctx, userID, category)
	if err != nil {
		return false, err
	}
	return len(eligible) > 0, nil
}

func (l *Ledger) invalidate(userID int) {
	key := cacheKey(userID)
	if err := l.cache.Invalidate(key); err != nil {
		l.log.Warn("failed to invalidate subscriptions cache", slog.String("key", key), slog.Any("err", err))
	}
}
