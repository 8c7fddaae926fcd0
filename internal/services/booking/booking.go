// Package booking содержит бизнес-логику менеджера броней: создание и отмену
// записей на занятия с контролем вместимости, выбором абонемента и
// компенсирующим откатом на каждой ветке отказа многошаговой записи.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/gym-booking/internal/lib/sl"
	"github.com/magabrotheeeer/gym-booking/internal/metrics"
	"github.com/magabrotheeeer/gym-booking/internal/models"
	"github.com/magabrotheeeer/gym-booking/internal/rabbitmq"
)

// SlotRegistry описывает операции реестра слотов, нужные менеджеру броней.
type SlotRegistry interface {
	Get(ctx context.Context, slotID int) (*models.ScheduleSlot, error)
	Reserve(ctx context.Context, slotID int) error
	Release(ctx context.Context, slotID int) error
	FindTrainerSlot(ctx context.Context, trainerID int, day, from time.Time) (*models.ScheduleSlot, error)
}

// Ledger описывает операции книги абонементов, нужные менеджеру броней.
type Ledger interface {
	FindEligible(ctx context.Context, userID int, category string) ([]*models.Subscription, error)
	HasCategory(ctx context.Context, userID int, category string) (bool, error)
	DebitVisit(ctx context.Context, sub *models.Subscription) error
	DebitForBooking(ctx context.Context, sub *models.Subscription, bookingID int) error
}

// BookingRepository определяет методы для работы с бронями в хранилище.
type BookingRepository interface {
	// CreateBooking вставляет бронь; повтор пары — models.ErrAlreadyBooked.
	CreateBooking(ctx context.Context, userID, scheduleID int) (int, error)
	// ExistsBooked сообщает, есть ли активная бронь пары (пользователь, слот).
	ExistsBooked(ctx context.Context, userID, scheduleID int) (bool, error)
	// GetBookingForUser возвращает активную бронь пользователя.
	GetBookingForUser(ctx context.Context, bookingID, userID int) (*models.Booking, error)
	// UpdateBookingStatus условно переводит бронь между статусами.
	UpdateBookingStatus(ctx context.Context, bookingID int, from, to string) (bool, error)
	// DeleteBooking удаляет бронь (компенсация).
	DeleteBooking(ctx context.Context, bookingID int) error
}

// EventPublisher публикует события движка для подсистемы уведомлений.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// Manager реализует менеджер броней.
type Manager struct {
	slots  SlotRegistry
	ledger Ledger
	repo   BookingRepository
	events EventPublisher
	log    *slog.Logger
}

// New создает новый Manager.
func New(slots SlotRegistry, ledger Ledger, repo BookingRepository, events EventPublisher, log *slog.Logger) *Manager {
	return &Manager{
		slots:  slots,
		ledger: ledger,
		repo:   repo,
		events: events,
		log:    log,
	}
}

// BookingEvent — сообщение о создании или отмене брони.
type BookingEvent struct {
	BookingID  int    `json:"booking_id"`
	UserID     int    `json:"user_id"`
	ScheduleID int    `json:"schedule_id"`
	Event      string `json:"event"`
}

// CreateBooking записывает пользователя на слот расписания.
//
// Порядок шагов: проверка слота и абонемента, атомарное резервирование
// места, вставка брони, списание по политике. После успешного резервирования
// каждая ветка отказа освобождает место (и удаляет бронь) перед возвратом
// ошибки — незавершенная запись не оставляет следов.
func (m *Manager) CreateBooking(ctx context.Context, userID, slotID int) (int, error) {
	const op = "booking.CreateBooking"

	slot, err := m.slots.Get(ctx, slotID)
	if err != nil {
		return 0, err
	}

	// Существующая бронь отклоняется раньше проверки абонемента; гонку
	// двух одновременных запросов закрывает уникальный индекс при вставке.
	exists, err := m.repo.ExistsBooked(ctx, userID, slotID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return 0, models.ErrAlreadyBooked
	}

	category := models.CategoryForSession(slot.SessionType)
	eligible, err := m.ledger.FindEligible(ctx, userID, category)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(eligible) == 0 {
		return 0, models.ErrNoEligibleSubscription
	}
	sub := eligible[0]

	if err := m.slots.Reserve(ctx, slotID); err != nil {
		if err == models.ErrCapacityExceeded {
			metrics.CapacityConflicts.Inc()
		}
		return 0, err
	}

	bookingID, err := m.repo.CreateBooking(ctx, userID, slotID)
	if err != nil {
		m.compensateRelease(ctx, slotID)
		return 0, err
	}

	if DebitMomentFor(slot.SessionType, true) == DebitAtBooking {
		if err := m.ledger.DebitForBooking(ctx, sub, bookingID); err != nil {
			m.compensateDelete(ctx, bookingID)
			m.compensateRelease(ctx, slotID)
			return 0, err
		}
	}

	metrics.BookingsCreated.Inc()
	m.publish(rabbitmq.RoutingKeyBookingCreated, BookingEvent{
		BookingID:  bookingID,
		UserID:     userID,
		ScheduleID: slotID,
		Event:      "created",
	})
	m.log.Info("booking created",
		slog.Int("booking_id", bookingID), slog.Int("user_id", userID), slog.Int("slot_id", slotID))
	return bookingID, nil
}

// CancelBooking отменяет бронь пользователя и освобождает место.
// Списанное при бронировании посещение не возвращается — отмена не
// компенсирует уже потраченную квоту, это бизнес-правило, а не упущение.
func (m *Manager) CancelBooking(ctx context.Context, bookingID, userID int) error {
	const op = "booking.CancelBooking"

	b, err := m.repo.GetBookingForUser(ctx, bookingID, userID)
	if err != nil {
		return err
	}

	ok, err := m.repo.UpdateBookingStatus(ctx, bookingID, models.BookingStatusBooked, models.BookingStatusCancelled)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return models.ErrBookingNotFound
	}

	if err := m.slots.Release(ctx, b.ScheduleID); err != nil {
		m.log.Error("failed to release seat after cancellation", sl.Err(err),
			slog.Int("slot_id", b.ScheduleID))
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.BookingsCancelled.Inc()
	m.publish(rabbitmq.RoutingKeyBookingCancelled, BookingEvent{
		BookingID:  bookingID,
		UserID:     userID,
		ScheduleID: b.ScheduleID,
		Event:      "cancelled",
	})
	m.log.Info("booking cancelled", slog.Int("booking_id", bookingID), slog.Int("user_id", userID))
	return nil
}

// BookGymVisit оформляет визит в тренажерный зал.
//
// С тренером: бронируется его ближайший свободный индивидуальный слот
// на дату не раньше запрошенного времени, посещение спишется при отметке.
// Без тренера: слота и брони нет, посещение списывается немедленно —
// события отметки для такого визита не будет. Возвращает ID брони
// (0 для визита без тренера).
func (m *Manager) BookGymVisit(ctx context.Context, userID int, day, from time.Time, trainerID *int) (int, error) {
	const op = "booking.BookGymVisit"

	if trainerID == nil {
		eligible, err := m.ledger.FindEligible(ctx, userID, models.CategoryGym)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		if len(eligible) == 0 {
			return 0, models.ErrNoEligibleSubscription
		}
		if err := m.ledger.DebitVisit(ctx, eligible[0]); err != nil {
			return 0, err
		}
		m.log.Info("gym visit debited without trainer", slog.Int("user_id", userID))
		return 0, nil
	}

	// Визит с тренером спишется при отметке посещения, конкретный абонемент
	// сейчас не нужен — достаточно факта, что оплатить визит есть чем.
	ok, err := m.ledger.HasCategory(ctx, userID, models.CategoryGym)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return 0, models.ErrNoEligibleSubscription
	}

	slot, err := m.slots.FindTrainerSlot(ctx, *trainerID, day, from)
	if err != nil {
		return 0, err
	}

	if err := m.slots.Reserve(ctx, slot.ID); err != nil {
		if err == models.ErrCapacityExceeded {
			metrics.CapacityConflicts.Inc()
		}
		return 0, err
	}

	bookingID, err := m.repo.CreateBooking(ctx, userID, slot.ID)
	if err != nil {
		m.compensateRelease(ctx, slot.ID)
		return 0, err
	}

	metrics.BookingsCreated.Inc()
	m.publish(rabbitmq.RoutingKeyBookingCreated, BookingEvent{
		BookingID:  bookingID,
		UserID:     userID,
		ScheduleID: slot.ID,
		Event:      "created",
	})
	m.log.Info("gym visit booked with trainer",
		slog.Int("booking_id", bookingID), slog.Int("user_id", userID), slog.Int("trainer_id", *trainerID))
	return bookingID, nil
}

func (m *Manager) compensateRelease(ctx context.Context, slotID int) {
	if err := m.slots.Release(ctx, slotID); err != nil {
		m.log.Error("compensating release failed", sl.Err(err), slog.Int("slot_id", slotID))
	}
}

func (m *Manager) compensateDelete(ctx context.Context, bookingID int) {
	if err := m.repo.DeleteBooking(ctx, bookingID); err != nil {
		m.log.Error("compensating booking delete failed", sl.Err(err), slog.Int("booking_id", bookingID))
	}
}

func (m *Manager) publish(routingKey string, event BookingEvent) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(routingKey, event); err != nil {
		m.log.Warn("failed to publish booking event", sl.Err(err), slog.String("key", routingKey))
	}
}
