// Package attendance содержит бизнес-логику регистратора посещений:
// идемпотентную отметку присутствия с обновлением живого счетчика слота,
// счетчика посещений клиента, скидки и позднего списания визита,
// а также снятие отметки.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/gym-booking/internal/lib/discount"
	"github.com/magabrotheeeer/gym-booking/internal/lib/sl"
	"github.com/magabrotheeeer/gym-booking/internal/metrics"
	"github.com/magabrotheeeer/gym-booking/internal/models"
	"github.com/magabrotheeeer/gym-booking/internal/rabbitmq"
)

// SlotRegistry описывает операции реестра слотов, нужные регистратору.
type SlotRegistry interface {
	Get(ctx context.Context, slotID int) (*models.ScheduleSlot, error)
	MarkPresence(ctx context.Context, slotID int) (bool, error)
	Release(ctx context.Context, slotID int) error
}

// Ledger описывает операции книги абонементов, нужные регистратору.
type Ledger interface {
	FindEligible(ctx context.Context, userID int, category string) ([]*models.Subscription, error)
	DebitVisit(ctx context.Context, sub *models.Subscription) error
	DebitForBooking(ctx context.Context, sub *models.Subscription, bookingID int) error
}

// BookingRepository определяет доступ к броням для сверки и смены статуса.
type BookingRepository interface {
	GetBookingForUser(ctx context.Context, bookingID, userID int) (*models.Booking, error)
	GetBookedRow(ctx context.Context, userID, scheduleID int) (*models.Booking, error)
	GetAttendedRow(ctx context.Context, userID, scheduleID int) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID int, from, to string) (bool, error)
}

// AttendanceRepository определяет методы для работы с отметками присутствия.
type AttendanceRepository interface {
	// CreateAttendance вставляет отметку; false — пара уже отмечена.
	CreateAttendance(ctx context.Context, userID, scheduleID, trainerID int) (bool, error)
	// DeleteAttendance удаляет отметку; false — отметки не было.
	DeleteAttendance(ctx context.Context, userID, scheduleID int) (bool, error)
}

// UserRepository определяет доступ к счетчикам пользователя.
type UserRepository interface {
	IncrementLifetimeVisits(ctx context.Context, userID int) (int, error)
	DecrementLifetimeVisits(ctx context.Context, userID int) error
	UpdateDiscountPercent(ctx context.Context, userID, percent int) error
}

// EventPublisher публикует события движка для подсистемы уведомлений.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// Recorder реализует регистратор посещений.
type Recorder struct {
	slots    SlotRegistry
	ledger   Ledger
	bookings BookingRepository
	repo     AttendanceRepository
	users    UserRepository
	calc     discount.Calculator
	events   EventPublisher
	log      *slog.Logger
}

// New создает новый Recorder.
func New(slots SlotRegistry, ledger Ledger, bookings BookingRepository,
	repo AttendanceRepository, users UserRepository, calc discount.Calculator,
	events EventPublisher, log *slog.Logger) *Recorder {
	return &Recorder{
		slots:    slots,
		ledger:   ledger,
		bookings: bookings,
		repo:     repo,
		users:    users,
		calc:     calc,
		events:   events,
		log:      log,
	}
}

// AttendanceEvent — сообщение о зафиксированном посещении.
type AttendanceEvent struct {
	UserID     int       `json:"user_id"`
	ScheduleID int       `json:"schedule_id"`
	TrainerID  int       `json:"trainer_id"`
	MarkedAt   time.Time `json:"marked_at"`
}

// MarkAttended фиксирует присутствие пользователя на занятии.
//
// Операция идемпотентна: существующая отметка пары (пользователь, слот)
// означает успех без каких-либо побочных эффектов. Отмечать может только
// тренер, ведущий слот. Шаги после вставки отметки: живой счетчик слота,
// статус брони, счетчик посещений и скидка, затем позднее списание для
// индивидуальных занятий, не оплаченных при бронировании. Каждая ветка
// отказа откатывает уже сделанные шаги.
func (r *Recorder) MarkAttended(ctx context.Context, trainerID, userID, scheduleID int, bookingID *int) error {
	const op = "attendance.MarkAttended"

	slot, err := r.slots.Get(ctx, scheduleID)
	if err != nil {
		return err
	}
	if slot.TrainerID != trainerID {
		return models.ErrForbidden
	}

	var b *models.Booking
	if bookingID != nil {
		b, err = r.bookings.GetBookingForUser(ctx, *bookingID, userID)
		if err != nil {
			return err
		}
		if b.ScheduleID != scheduleID {
			return models.ErrBookingNotFound
		}
	} else {
		b, err = r.bookings.GetBookedRow(ctx, userID, scheduleID)
		if err != nil && !errors.Is(err, models.ErrBookingNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	created, err := r.repo.CreateAttendance(ctx, userID, scheduleID, trainerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !created {
		r.log.Info("attendance already marked",
			slog.Int("user_id", userID), slog.Int("slot_id", scheduleID))
		return nil
	}

	// Место забронированного клиента занято еще при резервировании;
	// живой счетчик увеличивается только для визита без брони.
	counted := false
	if b == nil {
		counted, err = r.slots.MarkPresence(ctx, scheduleID)
		if err != nil {
			r.compensateAttendance(ctx, userID, scheduleID)
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if b != nil {
		ok, err := r.bookings.UpdateBookingStatus(ctx, b.ID, models.BookingStatusBooked, models.BookingStatusAttended)
		if err != nil || !ok {
			r.compensatePresence(ctx, scheduleID, counted)
			r.compensateAttendance(ctx, userID, scheduleID)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			return models.ErrBookingNotFound
		}
	}

	visits, err := r.users.IncrementLifetimeVisits(ctx, userID)
	if err != nil {
		r.compensateBookingStatus(ctx, b)
		r.compensatePresence(ctx, scheduleID, counted)
		r.compensateAttendance(ctx, userID, scheduleID)
		return fmt.Errorf("%s: %w", op, err)
	}
	tier := r.calc.Tier(visits)
	if err := r.users.UpdateDiscountPercent(ctx, userID, tier); err != nil {
		// Процент — кешированное значение, пересчитается на следующем визите.
		r.log.Warn("failed to update discount percent", sl.Err(err), slog.Int("user_id", userID))
	}

	if r.needsDebit(slot, b) {
		if err := r.debitLate(ctx, userID, b); err != nil {
			r.compensateLifetime(ctx, userID)
			r.compensateBookingStatus(ctx, b)
			r.compensatePresence(ctx, scheduleID, counted)
			r.compensateAttendance(ctx, userID, scheduleID)
			return err
		}
	}

	metrics.AttendanceMarked.Inc()
	if r.events != nil {
		event := AttendanceEvent{
			UserID:     userID,
			ScheduleID: scheduleID,
			TrainerID:  trainerID,
			MarkedAt:   time.Now().UTC(),
		}
		if err := r.events.Publish(rabbitmq.RoutingKeyAttendanceMarked, event); err != nil {
			r.log.Warn("failed to publish attendance event", sl.Err(err))
		}
	}
	r.log.Info("attendance marked", slog.Int("user_id", userID),
		slog.Int("slot_id", scheduleID), slog.Int("lifetime_visits", visits), slog.Int("tier", tier))
	return nil
}

// UnmarkAttended снимает отметку присутствия. Отсутствующая отметка — no-op.
// Статус брони возвращается в booked; место такой брони остается занятым,
// как до отметки. Живой счетчик уменьшается только для визита без брони —
// зеркально тому, как он увеличивался при отметке. Списанное посещение и
// счетчик посещений клиента НЕ восстанавливаются: корректировка отметки
// не возвращает потраченную квоту.
func (r *Recorder) UnmarkAttended(ctx context.Context, trainerID, userID, scheduleID int, bookingID *int) error {
	const op = "attendance.UnmarkAttended"

	slot, err := r.slots.Get(ctx, scheduleID)
	if err != nil {
		return err
	}
	if slot.TrainerID != trainerID {
		return models.ErrForbidden
	}

	deleted, err := r.repo.DeleteAttendance(ctx, userID, scheduleID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !deleted {
		return nil
	}

	reverted := false
	if bookingID != nil {
		reverted, err = r.bookings.UpdateBookingStatus(ctx, *bookingID,
			models.BookingStatusAttended, models.BookingStatusBooked)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	} else {
		b, err := r.bookings.GetAttendedRow(ctx, userID, scheduleID)
		if err != nil && !errors.Is(err, models.ErrBookingNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if b != nil {
			reverted, err = r.bookings.UpdateBookingStatus(ctx, b.ID,
				models.BookingStatusAttended, models.BookingStatusBooked)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	if !reverted {
		if err := r.slots.Release(ctx, scheduleID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	r.log.Info("attendance unmarked", slog.Int("user_id", userID), slog.Int("slot_id", scheduleID))
	return nil
}

// needsDebit: индивидуальное занятие, не оплаченное при бронировании.
// Групповые оплачиваются при создании брони и здесь не списываются.
func (r *Recorder) needsDebit(slot *models.ScheduleSlot, b *models.Booking) bool {
	if slot.SessionType != models.SessionIndividual {
		return false
	}
	return b == nil || !b.VisitDebited
}

func (r *Recorder) debitLate(ctx context.Context, userID int, b *models.Booking) error {
	eligible, err := r.ledger.FindEligible(ctx, userID, models.CategoryGym)
	if err != nil {
		return err
	}
	if len(eligible) == 0 {
		// Посещение состоялось, списывать нечего — фиксируем и не валим отметку.
		r.log.Warn("attended without eligible subscription", slog.Int("user_id", userID))
		return nil
	}
	if b != nil {
		return r.ledger.DebitForBooking(ctx, eligible[0], b.ID)
	}
	return r.ledger.DebitVisit(ctx, eligible[0])
}

func (r *Recorder) compensateAttendance(ctx context.Context, userID, scheduleID int) {
	if _, err := r.repo.DeleteAttendance(ctx, userID, scheduleID); err != nil {
		r.log.Error("compensating attendance delete failed", sl.Err(err))
	}
}

func (r *Recorder) compensatePresence(ctx context.Context, scheduleID int, counted bool) {
	if !counted {
		return
	}
	if err := r.slots.Release(ctx, scheduleID); err != nil {
		r.log.Error("compensating seat release failed", sl.Err(err))
	}
}

func (r *Recorder) compensateBookingStatus(ctx context.Context, b *models.Booking) {
	if b == nil {
		return
	}
	if _, err := r.bookings.UpdateBookingStatus(ctx, b.ID,
		models.BookingStatusAttended, models.BookingStatusBooked); err != nil {
		r.log.Error("compensating booking status revert failed", sl.Err(err))
	}
}

func (r *Recorder) compensateLifetime(ctx context.Context, userID int) {
	if err := r.users.DecrementLifetimeVisits(ctx, userID); err != nil {
		r.log.Error("compensating lifetime visits decrement failed", sl.Err(err))
	}
}
