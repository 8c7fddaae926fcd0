// Package slots содержит бизнес-логику реестра слотов расписания:
// выдачу доступных занятий и атомарное резервирование и освобождение мест.
package slots

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/gym-booking/internal/models"
)

// ScheduleRepository определяет методы для работы со слотами в хранилище.
type ScheduleRepository interface {
	// ListAvailableSlots возвращает слоты, доступные пользователю на дату.
	ListAvailableSlots(ctx context.Context, userID int, day time.Time) ([]*models.AvailableSlot, error)
	// GetSlot возвращает неотмененный слот по ID.
	GetSlot(ctx context.Context, id int) (*models.ScheduleSlot, error)
	// ReserveSeat атомарно занимает место; false — мест нет.
	ReserveSeat(ctx context.Context, slotID int) (bool, error)
	// ReleaseSeat освобождает место, счетчик не уходит ниже нуля.
	ReleaseSeat(ctx context.Context, slotID int) error
	// FindFreeIndividualSlot ищет свободный индивидуальный слот тренера.
	FindFreeIndividualSlot(ctx context.Context, trainerID int, day, from time.Time) (*models.ScheduleSlot, error)
}

// Registry реализует реестр слотов расписания.
type Registry struct {
	repo ScheduleRepository
	log  *slog.Logger
}

// New создает новый Registry.
func New(repo ScheduleRepository, log *slog.Logger) *Registry {
	return &Registry{
		repo: repo,
		log:  log,
	}
}

// GetAvailable возвращает будущие слоты на дату, достижимые категориями
// абонементов пользователя и еще не забронированные им, по времени начала.
func (s *Registry) GetAvailable(ctx context.Context, userID int, day time.Time) ([]*models.AvailableSlot, error) {
	return s.repo.ListAvailableSlots(ctx, userID, day)
}

// Get возвращает слот по ID; отмененный или отсутствующий — ErrSlotNotFound.
func (s *Registry) Get(ctx context.Context, slotID int) (*models.ScheduleSlot, error) {
	return s.repo.GetSlot(ctx, slotID)
}

// Reserve занимает место на слоте. Проверка вместимости и инкремент —
// один условный UPDATE в хранилище; раздельное чтение с последующей записью
// позволило бы двум конкурентным броням пройти проверку одновременно.
func (s *Registry) Reserve(ctx context.Context, slotID int) error {
	const op = "slots.Reserve"
	reserved, err := s.repo.ReserveSeat(ctx, slotID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !reserved {
		return models.ErrCapacityExceeded
	}
	return nil
}

// Release освобождает место. Идемпотентно к повторному освобождению.
func (s *Registry) Release(ctx context.Context, slotID int) error {
	const op = "slots.Release"
	if err := s.repo.ReleaseSeat(ctx, slotID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkPresence увеличивает живой счетчик при отметке посещения.
// Если слот уже заполнен бронями, место этого посетителя было занято
// при бронировании — инкремент пропускается, инвариант вместимости
// не нарушается. Возвращает, был ли счетчик действительно увеличен.
func (s *Registry) MarkPresence(ctx context.Context, slotID int) (bool, error) {
	const op = "slots.MarkPresence"
	counted, err := s.repo.ReserveSeat(ctx, slotID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !counted {
		s.log.Debug("slot already full, presence not counted", slog.Int("slot_id", slotID))
	}
	return counted, nil
}

// FindTrainerSlot ищет самый ранний свободный индивидуальный слот тренера
// на дату, начинающийся не раньше from.
func (s *Registry) FindTrainerSlot(ctx context.Context, trainerID int, day, from time.Time) (*models.ScheduleSlot, error) {
	return s.repo.FindFreeIndividualSlot(ctx, trainerID, day, from)
}
