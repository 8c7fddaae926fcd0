package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/gym-booking/internal/models"
)

// ListAvailableSlots возвращает будущие неотмененные слоты на выбранную дату,
// вид которых достижим хотя бы одной категорией активных абонементов
// пользователя, исключая слоты с уже существующей бронью этого пользователя.
// Сортировка по времени начала.
func (s *Storage) ListAvailableSlots(ctx context.Context, userID int, day time.Time) ([]*models.AvailableSlot, error) {
	const op = "storage.ListAvailableSlots"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT s.id, s.trainer_id, s.name, s.session_type, s.starts_at, s.ends_at,
			      s.max_participants, s.current_participants, s.is_cancelled, u.username
			  FROM schedule s
			  JOIN users u ON u.id = s.trainer_id
			  WHERE s.is_cancelled = false
			    AND s.starts_at >= now()
			    AND s.starts_at::date = $2::date
			    AND EXISTS (
			        SELECT 1
			        FROM subscriptions sub
			        JOIN subscription_types st ON st.id = sub.type_id
			        WHERE sub.user_id = $1
			          AND sub.is_active = true
			          AND sub.end_date >= CURRENT_DATE
			          AND (sub.visits_remaining IS NULL OR sub.visits_remaining > 0)
			          AND (st.category = 'combined'
			               OR (st.category = 'gym' AND s.session_type = 'individual')
			               OR (st.category = 'group' AND s.session_type = 'group')))
			    AND NOT EXISTS (
			        SELECT 1 FROM bookings b
			        WHERE b.user_id = $1 AND b.schedule_id = s.id AND b.status = 'booked')
			  ORDER BY s.starts_at`
	rows, err := s.DB.QueryContext(ctx, query, userID, day)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.AvailableSlot
	for rows.Next() {
		var item models.AvailableSlot
		if err := rows.Scan(&item.ID, &item.TrainerID, &item.Name, &item.SessionType,
			&item.StartsAt, &item.EndsAt, &item.MaxParticipants, &item.CurrentParticipants,
			&item.IsCancelled, &item.TrainerName); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetSlot возвращает слот расписания по идентификатору.
// Отмененный или отсутствующий слот считается ненайденным.
func (s *Storage) GetSlot(ctx context.Context, id int) (*models.ScheduleSlot, error) {
	const op = "storage.GetSlot"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, trainer_id, name, session_type, starts_at, ends_at,
			      max_participants, current_participants, is_cancelled
			  FROM schedule
			  WHERE id = $1 AND is_cancelled = false`
	row := s.DB.QueryRowContext(ctx, query, id)

	var slot models.ScheduleSlot
	if err := row.Scan(&slot.ID, &slot.TrainerID, &slot.Name, &slot.SessionType,
		&slot.StartsAt, &slot.EndsAt, &slot.MaxParticipants, &slot.CurrentParticipants,
		&slot.IsCancelled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSlotNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &slot, nil
}

// ReserveSeat атомарно занимает место на слоте: проверка вместимости
// и инкремент выполняются одним UPDATE, результат определяется числом
// затронутых строк. false означает, что свободных мест не осталось.
func (s *Storage) ReserveSeat(ctx context.Context, slotID int) (bool, error) {
	const op = "storage.ReserveSeat"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE schedule
			  SET current_participants = current_participants + 1
			  WHERE id = $1
			    AND is_cancelled = false
			    AND current_participants < max_participants`
	result, err := s.DB.ExecContext(ctx, query, slotID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// ReleaseSeat освобождает место на слоте. Счетчик не опускается ниже нуля,
// повторное освобождение — no-op.
func (s *Storage) ReleaseSeat(ctx context.Context, slotID int) error {
	const op = "storage.ReleaseSeat"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE schedule
			  SET current_participants = current_participants - 1
			  WHERE id = $1 AND current_participants > 0`
	if _, err := s.DB.ExecContext(ctx, query, slotID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindFreeIndividualSlot находит самый ранний свободный индивидуальный слот
// тренера на указанную дату, начинающийся не раньше from.
func (s *Storage) FindFreeIndividualSlot(ctx context.Context, trainerID int, day, from time.Time) (*models.ScheduleSlot, error) {
	const op = "storage.FindFreeIndividualSlot"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, trainer_id, name, session_type, starts_at, ends_at,
			      max_participants, current_participants, is_cancelled
			  FROM schedule
			  WHERE trainer_id = $1
			    AND session_type = 'individual'
			    AND is_cancelled = false
			    AND starts_at::date = $2::date
			    AND starts_at >= $3
			    AND current_participants = 0
			    AND NOT EXISTS (
			        SELECT 1 FROM bookings b
			        WHERE b.schedule_id = schedule.id AND b.status = 'booked')
			  ORDER BY starts_at
			  LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, trainerID, day, from)

	var slot models.ScheduleSlot
	if err := row.Scan(&slot.ID, &slot.TrainerID, &slot.Name, &slot.SessionType,
		&slot.StartsAt, &slot.EndsAt, &slot.MaxParticipants, &slot.CurrentParticipants,
		&slot.IsCancelled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTrainerUnavailable
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &slot, nil
}
