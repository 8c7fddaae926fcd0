package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/gym-booking/internal/models"
)

// Код ошибки PostgreSQL для нарушения уникальности; частичный уникальный
// индекс на (user_id, schedule_id) WHERE status = 'booked' превращает
// гонку двух одновременных бронирований в эту ошибку.
const uniqueViolationCode = "23505"

// CreateBooking вставляет бронь в статусе booked и возвращает её ID.
// Повторная активная бронь той же пары (пользователь, слот) отклоняется
// уникальным индексом и возвращается как models.ErrAlreadyBooked.
func (s *Storage) CreateBooking(ctx context.Context, userID, scheduleID int) (int, error) {
	const op = "storage.CreateBooking"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO bookings (user_id, schedule_id, status)
			  VALUES ($1, $2, 'booked')
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query, userID, scheduleID).Scan(&newID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return 0, models.ErrAlreadyBooked
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ExistsBooked сообщает, есть ли у пользователя активная бронь на слот.
func (s *Storage) ExistsBooked(ctx context.Context, userID, scheduleID int) (bool, error) {
	const op = "storage.ExistsBooked"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT EXISTS (
			      SELECT 1 FROM bookings
			      WHERE user_id = $1 AND schedule_id = $2 AND status = 'booked')`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, userID, scheduleID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// GetBookingForUser возвращает активную бронь по ID, если она принадлежит
// пользователю и находится в статусе booked.
func (s *Storage) GetBookingForUser(ctx context.Context, bookingID, userID int) (*models.Booking, error) {
	const op = "storage.GetBookingForUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, schedule_id, status, subscription_id, visit_debited, created_at
			  FROM bookings
			  WHERE id = $1 AND user_id = $2 AND status = 'booked'`
	row := s.DB.QueryRowContext(ctx, query, bookingID, userID)

	var b models.Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.ScheduleID, &b.Status,
		&b.SubscriptionID, &b.VisitDebited, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &b, nil
}

// GetBookedRow возвращает активную бронь пары (пользователь, слот), если есть.
func (s *Storage) GetBookedRow(ctx context.Context, userID, scheduleID int) (*models.Booking, error) {
	const op = "storage.GetBookedRow"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, schedule_id, status, subscription_id, visit_debited, created_at
			  FROM bookings
			  WHERE user_id = $1 AND schedule_id = $2 AND status = 'booked'`
	row := s.DB.QueryRowContext(ctx, query, userID, scheduleID)

	var b models.Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.ScheduleID, &b.Status,
		&b.SubscriptionID, &b.VisitDebited, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &b, nil
}

// GetAttendedRow возвращает бронь пары (пользователь, слот) в статусе
// attended — след брони, переведенной отметкой посещения.
func (s *Storage) GetAttendedRow(ctx context.Context, userID, scheduleID int) (*models.Booking, error) {
	const op = "storage.GetAttendedRow"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, schedule_id, status, subscription_id, visit_debited, created_at
			  FROM bookings
			  WHERE user_id = $1 AND schedule_id = $2 AND status = 'attended'`
	row := s.DB.QueryRowContext(ctx, query, userID, scheduleID)

	var b models.Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.ScheduleID, &b.Status,
		&b.SubscriptionID, &b.VisitDebited, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &b, nil
}

// UpdateBookingStatus переводит бронь из статуса from в статус to.
// Переход условный: false означает, что бронь уже не в исходном статусе.
func (s *Storage) UpdateBookingStatus(ctx context.Context, bookingID int, from, to string) (bool, error) {
	const op = "storage.UpdateBookingStatus"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE bookings SET status = $3 WHERE id = $1 AND status = $2`
	result, err := s.DB.ExecContext(ctx, query, bookingID, from, to)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// SetVisitDebited помечает бронь оплаченной с указанного абонемента без
// списания. Используется для безлимитных абонементов, где декрементировать
// нечего, но регистратору посещений нужно знать, что визит учтен.
func (s *Storage) SetVisitDebited(ctx context.Context, bookingID, subscriptionID int) error {
	const op = "storage.SetVisitDebited"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE bookings SET visit_debited = true, subscription_id = $2
			  WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, bookingID, subscriptionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteBooking удаляет строку брони. Используется только как компенсация
// на ветках отказа многошагового бронирования.
func (s *Storage) DeleteBooking(ctx context.Context, bookingID int) error {
	const op = "storage.DeleteBooking"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM bookings WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, bookingID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
