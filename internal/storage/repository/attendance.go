package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/gym-booking/internal/models"
)

// CreateAttendance фиксирует факт присутствия. Повторная отметка той же
// пары (пользователь, слот) гасится ON CONFLICT DO NOTHING, и тогда
// возвращается false — вызывающая сторона трактует это как идемпотентный
// повтор без побочных эффектов.
func (s *Storage) CreateAttendance(ctx context.Context, userID, scheduleID, trainerID int) (bool, error) {
	const op = "storage.CreateAttendance"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO attendance (user_id, schedule_id, trainer_id)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (user_id, schedule_id) DO NOTHING`
	result, err := s.DB.ExecContext(ctx, query, userID, scheduleID, trainerID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// DeleteAttendance удаляет отметку присутствия.
// false означает, что отметки не было (повторный unmark — no-op).
func (s *Storage) DeleteAttendance(ctx context.Context, userID, scheduleID int) (bool, error) {
	const op = "storage.DeleteAttendance"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM attendance WHERE user_id = $1 AND schedule_id = $2`
	result, err := s.DB.ExecContext(ctx, query, userID, scheduleID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// GetAttendance возвращает отметку присутствия пары (пользователь, слот).
func (s *Storage) GetAttendance(ctx context.Context, userID, scheduleID int) (*models.Attendance, error) {
	const op = "storage.GetAttendance"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, schedule_id, trainer_id, marked_at
			  FROM attendance
			  WHERE user_id = $1 AND schedule_id = $2`
	row := s.DB.QueryRowContext(ctx, query, userID, scheduleID)

	var a models.Attendance
	if err := row.Scan(&a.ID, &a.UserID, &a.ScheduleID, &a.TrainerID, &a.MarkedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &a, nil
}
